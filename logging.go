package shepherd

import (
	"log"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/logwrap/impl/golog"
)

// WithGoLogger routes Shepherd's structured logging through a standard
// library *log.Logger, for integrators that have not adopted logwrap.
func (s *Shepherd) WithGoLogger(parentLogger *log.Logger) {
	s.WithLogWrapLogger(logwrap.New(golog.Wrap(parentLogger)))
}

// WithLogWrapLogger sets the logwrap.Logger Shepherd logs to. Safe to
// call before Start; defaults to a discarding logger.
func (s *Shepherd) WithLogWrapLogger(lw logwrap.Logger) {
	s.logger = lw
}

func defaultLogger() logwrap.Logger {
	return logwrap.New(discard.Discard())
}
