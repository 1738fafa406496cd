package shepherd

import (
	"context"

	"github.com/shimmeringbee/logwrap"
)

// IndicationKind tags the payload variant carried by an Indication.
type IndicationKind int

const (
	IndDevIncoming IndicationKind = iota
	IndDevInterview
	IndDevLeaving
	IndDevChange
	IndDataConfirm
	IndStatusChange
	IndAttReport
	IndDevStatus
)

// Indication is the single external event stream's sum type: exactly one
// payload variant is populated, selected by Kind.
type Indication struct {
	Kind IndicationKind

	Endpoints []*Endpoint
	IEEEAddr  string

	DevInterview *DevInterviewPayload
	DevChange    *DevChangePayload
	DataConfirm  interface{}
	StatusChange *StatusChangePayload
	AttReport    *AttReportPayload
	DevStatus    DeviceStatus
}

type DevInterviewPayload struct {
	Status string
	Device *Device
}

type DevChangePayload struct {
	ClusterKey string
	Data       map[string]interface{}
}

type StatusChangePayload struct {
	ClusterKey string
	ZoneStatus uint16
	Msg        string
}

type AttReportPayload struct {
	ClusterKey string
	Data       map[string]interface{}
}

// dispatcher buffers the single `ind` event stream. The translation of
// raw Controller indications and the cluster cache reconciliation happen
// in the Shepherd's handlers, which hand finished Indications to emit.
type dispatcher struct {
	logger logwrap.Logger
	out    chan Indication
	stop   chan struct{}
}

func newDispatcher(logger logwrap.Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		out:    make(chan Indication, 200),
		stop:   make(chan struct{}),
	}
}

func (d *dispatcher) emit(ind Indication) {
	select {
	case d.out <- ind:
	default:
		d.logger.LogWarn(context.Background(), "Dropping indication, event channel full.")
	}
}

// readEvent blocks until an Indication is available or ctx is done.
func (d *dispatcher) readEvent(ctx context.Context) (Indication, error) {
	select {
	case ind := <-d.out:
		return ind, nil
	case <-ctx.Done():
		return Indication{}, ctx.Err()
	case <-d.stop:
		return Indication{}, context.Canceled
	}
}

func (d *dispatcher) close() {
	close(d.stop)
}
