package shepherd

import (
	"context"

	"github.com/shimmeringbee/logwrap"
)

// Internal callback events. These decouple registry mutation from the
// housekeeping that must follow it, rather than inlining that
// housekeeping into every call site that adds or removes a device.
type internalDeviceRegistered struct {
	dev *Device
}

type internalDeviceUnregistered struct {
	dev *Device
}

// registerInternalCallbacks wires the housekeeping that reacts to
// registry changes: detaching a removed device's endpoint routers so any
// in-flight façade call fails fast instead of touching a stale Device.
func (s *Shepherd) registerInternalCallbacks() {
	s.internal.Add(func(ctx context.Context, ev internalDeviceUnregistered) error {
		for _, ep := range ev.dev.Endpoints() {
			ep.router = nil
		}
		return nil
	})

	s.internal.Add(func(ctx context.Context, ev internalDeviceRegistered) error {
		s.logger.LogTrace(ctx, "Device registered.", logwrap.Datum("IEEEAddress", ev.dev.IEEEAddr.String()))
		return nil
	})
}
