package shepherd

import (
	"fmt"

	"github.com/shimmeringbee/zigbee"
)

// registry is an in-memory view over the external DevBox. It never
// silently overwrites; duplicate registration is a caller error. No
// iteration order is guaranteed.
type registry struct {
	box DevBox
}

func newRegistry(box DevBox) *registry {
	return &registry{box: box}
}

// find accepts either an IEEE address string or a numeric network
// address and returns the first matching device.
func (r *registry) find(addr interface{}) (*Device, bool) {
	switch a := addr.(type) {
	case zigbee.IEEEAddress:
		return r.box.Find(func(d *Device) bool { return d.IEEEAddr == a })
	case string:
		ieee, err := zigbee.IEEEAddressFromHexString(a)
		if err != nil {
			return nil, false
		}
		return r.box.Find(func(d *Device) bool { return d.IEEEAddr == ieee })
	case zigbee.NetworkAddress:
		return r.box.Find(func(d *Device) bool { return d.NwkAddr == a })
	case uint16:
		return r.box.Find(func(d *Device) bool { return d.NwkAddr == zigbee.NetworkAddress(a) })
	default:
		return nil, false
	}
}

// register persists a new or recovered device. New devices are stamped
// with joinTime and added; recovered devices are written back under
// their existing registry id and the recovered flag is cleared.
func (r *registry) register(dev *Device, joinTime int64) error {
	if dev.recovered {
		dev.recovered = false
		if err := r.box.Set(dev.registryID, dev); err != nil {
			return &PersistenceError{Err: err}
		}
		return nil
	}

	if dev.registryID >= 0 {
		if _, found := r.box.Get(dev.registryID); found {
			return fmt.Errorf("shepherd: registry: %w: id %d already present", ErrInvalidArgument, dev.registryID)
		}
	}

	dev.JoinTime = joinTime
	id, err := r.box.Add(dev)
	if err != nil {
		return &PersistenceError{Err: err}
	}
	dev.registryID = id
	return nil
}

// unregister removes a device from the registry by its registry id.
func (r *registry) unregister(dev *Device) error {
	if dev.registryID < 0 {
		return nil
	}
	if err := r.box.Remove(dev.registryID); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

// syncOne persists the current in-memory state of one device.
func (r *registry) syncOne(dev *Device) error {
	if dev.registryID < 0 {
		return nil
	}
	if err := r.box.Sync(dev.registryID); err != nil {
		return &PersistenceError{Err: err}
	}
	return nil
}

func (r *registry) exportAll() []*Device {
	return r.box.ExportAllObjs()
}

func (r *registry) clearAll() error {
	var firstErr error
	for _, id := range r.box.ExportAllIds() {
		if err := r.box.Remove(id); err != nil && firstErr == nil {
			firstErr = &PersistenceError{Err: err}
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return nil
}

func (r *registry) isEmpty() bool {
	return r.box.IsEmpty()
}
