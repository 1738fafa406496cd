package shepherd

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zigbee"
)

// persistedDevBox is the default DevBox, backed by
// github.com/shimmeringbee/persistence sections, one per device keyed by
// a monotonically increasing registry id under "device/<id>".
type persistedDevBox struct {
	mu      sync.Mutex
	store   persistence.Section
	nextID  int
	devices map[int]*Device
}

func newPersistedDevBox(store persistence.Section) *persistedDevBox {
	b := &persistedDevBox{store: store, devices: make(map[int]*Device)}
	b.load()
	return b
}

func (b *persistedDevBox) load() {
	section := b.store.Section("device")
	for _, k := range section.SectionKeys() {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}

		dev := deviceFromSection(section.Section(k))
		dev.registryID = id
		dev.recovered = true
		b.devices[id] = dev

		if id >= b.nextID {
			b.nextID = id + 1
		}
	}
}

func (b *persistedDevBox) Add(dev *Device) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	b.devices[id] = dev
	dev.registryID = id
	deviceToSection(b.store.Section("device", strconv.Itoa(id)), dev)

	return id, nil
}

func (b *persistedDevBox) Set(id int, dev *Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.devices[id] = dev
	deviceToSection(b.store.Section("device", strconv.Itoa(id)), dev)
	return nil
}

func (b *persistedDevBox) Get(id int) (*Device, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dev, ok := b.devices[id]
	return dev, ok
}

func (b *persistedDevBox) Find(predicate func(*Device) bool) (*Device, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, id := range b.sortedIDs() {
		if dev := b.devices[id]; predicate(dev) {
			return dev, true
		}
	}
	return nil, false
}

func (b *persistedDevBox) Remove(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.devices, id)
	b.store.Section("device").SectionDelete(strconv.Itoa(id))
	return nil
}

func (b *persistedDevBox) Sync(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	dev, ok := b.devices[id]
	if !ok {
		return nil
	}
	deviceToSection(b.store.Section("device", strconv.Itoa(id)), dev)
	return nil
}

func (b *persistedDevBox) ExportAllIds() []int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sortedIDs()
}

func (b *persistedDevBox) ExportAllObjs() []*Device {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := b.sortedIDs()
	out := make([]*Device, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.devices[id])
	}
	return out
}

func (b *persistedDevBox) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.devices) == 0
}

func (b *persistedDevBox) sortedIDs() []int {
	ids := make([]int, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func deviceToSection(s persistence.Section, dev *Device) {
	s.SetString("ieeeAddr", dev.IEEEAddr.String())
	s.SetInt("nwkAddr", int(dev.NwkAddr))
	s.SetInt("type", int(dev.Type))
	s.SetInt("status", int(dev.Status))
	s.SetInt("joinTime", int(dev.JoinTime))
	s.SetBool("incomplete", dev.Incomplete)
	s.SetString("manufacturer", dev.Manufacturer)
	s.SetString("firmware", dev.Firmware)

	epSection := s.Section("endpoint")
	for _, ep := range dev.Endpoints() {
		endpointToSection(epSection.Section(strconv.Itoa(int(ep.ID))), ep)
	}
}

func deviceFromSection(s persistence.Section) *Device {
	ieeeStr, _ := s.String("ieeeAddr")
	ieee, _ := zigbee.IEEEAddressFromHexString(ieeeStr)

	dev := newDevice(ieee, zigbee.NetworkAddress(s.Int("nwkAddr", 0)))
	dev.Type = DeviceType(s.Int("type", int(DeviceTypeUnknown)))
	dev.Status = DeviceStatus(s.Int("status", int(DeviceStatusOffline)))
	dev.JoinTime = int64(s.Int("joinTime", 0))
	dev.Incomplete = s.Bool("incomplete", false)
	dev.Manufacturer, _ = s.String("manufacturer")
	dev.Firmware, _ = s.String("firmware")

	epSection := s.Section("endpoint")
	for _, k := range epSection.SectionKeys() {
		id, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		ep := endpointFromSection(epSection.Section(k), uint8(id))
		dev.addEndpoint(ep)
	}

	return dev
}

func endpointToSection(s persistence.Section, ep *Endpoint) {
	s.SetInt("profileId", int(ep.ProfileID))
	s.SetInt("deviceId", int(ep.DeviceID))
	s.SetBool("onCoordinator", ep.OnCoordinator)
	s.SetBool("delegator", ep.Delegator)

	clusterSection := s.Section("cluster")
	for cId, ct := range ep.clusters {
		cs := clusterSection.Section(strconv.Itoa(int(cId)))
		for name, value := range ct.attrs {
			cs.SetString(name, toPersistableString(value))
		}
	}
}

func endpointFromSection(s persistence.Section, id uint8) *Endpoint {
	ep := newEndpoint(id)
	ep.ProfileID = zigbee.ProfileID(s.Int("profileId", 0))
	ep.DeviceID = uint16(s.Int("deviceId", 0))
	ep.OnCoordinator = s.Bool("onCoordinator", false)
	ep.Delegator = s.Bool("delegator", false)

	clusterSection := s.Section("cluster")
	for _, k := range clusterSection.SectionKeys() {
		cIdInt, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		cId := zigbee.ClusterID(cIdInt)
		cs := clusterSection.Section(k)
		ct := ep.Cluster(cId)
		for _, attrKey := range cs.SectionKeys() {
			if v, ok := cs.String(attrKey); ok {
				ct.set(attrKey, v)
			}
		}
	}

	return ep
}

func toPersistableString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
