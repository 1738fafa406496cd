package shepherd

import (
	"fmt"
	"time"

	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
)

// DeviceType mirrors the Zigbee logical device types a node can present.
type DeviceType int

const (
	DeviceTypeUnknown DeviceType = iota
	DeviceTypeCoordinator
	DeviceTypeRouter
	DeviceTypeEndDevice
)

func deviceTypeFromLogicalType(lt zigbee.LogicalType) DeviceType {
	switch lt {
	case zigbee.Coordinator:
		return DeviceTypeCoordinator
	case zigbee.Router:
		return DeviceTypeRouter
	case zigbee.EndDevice:
		return DeviceTypeEndDevice
	default:
		return DeviceTypeUnknown
	}
}

// DeviceStatus is the radio-reachability state of a Device.
type DeviceStatus int

const (
	DeviceStatusOffline DeviceStatus = iota
	DeviceStatusOnline
)

// Device is the registry's mirror of one node on the PAN. IEEEAddr is
// immutable and unique; NwkAddr may change over the device's lifetime.
type Device struct {
	IEEEAddr zigbee.IEEEAddress
	NwkAddr  zigbee.NetworkAddress

	Type   DeviceType
	Status DeviceStatus

	JoinTime     int64
	Incomplete   bool
	Manufacturer string
	Firmware     string

	EpList []uint8

	registryID int
	recovered  bool
	endpoints  map[uint8]*Endpoint
}

func newDevice(ieee zigbee.IEEEAddress, nwk zigbee.NetworkAddress) *Device {
	return &Device{
		IEEEAddr:   ieee,
		NwkAddr:    nwk,
		registryID: -1,
		endpoints:  make(map[uint8]*Endpoint),
	}
}

// Endpoint returns the endpoint with the given id, if present.
func (d *Device) Endpoint(id uint8) (*Endpoint, bool) {
	ep, ok := d.endpoints[id]
	return ep, ok
}

func (d *Device) addEndpoint(ep *Endpoint) {
	if d.endpoints == nil {
		d.endpoints = make(map[uint8]*Endpoint)
	}
	if _, exists := d.endpoints[ep.ID]; !exists {
		d.EpList = append(d.EpList, ep.ID)
	}
	d.endpoints[ep.ID] = ep
	ep.device = d
}

// Endpoints returns every endpoint belonging to the device.
func (d *Device) Endpoints() []*Endpoint {
	out := make([]*Endpoint, 0, len(d.EpList))
	for _, id := range d.EpList {
		if ep, ok := d.endpoints[id]; ok {
			out = append(out, ep)
		}
	}
	return out
}

// Endpoint is a logical unit hosted on exactly one Device.
type Endpoint struct {
	ID             uint8
	ProfileID      zigbee.ProfileID
	DeviceID       uint16
	InClusterList  []zigbee.ClusterID
	OutClusterList []zigbee.ClusterID

	// OnCoordinator marks this endpoint as hosted on the local
	// coordinator (a Coordpoint) rather than a remote node.
	OnCoordinator bool
	// Delegator marks a Coordpoint as the binding target for attribute
	// reports on ProfileID.
	Delegator bool

	clusters map[zigbee.ClusterID]*ClusterTable
	device   *Device

	// router backs the per-endpoint façade methods (Read/Write/Report/
	// Bind/Unbind) once attachZCLMethods has wired it up. Endpoints
	// discovered on remote devices but never mounted stay nil here; their
	// cluster cache is still reconciled directly by incoming reports.
	router *requestRouter

	// app is the mounted application owning this Coordpoint, set by
	// doMount. Incoming ZCL foundation/functional commands addressed to
	// it are delivered via app.OnZCLFoundation/OnZCLFunctional.
	app Zive
}

func newEndpoint(id uint8) *Endpoint {
	return &Endpoint{
		ID:       id,
		clusters: make(map[zigbee.ClusterID]*ClusterTable),
	}
}

// Device returns the endpoint's owning device.
func (e *Endpoint) Device() *Device {
	return e.device
}

// Cluster returns (creating if absent) the cluster table for cId.
func (e *Endpoint) Cluster(cId zigbee.ClusterID) *ClusterTable {
	if e.clusters == nil {
		e.clusters = make(map[zigbee.ClusterID]*ClusterTable)
	}
	ct, ok := e.clusters[cId]
	if !ok {
		ct = newClusterTable(cId)
		e.clusters[cId] = ct
	}
	return ct
}

// HasCluster reports whether a cluster table already exists for cId,
// without creating one.
func (e *Endpoint) HasCluster(cId zigbee.ClusterID) bool {
	_, ok := e.clusters[cId]
	return ok
}

// ClusterTable holds the last-known attribute values of one cluster on
// one endpoint, keyed by the ZCL catalog's attribute name (unknown ids
// round-trip as their numeric form via attrIDNumericKey).
type ClusterTable struct {
	ClusterID zigbee.ClusterID
	attrs     map[string]interface{}
}

func newClusterTable(cId zigbee.ClusterID) *ClusterTable {
	return &ClusterTable{ClusterID: cId, attrs: make(map[string]interface{})}
}

// Snapshot returns a shallow copy of the current attribute map, safe for
// diffing against a later snapshot.
func (c *ClusterTable) Snapshot() map[string]interface{} {
	out := make(map[string]interface{}, len(c.attrs))
	for k, v := range c.attrs {
		out[k] = v
	}
	return out
}

func (c *ClusterTable) set(name string, value interface{}) {
	if c.attrs == nil {
		c.attrs = make(map[string]interface{})
	}
	c.attrs[name] = value
}

// diffSnapshots returns the subset of `next` whose value differs from (or
// is absent in) `prev`.
func diffSnapshots(prev, next map[string]interface{}) map[string]interface{} {
	diff := make(map[string]interface{})
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			diff[k] = v
		}
	}
	return diff
}

// attrIDNumericKey/clusterIDNumericKey are the catalog-miss fallback keys:
// unknown ids round-trip as their numeric form rather than being dropped.
func attrIDNumericKey(id zcl.AttributeID) string {
	return fmt.Sprintf("0x%04X", uint16(id))
}

func clusterIDNumericKey(id zigbee.ClusterID) string {
	return fmt.Sprintf("0x%04X", uint16(id))
}

// NetInfo is the snapshot of radio/network state surfaced by info().
type NetInfo struct {
	State    string
	Channel  uint8
	PANID    zigbee.PANID
	ExtPANID zigbee.ExtendedPANID
	IEEEAddr zigbee.IEEEAddress
	NwkAddr  zigbee.NetworkAddress
}

// Info is the snapshot returned by Shepherd.Info().
type Info struct {
	Enabled      bool
	Net          NetInfo
	Firmware     string
	StartTime    time.Time
	JoinTimeLeft time.Duration
}
