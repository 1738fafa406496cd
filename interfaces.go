package shepherd

import (
	"context"

	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
)

// Controller is the serial transport and radio command codec. It is an
// external collaborator; the Shepherd never talks to the radio directly.
type Controller interface {
	Start(ctx context.Context) error
	Close() error

	Reset(ctx context.Context, mode ResetMode) error
	PermitJoin(ctx context.Context, d PermitJoinDuration, joinType PermitJoinType) error

	Request(ctx context.Context, subsystem string, command string, args interface{}) (interface{}, error)

	RegisterEndpoint(ctx context.Context, ep *Endpoint) error
	Bind(ctx context.Context, ep *Endpoint, cId zigbee.ClusterID, target *Endpoint) error
	Unbind(ctx context.Context, ep *Endpoint, cId zigbee.ClusterID, target *Endpoint) error

	Remove(ctx context.Context, ieee zigbee.IEEEAddress, cfg RemoveConfig) error

	GetCoordinator(ctx context.Context) (*Device, error)
	GetNetInfo(ctx context.Context) (NetInfo, error)
	GetFirmwareInfo(ctx context.Context) (string, error)

	SetNVParams(ctx context.Context, net NetworkConfiguration) error

	// Events delivers the raw radio indications, plus PermitJoining
	// ticks, until the Controller is closed.
	Events() <-chan RawIndication
}

// AFLayer builds and sends AF/ZCL frames over the radio.
type AFLayer interface {
	ZCLFoundation(ctx context.Context, src, dst *Endpoint, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FoundationResponse, error)
	ZCLFunctional(ctx context.Context, src, dst *Endpoint, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FunctionalResponse, error)
	ZCLClusterAttrsReq(ctx context.Context, ep *Endpoint, cId zigbee.ClusterID) (map[string]interface{}, error)
}

// Catalog is the ZCL identifier catalog: cluster/attribute/command names
// <-> numeric ids. Unknown ids round-trip as their numeric input.
type Catalog interface {
	Cluster(cId zigbee.ClusterID) (key string, ok bool)
	Attr(cId zigbee.ClusterID, attrId zcl.AttributeID) (key string, ok bool)
	AttrType(cId zigbee.ClusterID, attrId zcl.AttributeID) (zcl.AttributeDataType, bool)
	Foundation(cmd string) (key string, ok bool)
	Status(code uint8) (key string)

	// ClusterByName/AttrByName resolve a catalog name back to a numeric
	// id, accepting raw numeric strings for unknown names.
	ClusterByName(name string) (zigbee.ClusterID, bool)
	AttrByName(cId zigbee.ClusterID, name string) (zcl.AttributeID, bool)
}

// DevBox is the persistent object store: an indexed collection with
// add/get/find/remove/sync/exportAllIds. It never overwrites silently;
// duplicate registration is a caller error.
type DevBox interface {
	Add(dev *Device) (id int, err error)
	Set(id int, dev *Device) error
	Get(id int) (*Device, bool)
	Find(predicate func(*Device) bool) (*Device, bool)
	Remove(id int) error
	Sync(id int) error
	ExportAllIds() []int
	ExportAllObjs() []*Device
	IsEmpty() bool
}

// Zive is a local application mounted on the coordinator as a Coordpoint.
type Zive interface {
	SimpleDescriptor() SimpleDescriptor
	OnZCLFoundation(ctx context.Context, msg FoundationResponse)
	OnZCLFunctional(ctx context.Context, msg FunctionalResponse)
}

// SimpleDescriptor is the endpoint metadata an application supplies to mount.
type SimpleDescriptor struct {
	ProfileID      zigbee.ProfileID
	DeviceID       uint16
	InClusterList  []zigbee.ClusterID
	OutClusterList []zigbee.ClusterID
}

// FoundationResponse/FunctionalResponse carry the AF layer's reply payload.
type FoundationResponse struct {
	Command string
	Records []AttributeRecord
}

type FunctionalResponse struct {
	Command string
	Payload interface{}
}

// AttributeRecord is one {attrId, status, dataType, attrData} record as
// returned by a foundation read/write response.
type AttributeRecord struct {
	AttrID   zcl.AttributeID
	Status   uint8
	DataType zcl.AttributeDataType
	AttrData interface{}
}

// RequestConfig governs post-processing of a functional request.
// Functional commands refresh the cluster cache unless SkipFinalize is
// true; the zero-value RequestConfig therefore refreshes. There is no
// separate "not set" state that skips the refresh.
type RequestConfig struct {
	SkipFinalize bool
}

// RemoveConfig is forwarded verbatim to the Controller's remove command.
type RemoveConfig struct {
	Reentry bool
}

// NetworkConfiguration is forwarded to the Controller at start.
type NetworkConfiguration struct {
	PANID         zigbee.PANID
	ExtendedPANID zigbee.ExtendedPANID
	Channel       uint8
	NetworkKey    zigbee.NetworkKey
}

// ResetMode distinguishes soft (radio-only) from hard (radio + storage) reset.
type ResetMode int

const (
	ResetSoft ResetMode = iota
	ResetHard
)

// ParseResetMode accepts the "soft"|1 / "hard"|0 forms.
func ParseResetMode(mode interface{}) (ResetMode, error) {
	switch m := mode.(type) {
	case string:
		switch m {
		case "soft":
			return ResetSoft, nil
		case "hard":
			return ResetHard, nil
		}
	case int:
		if m == 1 {
			return ResetSoft, nil
		} else if m == 0 {
			return ResetHard, nil
		}
	}
	return ResetHard, ErrInvalidArgument
}

// PermitJoinType scopes a join window, default PermitJoinAll.
type PermitJoinType int

const (
	PermitJoinAll PermitJoinType = iota
	PermitJoinCoord
)

// PermitJoinDuration is the open-window length, in seconds.
type PermitJoinDuration int

// RawIndication is the sum type of everything the Controller may emit.
// Exactly one field of the payload set is populated, selected by Kind.
type RawIndication struct {
	Kind RawIndicationKind

	DeviceIncoming  *DeviceIncomingInfo
	DeviceInterview *DeviceInterviewInfo
	DeviceLeaving   *zigbee.IEEEAddress
	AttributeReport *AttributeReportInfo
	DataConfirm     *DataConfirmInfo
	StatusChange    *StatusChangeInfo
	DeviceStatus    *DeviceStatusInfo
	PermitJoining   *PermitJoinDuration
	ZCLIncoming     *ZCLIncomingInfo
}

type RawIndicationKind int

const (
	RawDeviceIncoming RawIndicationKind = iota
	RawDeviceInterview
	RawDeviceLeaving
	RawAttributeReport
	RawDataConfirm
	RawStatusChange
	RawDeviceStatus
	RawPermitJoining
	RawZCLIncoming
)

// ZCLIncomingInfo is an unsolicited ZCL foundation or functional command
// addressed to a local Coordpoint endpoint, as opposed to a response to
// a request this Shepherd issued. Exactly one of Foundation/Functional
// is populated.
type ZCLIncomingInfo struct {
	Endpoint   uint8
	Foundation *FoundationResponse
	Functional *FunctionalResponse
}

type DeviceIncomingInfo struct {
	IEEEAddr    zigbee.IEEEAddress
	NwkAddr     zigbee.NetworkAddress
	LogicalType zigbee.LogicalType
	Endpoints   []DiscoveredEndpoint
}

type DiscoveredEndpoint struct {
	ID             uint8
	ProfileID      zigbee.ProfileID
	DeviceID       uint16
	InClusterList  []zigbee.ClusterID
	OutClusterList []zigbee.ClusterID
}

type DeviceInterviewInfo struct {
	IEEEAddr zigbee.IEEEAddress
	Status   string
	Success  bool
}

type AttributeReportInfo struct {
	IEEEAddr  zigbee.IEEEAddress
	Endpoint  uint8
	ClusterID zigbee.ClusterID
	Records   []AttributeRecord
}

type DataConfirmInfo struct {
	IEEEAddr zigbee.IEEEAddress
	Endpoint uint8
	Data     interface{}
}

type StatusChangeInfo struct {
	IEEEAddr   zigbee.IEEEAddress
	Endpoint   uint8
	ClusterID  zigbee.ClusterID
	ZoneStatus uint16
	Msg        string
}

type DeviceStatusInfo struct {
	IEEEAddr zigbee.IEEEAddress
	Status   DeviceStatus
}
