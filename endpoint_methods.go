package shepherd

import (
	"context"
	"fmt"

	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
)

// Read issues a foundation "read" for a single attribute and resolves to
// its value: on the first (and only) record's status==0 that is
// attrData, otherwise a *RequestUnsuccessError carrying the status.
func (e *Endpoint) Read(ctx context.Context, cId zigbee.ClusterID, attrId zcl.AttributeID) (interface{}, error) {
	if e.router == nil {
		return nil, ErrProfileUnsupported
	}

	resp, err := e.router.Foundation(ctx, e.delegatorOrSelf(), e, cId, "read", []zcl.AttributeID{attrId}, RequestConfig{})
	if err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, fmt.Errorf("shepherd: read returned no records")
	}

	rec := resp.Records[0]
	if rec.Status != 0 {
		return nil, &RequestUnsuccessError{Status: rec.Status}
	}
	return rec.AttrData, nil
}

// Write issues a foundation write of a single attribute and resolves to
// data on status==0, otherwise a *RequestUnsuccessError. The write's
// dataType is resolved via the Catalog when available. Cache reconciliation
// is driven by a follow-up query, since the write response itself carries
// no attribute data; writeUndiv/writeNoRsp remain reachable via Foundation.
func (e *Endpoint) Write(ctx context.Context, cId zigbee.ClusterID, attrId zcl.AttributeID, data interface{}) (interface{}, error) {
	if e.router == nil {
		return nil, ErrProfileUnsupported
	}

	rec := AttributeRecord{AttrID: attrId, DataType: e.router.attrType(cId, attrId), AttrData: data}
	resp, err := e.router.Foundation(ctx, e.delegatorOrSelf(), e, cId, "write", []AttributeRecord{rec}, RequestConfig{})
	if err != nil {
		return nil, err
	}
	if len(resp.Records) == 0 {
		return nil, fmt.Errorf("shepherd: write returned no records")
	}

	if status := resp.Records[0].Status; status != 0 {
		return nil, &RequestUnsuccessError{Status: status}
	}
	return data, nil
}

// Report configures attribute reporting on the remote endpoint and binds
// it to the coordinator's delegator for that profile, so incoming
// reports land on a mounted application. Remote endpoints whose profile
// has no mounted delegator fail ErrProfileUnsupported.
func (e *Endpoint) Report(ctx context.Context, cId zigbee.ClusterID, attrId zcl.AttributeID, minInterval, maxInterval uint16, reportableChange interface{}) error {
	if e.router == nil {
		return ErrProfileUnsupported
	}

	delegator := e.delegator()
	if delegator == nil {
		return ErrProfileUnsupported
	}

	if err := e.Bind(ctx, cId, delegator); err != nil {
		return err
	}

	cfg := []AttributeRecord{{
		AttrID:   attrId,
		DataType: e.router.attrType(cId, attrId),
		AttrData: reportableChange,
	}}
	_, err := e.router.Foundation(ctx, delegator, e, cId, "configReport", map[string]interface{}{
		"direction":   0,
		"minInterval": minInterval,
		"maxInterval": maxInterval,
		"records":     cfg,
	}, RequestConfig{})
	return err
}

// Bind creates a binding table entry from e to target for cId.
func (e *Endpoint) Bind(ctx context.Context, cId zigbee.ClusterID, target *Endpoint) error {
	if e.router == nil {
		return ErrProfileUnsupported
	}
	if err := e.router.s.controller.Bind(ctx, e, cId, target); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// Unbind removes a previously-created binding.
func (e *Endpoint) Unbind(ctx context.Context, cId zigbee.ClusterID, target *Endpoint) error {
	if e.router == nil {
		return ErrProfileUnsupported
	}
	if err := e.router.s.controller.Unbind(ctx, e, cId, target); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

// Foundation issues an arbitrary foundation command against e.
func (e *Endpoint) Foundation(ctx context.Context, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FoundationResponse, error) {
	if e.router == nil {
		return FoundationResponse{}, ErrProfileUnsupported
	}
	return e.router.Foundation(ctx, e.delegatorOrSelf(), e, cId, cmd, zclData, cfg)
}

// Functional issues a cluster-specific command against e. The cache is
// refreshed afterwards unless cfg.SkipFinalize is true; a zero-value
// RequestConfig refreshes.
func (e *Endpoint) Functional(ctx context.Context, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FunctionalResponse, error) {
	if e.router == nil {
		return FunctionalResponse{}, ErrProfileUnsupported
	}
	return e.router.Functional(ctx, e.delegatorOrSelf(), e, cId, cmd, zclData, cfg)
}

// delegator returns the coordinator Coordpoint marked Delegator for this
// endpoint's profile, or nil if no mounted application covers it.
func (e *Endpoint) delegator() *Endpoint {
	if e.router == nil || e.router.s.coordinator == nil {
		return nil
	}

	for _, coordEp := range e.router.s.coordinator.Endpoints() {
		if coordEp.Delegator && coordEp.ProfileID == e.ProfileID {
			return coordEp
		}
	}
	return nil
}

// delegatorOrSelf is the source endpoint for a request against e: the
// profile delegator for a remote endpoint, or e itself when e is already
// on the coordinator.
func (e *Endpoint) delegatorOrSelf() *Endpoint {
	if e.OnCoordinator {
		return e
	}
	if d := e.delegator(); d != nil {
		return d
	}
	return e
}

// FoundationTo issues a foundation command from e — normally a mounted
// application's own Coordpoint — to the endpoint at (dstAddr, dstEpId),
// resolved via the registry. Fails DeviceNotFound/EndpointNotFound when
// the destination cannot be resolved.
func (e *Endpoint) FoundationTo(ctx context.Context, dstAddr interface{}, dstEpId uint8, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FoundationResponse, error) {
	if e.router == nil {
		return FoundationResponse{}, ErrProfileUnsupported
	}
	_, dst, err := e.router.s.Find(dstAddr, dstEpId)
	if err != nil {
		return FoundationResponse{}, err
	}
	return e.router.Foundation(ctx, e, dst, cId, cmd, zclData, cfg)
}

// FunctionalTo is FoundationTo's functional-command counterpart.
func (e *Endpoint) FunctionalTo(ctx context.Context, dstAddr interface{}, dstEpId uint8, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FunctionalResponse, error) {
	if e.router == nil {
		return FunctionalResponse{}, ErrProfileUnsupported
	}
	_, dst, err := e.router.s.Find(dstAddr, dstEpId)
	if err != nil {
		return FunctionalResponse{}, err
	}
	return e.router.Functional(ctx, e, dst, cId, cmd, zclData, cfg)
}
