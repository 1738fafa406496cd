package shepherd

import (
	"context"
	"time"

	"github.com/shimmeringbee/retry"
	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
)

// requestRouter wraps the AF layer's Foundation/Functional primitives,
// post-processes responses and reconciles the cluster cache.
type requestRouter struct {
	s *Shepherd
}

func (s *Shepherd) attachZCLMethods(ep *Endpoint) {
	ep.router = &requestRouter{s: s}
}

const (
	defaultNetworkTimeout = 3000 * time.Millisecond
	defaultNetworkRetries = 5
)

// Foundation issues a generic ZCL command (read, write, writeUndiv,
// writeNoRsp, configReport, discover, ...) and post-processes the
// response
func (rr *requestRouter) Foundation(ctx context.Context, src, dst *Endpoint, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FoundationResponse, error) {
	var resp FoundationResponse

	err := retry.Retry(ctx, defaultNetworkTimeout, defaultNetworkRetries, func(ctx context.Context) error {
		r, err := rr.s.af.ZCLFoundation(ctx, src, dst, cId, cmd, zclData, cfg)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return FoundationResponse{}, &TransportError{Err: err}
	}

	switch cmd {
	case "read":
		rr.refreshFromRecords(ctx, dst, cId, resp.Records)
	case "write", "writeUndiv", "writeNoRsp":
		rr.refreshByQuery(ctx, dst, cId)
	}

	return resp, nil
}

// Functional issues a cluster-specific command, then refreshes the
// cluster cache by query unless cfg.SkipFinalize is true. A zero-value
// RequestConfig refreshes.
func (rr *requestRouter) Functional(ctx context.Context, src, dst *Endpoint, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg RequestConfig) (FunctionalResponse, error) {
	var resp FunctionalResponse

	err := retry.Retry(ctx, defaultNetworkTimeout, defaultNetworkRetries, func(ctx context.Context) error {
		r, err := rr.s.af.ZCLFunctional(ctx, src, dst, cId, cmd, zclData, cfg)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return FunctionalResponse{}, &TransportError{Err: err}
	}

	if !cfg.SkipFinalize {
		rr.refreshByQuery(ctx, dst, cId)
	}

	return resp, nil
}

// refreshFromRecords updates the cluster cache from a foundation read
// response and, if the diff is non-empty, emits devChange.
func (rr *requestRouter) refreshFromRecords(ctx context.Context, ep *Endpoint, cId zigbee.ClusterID, records []AttributeRecord) {
	ct := ep.Cluster(cId)
	prev := ct.Snapshot()

	for _, rec := range records {
		name := rr.attrName(cId, rec.AttrID)
		if rec.Status == 0 {
			ct.set(name, rec.AttrData)
		} else {
			ct.set(name, nil)
		}
	}

	rr.emitChangeIfDiff(ep, cId, prev, ct.Snapshot())
}

// refreshByQuery re-reads the whole cluster via the AF layer's
// ZCLClusterAttrsReq and reconciles the cache, used after write/writeUndiv/
// writeNoRsp and opt-in functional finalisation
func (rr *requestRouter) refreshByQuery(ctx context.Context, ep *Endpoint, cId zigbee.ClusterID) {
	ct := ep.Cluster(cId)
	prev := ct.Snapshot()

	latest, err := rr.s.af.ZCLClusterAttrsReq(ctx, ep, cId)
	if err != nil {
		rr.s.logger.LogWarn(ctx, "Failed to refresh cluster cache after write.")
		return
	}

	for name, v := range latest {
		ct.set(name, v)
	}

	rr.emitChangeIfDiff(ep, cId, prev, ct.Snapshot())
}

// applyReport overwrites the cache unconditionally with reported values
// (no status field to gate them) It returns the full set
// of reported name/value pairs (for attReport) and the subset that
// actually changed the cache (for a follow-on devChange).
func (rr *requestRouter) applyReport(ep *Endpoint, cId zigbee.ClusterID, records []AttributeRecord) (reported, diff map[string]interface{}) {
	ct := ep.Cluster(cId)
	prev := ct.Snapshot()

	reported = make(map[string]interface{}, len(records))
	for _, rec := range records {
		name := rr.attrName(cId, rec.AttrID)
		ct.set(name, rec.AttrData)
		reported[name] = rec.AttrData
	}

	diff = diffSnapshots(prev, ct.Snapshot())
	return reported, diff
}

func (rr *requestRouter) attrName(cId zigbee.ClusterID, attrId zcl.AttributeID) string {
	if rr.s.catalog != nil {
		if key, ok := rr.s.catalog.Attr(cId, attrId); ok {
			return key
		}
	}
	return attrIDNumericKey(attrId)
}

// attrType resolves an attribute's wire data type via the Catalog, for
// callers (write, configReport) that must supply dataType alongside
// attrData. Falls back to the zero AttributeDataType when the catalog is
// absent or has no entry for the id.
func (rr *requestRouter) attrType(cId zigbee.ClusterID, attrId zcl.AttributeID) zcl.AttributeDataType {
	if rr.s.catalog != nil {
		if dt, ok := rr.s.catalog.AttrType(cId, attrId); ok {
			return dt
		}
	}
	return 0
}

func (rr *requestRouter) clusterKey(cId zigbee.ClusterID) string {
	if rr.s.catalog != nil {
		if key, ok := rr.s.catalog.Cluster(cId); ok {
			return key
		}
	}
	return clusterIDNumericKey(cId)
}

func (rr *requestRouter) emitChangeIfDiff(ep *Endpoint, cId zigbee.ClusterID, prev, next map[string]interface{}) {
	diff := diffSnapshots(prev, next)
	if len(diff) == 0 {
		return
	}

	ieee := ""
	if ep.device != nil {
		ieee = ep.device.IEEEAddr.String()
	}

	rr.s.dispatcher.emit(Indication{
		Kind:      IndDevChange,
		IEEEAddr:  ieee,
		Endpoints: []*Endpoint{ep},
		DevChange: &DevChangePayload{ClusterKey: rr.clusterKey(cId), Data: diff},
	})
}
