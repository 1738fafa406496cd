package shepherd

import (
	"context"
	"time"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zigbee"
)

// coordinatorReservedEndpoints is the delegator reservation of :
// endpoint ids 1-10 on the coordinator are reserved.
const coordinatorReservedEndpoints = 10

// Start brings up the Controller, rehydrates persisted devices and
// reconciles the coordinator A second call while enabled
// is a caller error.
func (s *Shepherd) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.enabled {
		s.mu.Unlock()
		return ErrAlreadyEnabled
	}
	s.mu.Unlock()

	if err := s.controller.Start(ctx); err != nil {
		return &TransportError{Err: err}
	}

	coord, err := s.controller.GetCoordinator(ctx)
	if err != nil {
		_ = s.controller.Close()
		return &TransportError{Err: err}
	}

	s.mu.Lock()
	s.rehydrate()
	s.reconcileCoordinator(coord)
	s.enabled = true
	s.startTime = time.Now()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	s.startMountWorker()
	go s.indicationLoop(s.ctx)

	if !s.opts.SuppressEvents {
		select {
		case s.ready <- struct{}{}:
		default:
		}
	}
	s.logger.LogInfo(ctx, "Shepherd started.")

	return nil
}

// reconcileCoordinator ensures the registry's coordinator record matches
// what the radio reports, registering it if this is the first start.
// Must be called with mu held.
func (s *Shepherd) reconcileCoordinator(coord *Device) {
	existing, found := s.registry.find(coord.IEEEAddr)
	if found {
		existing.NwkAddr = coord.NwkAddr
		existing.Type = DeviceTypeCoordinator
		s.coordinator = existing
		_ = s.registry.syncOne(existing)
		return
	}

	coord.Type = DeviceTypeCoordinator
	_ = s.registry.register(coord, time.Now().Unix())
	s.coordinator = coord
}

// rehydrate marks every persisted device in the registry view as
// recovered. It does not call register for them. Must be called with mu
// held.
func (s *Shepherd) rehydrate() {
	for _, dev := range s.registry.exportAll() {
		dev.recovered = true
	}
}

// Stop disables the Shepherd, clears the mounted-application list,
// cancels the indication loop, stops the mount worker, then closes the
// Controller. Safe to call when already stopped. It does not clear the
// registry: neither the DevBox's in-memory devices nor its on-disk store
// are touched, and the coordinator record is kept. This is the only
// behaviour of stop -- it is not a "soft" reset.
func (s *Shepherd) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return nil
	}
	s.enabled = false
	s.mounted = nil
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.stopMountWorker()

	if err := s.controller.Close(); err != nil {
		return &TransportError{Err: err}
	}

	s.logger.LogInfo(ctx, "Shepherd stopped.")
	return nil
}

// Reset issues a radio reset via the Controller; mode "hard" additionally
// wipes persisted storage. Store errors are logged but never block the
// radio reset
func (s *Shepherd) Reset(ctx context.Context, mode ResetMode) error {
	if err := s.controller.Reset(ctx, mode); err != nil {
		return &TransportError{Err: err}
	}

	if mode == ResetHard {
		s.mu.Lock()
		err := s.registry.clearAll()
		s.mu.Unlock()

		if err != nil {
			s.logger.LogWarn(ctx, "Failed to clear persisted storage during hard reset.", logwrap.Err(err))
		}
	}

	return nil
}

// PermitJoin opens a join window of `seconds`, optionally scoped by
// joinType (default all). Fails NotEnabled if not started.
func (s *Shepherd) PermitJoin(ctx context.Context, seconds int, joinType PermitJoinType) error {
	if !s.isEnabled() {
		return ErrNotEnabled
	}

	if err := s.controller.PermitJoin(ctx, PermitJoinDuration(seconds), joinType); err != nil {
		return &TransportError{Err: err}
	}

	s.mu.Lock()
	s.joinWindowUntil = time.Now().Add(time.Duration(seconds) * time.Second)
	s.joinWindowType = joinType
	s.mu.Unlock()

	return nil
}

// indicationLoop drains the Controller's raw event stream and translates
// each one into the external `ind` stream.
func (s *Shepherd) indicationLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-s.controller.Events():
			if !ok {
				return
			}
			s.handleRawIndication(ctx, raw)
		}
	}
}

func (s *Shepherd) handleRawIndication(ctx context.Context, raw RawIndication) {
	switch raw.Kind {
	case RawPermitJoining:
		if raw.PermitJoining != nil {
			select {
			case s.permitJoining <- *raw.PermitJoining:
			default:
			}
		}
	case RawDeviceIncoming:
		s.handleJoin(ctx, *raw.DeviceIncoming)
	case RawDeviceInterview:
		s.handleInterview(ctx, *raw.DeviceInterview)
	case RawDeviceLeaving:
		s.handleLeave(ctx, *raw.DeviceLeaving)
	case RawAttributeReport:
		s.handleAttributeReport(ctx, *raw.AttributeReport)
	case RawDataConfirm:
		info := raw.DataConfirm
		s.dispatcher.emit(Indication{Kind: IndDataConfirm, IEEEAddr: info.IEEEAddr.String(), DataConfirm: info.Data})
	case RawStatusChange:
		s.handleStatusChange(ctx, *raw.StatusChange)
	case RawDeviceStatus:
		info := raw.DeviceStatus
		s.dispatcher.emit(Indication{Kind: IndDevStatus, IEEEAddr: info.IEEEAddr.String(), DevStatus: info.Status})
	case RawZCLIncoming:
		s.handleZCLIncoming(ctx, *raw.ZCLIncoming)
	}
}

// handleZCLIncoming delivers an unsolicited ZCL command to the mounted
// application owning the targeted Coordpoint endpoint. Commands for an
// endpoint with no coordinator, or no mounted application, are logged
// and dropped.
func (s *Shepherd) handleZCLIncoming(ctx context.Context, info ZCLIncomingInfo) {
	s.mu.Lock()
	var ep *Endpoint
	if s.coordinator != nil {
		ep, _ = s.coordinator.Endpoint(info.Endpoint)
	}
	s.mu.Unlock()

	if ep == nil || ep.app == nil {
		s.logger.LogWarn(ctx, "Incoming ZCL command for an unmounted endpoint.", logwrap.Datum("Endpoint", info.Endpoint))
		return
	}

	switch {
	case info.Foundation != nil:
		ep.app.OnZCLFoundation(ctx, *info.Foundation)
	case info.Functional != nil:
		ep.app.OnZCLFunctional(ctx, *info.Functional)
	}
}

// handleJoin runs the admission hook and, if accepted, lets the
// Controller drive interview; acceptance/interview progress is surfaced
// via handleInterview step 1-3.
func (s *Shepherd) handleJoin(ctx context.Context, info DeviceIncomingInfo) {
	s.mu.Lock()
	accept := s.acceptIncoming
	s.mu.Unlock()

	if !accept(info) {
		s.logger.LogInfo(ctx, "Rejected incoming device.", logwrap.Datum("IEEEAddress", info.IEEEAddr.String()))
		return
	}

	s.logger.LogInfo(ctx, "Accepted incoming device, awaiting interview.", logwrap.Datum("IEEEAddress", info.IEEEAddr.String()))
}

// handleInterview is invoked on interview progress/completion. It
// registers a device it has not seen before (join, not recovery) or
// syncs a known one, marking it Incomplete when the interview failed,
// then emits devInterview, followed by devIncoming on success.
func (s *Shepherd) handleInterview(ctx context.Context, info DeviceInterviewInfo) {
	s.mu.Lock()
	accept := s.acceptInterview
	s.mu.Unlock()

	if !accept(info) {
		s.logger.LogInfo(ctx, "Rejected device at interview.", logwrap.Datum("IEEEAddress", info.IEEEAddr.String()))
		return
	}

	s.mu.Lock()
	dev, found := s.registry.find(info.IEEEAddr)
	isNew := !found
	if !found {
		dev = newDevice(info.IEEEAddr, 0)
		dev.Incomplete = !info.Success
		_ = s.registry.register(dev, time.Now().Unix())
	} else {
		dev.Incomplete = !info.Success
		_ = s.registry.syncOne(dev)
	}
	s.mu.Unlock()

	if isNew {
		_ = s.internal.Call(ctx, internalDeviceRegistered{dev: dev})
	}

	s.dispatcher.emit(Indication{
		Kind:         IndDevInterview,
		IEEEAddr:     info.IEEEAddr.String(),
		DevInterview: &DevInterviewPayload{Status: info.Status, Device: dev},
	})

	if info.Success {
		s.dispatcher.emit(Indication{
			Kind:      IndDevIncoming,
			IEEEAddr:  info.IEEEAddr.String(),
			Endpoints: dev.Endpoints(),
		})
	}
}

// handleLeave unregisters the leaving device and emits devLeaving, per
// leave flow.
func (s *Shepherd) handleLeave(ctx context.Context, ieee zigbee.IEEEAddress) {
	s.mu.Lock()
	dev, found := s.registry.find(ieee)
	var eps []*Endpoint
	if found {
		eps = dev.Endpoints()
		_ = s.registry.unregister(dev)
	}
	s.mu.Unlock()

	if !found {
		s.logger.LogWarn(ctx, "Leave indication for unknown device.", logwrap.Datum("IEEEAddress", ieee.String()))
		return
	}

	_ = s.internal.Call(ctx, internalDeviceUnregistered{dev: dev})

	s.dispatcher.emit(Indication{
		Kind:      IndDevLeaving,
		IEEEAddr:  ieee.String(),
		Endpoints: eps,
	})
}

// handleAttributeReport reconciles the reporting endpoint's cluster cache
// unconditionally (no status gate, unlike a foundation read) and emits
// attReport, followed by devChange if the overwrite changed anything,
//
func (s *Shepherd) handleAttributeReport(ctx context.Context, info AttributeReportInfo) {
	s.mu.Lock()
	dev, found := s.registry.find(info.IEEEAddr)
	var ep *Endpoint
	if found {
		ep, found = dev.Endpoint(info.Endpoint)
	}
	s.mu.Unlock()

	if !found || ep == nil {
		s.logger.LogWarn(ctx, "Attribute report for unknown device or endpoint.", logwrap.Datum("IEEEAddress", info.IEEEAddr.String()))
		return
	}

	rr := &requestRouter{s: s}

	s.mu.Lock()
	reported, diff := rr.applyReport(ep, info.ClusterID, info.Records)
	s.mu.Unlock()

	s.dispatcher.emit(Indication{
		Kind:      IndAttReport,
		IEEEAddr:  info.IEEEAddr.String(),
		Endpoints: []*Endpoint{ep},
		AttReport: &AttReportPayload{ClusterKey: rr.clusterKey(info.ClusterID), Data: reported},
	})

	if len(diff) > 0 {
		s.dispatcher.emit(Indication{
			Kind:      IndDevChange,
			IEEEAddr:  info.IEEEAddr.String(),
			Endpoints: []*Endpoint{ep},
			DevChange: &DevChangePayload{ClusterKey: rr.clusterKey(info.ClusterID), Data: diff},
		})
	}
}

func (s *Shepherd) handleStatusChange(ctx context.Context, info StatusChangeInfo) {
	s.mu.Lock()
	dev, found := s.registry.find(info.IEEEAddr)
	var eps []*Endpoint
	var clusterKey string
	if found {
		if ep, ok := dev.Endpoint(info.Endpoint); ok {
			eps = []*Endpoint{ep}
		}
	}
	if s.catalog != nil {
		if key, ok := s.catalog.Cluster(info.ClusterID); ok {
			clusterKey = key
		}
	}
	s.mu.Unlock()

	s.dispatcher.emit(Indication{
		Kind:      IndStatusChange,
		IEEEAddr:  info.IEEEAddr.String(),
		Endpoints: eps,
		StatusChange: &StatusChangePayload{
			ClusterKey: clusterKey,
			ZoneStatus: info.ZoneStatus,
			Msg:        info.Msg,
		},
	})
}
