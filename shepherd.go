// Package shepherd implements the host-side controller of a Zigbee
// coordinator: the stateful façade ("Shepherd") that owns the device
// registry, serialises lifecycle operations, multiplexes application
// requests onto the radio, dispatches indications, and runs the
// topology scanner.
package shepherd

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shimmeringbee/callbacks"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/persistence"
	"github.com/shimmeringbee/zigbee"
)

// Shepherd is the host-controller façade. It is not thread-safe on its
// own terms; every mutating operation takes mu, and the mutex is never
// held across a suspension point.
type Shepherd struct {
	mu sync.Mutex

	opts       Options
	controller Controller
	af         AFLayer
	catalog    Catalog
	registry   *registry
	logger     logwrap.Logger

	enabled   bool
	startTime time.Time

	coordinator     *Device
	joinWindowUntil time.Time
	joinWindowType  PermitJoinType

	mounted []Zive

	mountQueue  chan *mountRequest
	mountWorker sync.WaitGroup

	dispatcher *dispatcher

	ready         chan struct{}
	permitJoining chan PermitJoinDuration

	acceptIncoming  func(DeviceIncomingInfo) bool
	acceptInterview func(DeviceInterviewInfo) bool

	internal callbacks.AdderCaller

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Shepherd. The Controller, AFLayer, Catalog and DevBox
// collaborators may be supplied via Options for testing; when omitted, a
// persistence-backed DevBox is opened at Options.DBPath.
func New(transport string, opts Options) (*Shepherd, error) {
	opts = opts.withDefaults()

	var box DevBox
	if opts.DevBox != nil {
		box = opts.DevBox
	} else {
		store, err := persistence.New(opts.DBPath)
		if err != nil {
			return nil, &PersistenceError{Err: err}
		}
		box = newPersistedDevBox(store.Section("devbox"))
	}

	logger := defaultLogger()

	s := &Shepherd{
		opts:            opts,
		controller:      opts.Controller,
		af:              opts.AF,
		catalog:         opts.Catalog,
		registry:        newRegistry(box),
		logger:          logger,
		dispatcher:      newDispatcher(logger),
		acceptIncoming:  opts.AcceptDevIncoming,
		acceptInterview: opts.AcceptDevInterview,
		internal:        callbacks.Create(),
		mountQueue:      make(chan *mountRequest, 64),
		ready:           make(chan struct{}, 1),
		permitJoining:   make(chan PermitJoinDuration, 16),
	}

	if s.acceptIncoming == nil {
		s.acceptIncoming = s.policyAcceptIncoming
	}
	if s.acceptInterview == nil {
		s.acceptInterview = s.policyAcceptInterview
	}

	s.registerInternalCallbacks()

	_ = transport // the transport path is consumed by opts.Controller's construction.

	return s, nil
}

// SetAcceptDevIncoming overrides the join admission hook at any time.
// Passing nil restores the policy-engine default (or unconditional
// accept, if no policy is configured).
func (s *Shepherd) SetAcceptDevIncoming(f func(DeviceIncomingInfo) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f == nil {
		f = s.policyAcceptIncoming
	}
	s.acceptIncoming = f
}

// SetAcceptDevInterview overrides the interview admission hook at any
// time
func (s *Shepherd) SetAcceptDevInterview(f func(DeviceInterviewInfo) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f == nil {
		f = s.policyAcceptInterview
	}
	s.acceptInterview = f
}

// ReadEvent blocks for the next `ind` event until ctx is done. It is the
// single unified external event stream.
func (s *Shepherd) ReadEvent(ctx context.Context) (Indication, error) {
	return s.dispatcher.readEvent(ctx)
}

// Ready delivers exactly once per successful Start, unless event
// generation is suppressed
func (s *Shepherd) Ready() <-chan struct{} {
	return s.ready
}

// PermitJoining re-emits the Controller's permitJoining(timeLeft) ticks,
//
func (s *Shepherd) PermitJoining() <-chan PermitJoinDuration {
	return s.permitJoining
}

// Info returns a snapshot of enabled state, network info, firmware,
// start time, and remaining join-window duration
func (s *Shepherd) Info(ctx context.Context) (Info, error) {
	s.mu.Lock()
	info := Info{
		Enabled:   s.enabled,
		StartTime: s.startTime,
	}
	joinWindowUntil := s.joinWindowUntil
	s.mu.Unlock()

	if !info.Enabled {
		return info, nil
	}

	if ni, err := s.controller.GetNetInfo(ctx); err == nil {
		info.Net = ni
	}
	if fw, err := s.controller.GetFirmwareInfo(ctx); err == nil {
		info.Firmware = fw
	}

	if remaining := joinWindowUntil.Sub(time.Now()); remaining > 0 {
		info.JoinTimeLeft = remaining
	}

	return info, nil
}

// List returns every non-incomplete device when ieeeAddrs is empty
// (unless showIncomplete), or the looked-up device dumps for the given
// addresses, each minus its registry id and endpoint map. Unknown
// addresses yield a nil slot in place.
func (s *Shepherd) List(ieeeAddrs []string, showIncomplete bool) []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ieeeAddrs) == 0 {
		all := s.registry.exportAll()
		out := make([]*Device, 0, len(all))
		for _, d := range all {
			if d.Incomplete && !showIncomplete {
				continue
			}
			out = append(out, dumpDevice(d))
		}
		return out
	}

	out := make([]*Device, len(ieeeAddrs))
	for i, addr := range ieeeAddrs {
		if d, found := s.registry.find(addr); found {
			out[i] = dumpDevice(d)
		}
	}
	return out
}

// dumpDevice returns a copy of dev with registryID/endpoints cleared,
// matching list()'s "dump minus {id, endpoints}" contract.
func dumpDevice(dev *Device) *Device {
	copyDev := *dev
	copyDev.registryID = -1
	copyDev.endpoints = nil
	copyDev.EpList = append([]uint8(nil), dev.EpList...)
	return &copyDev
}

// Find returns the device and endpoint identified by addr/epId.
func (s *Shepherd) Find(addr interface{}, epId uint8) (*Device, *Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, found := s.registry.find(addr)
	if !found {
		return nil, nil, ErrDeviceNotFound
	}

	ep, found := dev.Endpoint(epId)
	if !found {
		return dev, nil, ErrEndpointNotFound
	}

	return dev, ep, nil
}

// Coordpoint returns the coordinator endpoint mounted for app, letting a
// mounted application address outbound requests to other devices via
// Endpoint.FoundationTo/FunctionalTo. Returns false if app is not (or no
// longer) mounted.
func (s *Shepherd) Coordpoint(app Zive) (*Endpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.coordinator == nil {
		return nil, false
	}
	for _, ep := range s.coordinator.Endpoints() {
		if ep.app == app {
			return ep, true
		}
	}
	return nil, false
}

// RtgEntry is one routing table record
type RtgEntry struct {
	DestNwkAddr zigbee.NetworkAddress
	RouteStatus uint8
	NextHop     zigbee.NetworkAddress
}

// Rtg issues a ZDO routing table query and returns entries whose
// routeStatus is not "inactive" (bits 0-2 != 3)
func (s *Shepherd) Rtg(ctx context.Context, ieeeAddr string) ([]RtgEntry, error) {
	if !s.isEnabled() {
		return nil, ErrNotEnabled
	}

	resp, err := s.controller.Request(ctx, "ZDO", "mgmtRtgReq", map[string]interface{}{"ieeeAddr": ieeeAddr})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	entries, ok := resp.([]RtgEntry)
	if !ok {
		return nil, fmt.Errorf("shepherd: unexpected mgmtRtgReq response type")
	}

	out := make([]RtgEntry, 0, len(entries))
	for _, e := range entries {
		if e.RouteStatus&7 != 3 {
			out = append(out, e)
		}
	}
	return out, nil
}

// LqiEntry is one neighbour record.
type LqiEntry struct {
	IEEEAddr zigbee.IEEEAddress
	NwkAddr  zigbee.NetworkAddress
	LQI      uint8
	Type     DeviceType
}

// Lqi issues a single-hop LQI request against ieeeAddr. Used standalone
// and by the topology scanner's breadth-first walk.
func (s *Shepherd) Lqi(ctx context.Context, ieeeAddr zigbee.IEEEAddress) ([]LqiEntry, error) {
	if !s.isEnabled() {
		return nil, ErrNotEnabled
	}
	return s.lqiRequest(ctx, ieeeAddr)
}

func (s *Shepherd) lqiRequest(ctx context.Context, ieeeAddr zigbee.IEEEAddress) ([]LqiEntry, error) {
	resp, err := s.controller.Request(ctx, "ZDO", "mgmtLqiReq", map[string]interface{}{
		"ieeeAddr":   ieeeAddr,
		"startindex": 0,
	})
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	entries, ok := resp.([]LqiEntry)
	if !ok {
		return nil, fmt.Errorf("shepherd: unexpected mgmtLqiReq response type")
	}
	return entries, nil
}

// Remove delegates device removal to the Controller; fails
// DeviceNotFound if the device is not registered
func (s *Shepherd) Remove(ctx context.Context, ieeeAddr string, cfg RemoveConfig) error {
	if !s.isEnabled() {
		return ErrNotEnabled
	}

	s.mu.Lock()
	dev, found := s.registry.find(ieeeAddr)
	s.mu.Unlock()

	if !found {
		return ErrDeviceNotFound
	}

	if err := s.controller.Remove(ctx, dev.IEEEAddr, cfg); err != nil {
		return &TransportError{Err: err}
	}

	s.mu.Lock()
	_ = s.registry.unregister(dev)
	s.mu.Unlock()

	_ = s.internal.Call(ctx, internalDeviceUnregistered{dev: dev})

	return nil
}

func (s *Shepherd) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func sortedEpList(eps []uint8) []uint8 {
	out := append([]uint8(nil), eps...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
