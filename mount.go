package shepherd

import (
	"context"
	"fmt"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zigbee"
)

// mountRequest is one FIFO entry of the mount serializer
type mountRequest struct {
	app      Zive
	resultCh chan mountResult
}

type mountResult struct {
	endpointID uint8
	err        error
}

func (s *Shepherd) startMountWorker() {
	s.mountWorker.Add(1)
	go s.mountLoop()
}

func (s *Shepherd) stopMountWorker() {
	close(s.mountQueue)
	s.mountWorker.Wait()
	s.mountQueue = make(chan *mountRequest, 64)
}

// mountLoop drains the FIFO one request at a time; the next request is
// picked up only after the current mount settles, success or failure.
func (s *Shepherd) mountLoop() {
	defer s.mountWorker.Done()

	for req := range s.mountQueue {
		epID, err := s.doMount(context.Background(), req.app)
		req.resultCh <- mountResult{endpointID: epID, err: err}
	}
}

// Mount registers a local application, taking one coordinator endpoint,
// Only one mount may be in flight at a time; concurrent
// calls queue in FIFO order.
func (s *Shepherd) Mount(ctx context.Context, app Zive) (uint8, error) {
	if !s.isEnabled() {
		return 0, ErrNotEnabled
	}

	s.mu.Lock()
	for _, m := range s.mounted {
		if m == app {
			s.mu.Unlock()
			return 0, ErrDuplicateMount
		}
	}
	s.mu.Unlock()

	resultCh := make(chan mountResult, 1)

	select {
	case s.mountQueue <- &mountRequest{app: app, resultCh: resultCh}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res.endpointID, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// doMount performs the actual mount steps, provisioning a profile
// delegator first if this is the first mount of app's profile. Any
// step's failure rejects this mount only; the queue continues.
func (s *Shepherd) doMount(ctx context.Context, app Zive) (uint8, error) {
	s.mu.Lock()
	coord := s.coordinator
	s.mu.Unlock()

	if coord == nil {
		return 0, ErrCoordinatorNotReady
	}

	desc := app.SimpleDescriptor()

	if _, err := s.ensureDelegator(ctx, coord, desc.ProfileID); err != nil {
		return 0, err
	}

	epID := nextCoordinatorEndpointID(coord)

	ep := newEndpoint(epID)
	ep.OnCoordinator = true
	ep.ProfileID = desc.ProfileID
	ep.DeviceID = desc.DeviceID
	ep.InClusterList = desc.InClusterList
	ep.OutClusterList = desc.OutClusterList

	if err := s.controller.RegisterEndpoint(ctx, ep); err != nil {
		return 0, &TransportError{Err: err}
	}

	s.mu.Lock()
	coord.addEndpoint(ep)
	s.mu.Unlock()

	if refreshed, err := s.controller.GetCoordinator(ctx); err == nil {
		s.mu.Lock()
		coord.NwkAddr = refreshed.NwkAddr
		_ = s.registry.syncOne(coord)
		s.mu.Unlock()
	} else {
		s.logger.LogWarn(ctx, "Failed to refresh coordinator after mount.", logwrap.Err(err))
	}

	s.attachZCLMethods(ep)
	ep.app = app

	s.mu.Lock()
	s.mounted = append(s.mounted, app)
	s.mu.Unlock()

	return epID, nil
}

// nextCoordinatorEndpointID allocates max(coord.epList)+1 if it exceeds
// the delegator reservation, else 11
func nextCoordinatorEndpointID(coord *Device) uint8 {
	max := uint8(0)
	for _, id := range coord.EpList {
		if id > max {
			max = id
		}
	}
	if max > coordinatorReservedEndpoints {
		return max + 1
	}
	return coordinatorReservedEndpoints + 1
}

// ensureDelegator returns the coordinator Coordpoint flagged Delegator
// for profileID, provisioning and registering a fresh one from the
// reserved id range on the first mount of that profile. Later mounts of
// the same profile reuse it.
func (s *Shepherd) ensureDelegator(ctx context.Context, coord *Device, profileID zigbee.ProfileID) (*Endpoint, error) {
	s.mu.Lock()
	for _, ep := range coord.Endpoints() {
		if ep.Delegator && ep.ProfileID == profileID {
			s.mu.Unlock()
			return ep, nil
		}
	}
	id, ok := nextDelegatorEndpointID(coord)
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("shepherd: no delegator endpoint id free below the reservation boundary")
	}

	ep := newEndpoint(id)
	ep.OnCoordinator = true
	ep.Delegator = true
	ep.ProfileID = profileID

	if err := s.controller.RegisterEndpoint(ctx, ep); err != nil {
		return nil, &TransportError{Err: err}
	}

	s.mu.Lock()
	coord.addEndpoint(ep)
	s.mu.Unlock()

	return ep, nil
}

// nextDelegatorEndpointID returns the lowest id in the reserved range
// (1..coordinatorReservedEndpoints) not already taken on coord, or false
// once the reservation is exhausted.
func nextDelegatorEndpointID(coord *Device) (uint8, bool) {
	for id := uint8(1); id <= coordinatorReservedEndpoints; id++ {
		if _, found := coord.Endpoint(id); !found {
			return id, true
		}
	}
	return 0, false
}
