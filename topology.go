package shepherd

import (
	"context"
	"sync"

	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/zigbee"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const topologyMaxConcurrentRequests int64 = 8

var zeroIEEEAddress = zigbee.IEEEAddress(0)

// TopologyNode is one discovered record of a network scan: the node
// itself, the node that reported it (zero for the starting node), its
// last-known registry status, and the LQI request's error, if this
// node's own scan failed.
type TopologyNode struct {
	IEEEAddr zigbee.IEEEAddress
	NwkAddr  zigbee.NetworkAddress
	LQI      uint8
	Type     DeviceType
	Status   DeviceStatus
	Parent   zigbee.IEEEAddress

	Err error
}

// TopologyEmitFunc receives each TopologyNode as soon as its record is
// created, before the scan of its own neighbours (if any) begins.
type TopologyEmitFunc func(TopologyNode)

// Topology walks the network breadth-first from startAddr, issuing one
// LQI request per discovered node and fanning out to every Router
// neighbour it finds (end devices and coordinators found as neighbours
// are recorded but never recursed into). Requests within a level run
// concurrently, bounded by topologyMaxConcurrentRequests; a level is a
// barrier for the next. startAddr always appears in the result, with a
// zero Parent; a node's own LQI failure is recorded as Err on its
// existing record, never a second record, and never aborts the scan.
// Each IEEE address is visited once; the all-zero address is skipped.
// emit, if non-nil, is called once per node as its record is created.
func (s *Shepherd) Topology(ctx context.Context, startAddr zigbee.IEEEAddress, emit TopologyEmitFunc) ([]TopologyNode, error) {
	if !s.isEnabled() {
		return nil, ErrNotEnabled
	}

	sem := semaphore.NewWeighted(topologyMaxConcurrentRequests)

	var mu sync.Mutex
	visited := map[zigbee.IEEEAddress]bool{startAddr: true}

	start := s.newTopologyNode(startAddr, 0, 0, DeviceTypeUnknown, zigbee.IEEEAddress(0))
	nodes := []*TopologyNode{start}
	if emit != nil {
		emit(*start)
	}

	level := []zigbee.IEEEAddress{startAddr}

	for len(level) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		var nextLevel []zigbee.IEEEAddress

		for _, addr := range level {
			addr := addr
			g.Go(func() error {
				if err := sem.Acquire(gctx, 1); err != nil {
					return nil
				}
				defer sem.Release(1)

				entries, err := s.lqiRequest(gctx, addr)
				if err != nil {
					s.logger.LogWarn(gctx, "LQI scan request failed.", logwrap.Datum("IEEEAddress", addr.String()))
					mu.Lock()
					setTopologyError(nodes, addr, err)
					mu.Unlock()
					return nil
				}

				for _, e := range entries {
					if e.IEEEAddr == zeroIEEEAddress {
						continue
					}

					mu.Lock()
					already := visited[e.IEEEAddr]
					if !already {
						visited[e.IEEEAddr] = true
					}
					mu.Unlock()
					if already {
						continue
					}

					node := s.newTopologyNode(e.IEEEAddr, e.NwkAddr, e.LQI, e.Type, addr)

					mu.Lock()
					nodes = append(nodes, node)
					mu.Unlock()

					if emit != nil {
						emit(*node)
					}

					if e.Type == DeviceTypeRouter {
						mu.Lock()
						nextLevel = append(nextLevel, e.IEEEAddr)
						mu.Unlock()
					}
				}
				return nil
			})
		}

		_ = g.Wait()
		level = nextLevel
	}

	out := make([]TopologyNode, len(nodes))
	for i, n := range nodes {
		out[i] = *n
	}
	return out, nil
}

// newTopologyNode builds a record stamped with the registry's last-known
// status for addr (offline if the device is unknown to the registry).
func (s *Shepherd) newTopologyNode(addr zigbee.IEEEAddress, nwk zigbee.NetworkAddress, lqi uint8, devType DeviceType, parent zigbee.IEEEAddress) *TopologyNode {
	status := DeviceStatusOffline

	s.mu.Lock()
	if s.registry != nil {
		if dev, found := s.registry.find(addr); found {
			status = dev.Status
			if devType == DeviceTypeUnknown {
				devType = dev.Type
			}
		}
	}
	s.mu.Unlock()

	return &TopologyNode{IEEEAddr: addr, NwkAddr: nwk, LQI: lqi, Type: devType, Status: status, Parent: parent}
}

func setTopologyError(nodes []*TopologyNode, addr zigbee.IEEEAddress, err error) {
	for _, n := range nodes {
		if n.IEEEAddr == addr {
			n.Err = err
			return
		}
	}
}
