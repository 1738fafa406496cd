package shepherd

import (
	"context"
	"testing"
	"time"

	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yovio/zigbee-shepherd/mocks"
)

func TestTopology(t *testing.T) {
	t.Run("fails NotEnabled when stopped", func(t *testing.T) {
		s := &Shepherd{}
		_, err := s.Topology(context.Background(), zigbee.IEEEAddress(0x01), nil)
		assert.ErrorIs(t, err, ErrNotEnabled)
	})

	t.Run("walks two levels, dedups a shared neighbour, and includes the starting node", func(t *testing.T) {
		ctrl := &mocks.MockController{}
		s := &Shepherd{controller: ctrl, logger: defaultLogger(), enabled: true}

		root := zigbee.IEEEAddress(0x01)
		routerA := zigbee.IEEEAddress(0x02)
		routerB := zigbee.IEEEAddress(0x03)
		leaf := zigbee.IEEEAddress(0x04)
		shared := zigbee.IEEEAddress(0x05)

		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == root
		})).Return([]LqiEntry{
			{IEEEAddr: routerA, Type: DeviceTypeRouter},
			{IEEEAddr: routerB, Type: DeviceTypeRouter},
		}, nil)

		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == routerA
		})).Return([]LqiEntry{
			{IEEEAddr: leaf, Type: DeviceTypeEndDevice},
			{IEEEAddr: shared, Type: DeviceTypeRouter},
		}, nil)

		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == routerB
		})).Return([]LqiEntry{
			{IEEEAddr: shared, Type: DeviceTypeRouter},
		}, nil)

		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == shared
		})).Return([]LqiEntry{}, nil)

		var emitted []TopologyNode
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		nodes, err := s.Topology(ctx, root, func(n TopologyNode) {
			emitted = append(emitted, n)
		})
		assert.NoError(t, err)

		seen := map[zigbee.IEEEAddress]int{}
		byAddr := map[zigbee.IEEEAddress]TopologyNode{}
		for _, n := range nodes {
			seen[n.IEEEAddr]++
			byAddr[n.IEEEAddr] = n
		}

		assert.Equal(t, 1, seen[root], "the starting node must appear exactly once, with a zero parent")
		assert.Equal(t, zigbee.IEEEAddress(0), byAddr[root].Parent)
		assert.Equal(t, 1, seen[routerA])
		assert.Equal(t, 1, seen[routerB])
		assert.Equal(t, 1, seen[leaf])
		assert.Equal(t, 1, seen[shared], "shared neighbour discovered from two parents must appear once")
		assert.Equal(t, routerA, byAddr[leaf].Parent)
		assert.Len(t, emitted, len(nodes), "emit must fire once per discovered node")
	})

	t.Run("only Router neighbours are recursed into, not Coordinator or EndDevice", func(t *testing.T) {
		ctrl := &mocks.MockController{}
		s := &Shepherd{controller: ctrl, logger: defaultLogger(), enabled: true}

		root := zigbee.IEEEAddress(0x01)
		coord := zigbee.IEEEAddress(0x02)
		endDev := zigbee.IEEEAddress(0x03)

		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == root
		})).Return([]LqiEntry{
			{IEEEAddr: coord, Type: DeviceTypeCoordinator},
			{IEEEAddr: endDev, Type: DeviceTypeEndDevice},
		}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		nodes, err := s.Topology(ctx, root, nil)
		assert.NoError(t, err)

		seen := map[zigbee.IEEEAddress]int{}
		for _, n := range nodes {
			seen[n.IEEEAddr]++
		}

		assert.Equal(t, 1, seen[coord], "a Coordinator-typed neighbour is recorded but never scanned")
		assert.Equal(t, 1, seen[endDev])
		ctrl.AssertNotCalled(t, "Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == coord
		}))
		ctrl.AssertNotCalled(t, "Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == endDev
		}))
	})

	t.Run("stamps status from the registry, offline when unknown", func(t *testing.T) {
		ctrl := &mocks.MockController{}
		box := &mocks.MockDevBox{}
		root := zigbee.IEEEAddress(0x01)
		routerA := zigbee.IEEEAddress(0x02)

		known := newDevice(routerA, 0)
		known.Status = DeviceStatusOnline
		box.On("Find", mock.MatchedBy(func(p func(*Device) bool) bool { return p(known) })).Return(known, true)
		box.On("Find", mock.Anything).Return(nil, false)

		s := &Shepherd{controller: ctrl, logger: defaultLogger(), enabled: true, registry: newRegistry(box)}

		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == root
		})).Return([]LqiEntry{
			{IEEEAddr: routerA, Type: DeviceTypeRouter},
		}, nil)
		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.MatchedBy(func(args map[string]interface{}) bool {
			return args["ieeeAddr"] == routerA
		})).Return([]LqiEntry{}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		nodes, err := s.Topology(ctx, root, nil)
		assert.NoError(t, err)

		byAddr := map[zigbee.IEEEAddress]TopologyNode{}
		for _, n := range nodes {
			byAddr[n.IEEEAddr] = n
		}

		assert.Equal(t, DeviceStatusOnline, byAddr[routerA].Status)
		assert.Equal(t, DeviceStatusOffline, byAddr[root].Status, "an unregistered node defaults to offline")
	})

	t.Run("a failed LQI request is recorded on the node, not aborted", func(t *testing.T) {
		ctrl := &mocks.MockController{}
		s := &Shepherd{controller: ctrl, logger: defaultLogger(), enabled: true}

		root := zigbee.IEEEAddress(0x01)
		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.Anything).Return(nil, assert.AnError)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		nodes, err := s.Topology(ctx, root, nil)
		assert.NoError(t, err)
		assert.Len(t, nodes, 1)
		assert.Error(t, nodes[0].Err)
	})

	t.Run("skips the all-zero IEEE address", func(t *testing.T) {
		ctrl := &mocks.MockController{}
		s := &Shepherd{controller: ctrl, logger: defaultLogger(), enabled: true}

		root := zigbee.IEEEAddress(0x01)
		ctrl.On("Request", mock.Anything, "ZDO", "mgmtLqiReq", mock.Anything).Return([]LqiEntry{
			{IEEEAddr: zeroIEEEAddress, Type: DeviceTypeRouter},
		}, nil)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		nodes, err := s.Topology(ctx, root, nil)
		assert.NoError(t, err)
		assert.Len(t, nodes, 1, "only the starting node's own record remains")
		assert.Equal(t, root, nodes[0].IEEEAddr)
	})
}
