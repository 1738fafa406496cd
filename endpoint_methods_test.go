package shepherd

import (
	"context"
	"testing"
	"time"

	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/yovio/zigbee-shepherd/mocks"
)

func TestEndpoint_Read_NoRouter(t *testing.T) {
	ep := newEndpoint(1)
	_, err := ep.Read(context.Background(), 6, zcl.AttributeID(0x0000))
	assert.ErrorIs(t, err, ErrProfileUnsupported)
}

func TestEndpoint_Read(t *testing.T) {
	t.Run("resolves to the scalar attrData on a successful record", func(t *testing.T) {
		af := &mocks.MockAFLayer{}
		s := &Shepherd{af: af, dispatcher: newDispatcher(defaultLogger())}
		ep := newEndpoint(1)
		ep.OnCoordinator = true
		s.attachZCLMethods(ep)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		af.On("ZCLFoundation", mock.Anything, ep, ep, zigbee.ClusterID(0x0000), "read", []zcl.AttributeID{0x0003}, RequestConfig{}).
			Return(FoundationResponse{Records: []AttributeRecord{{AttrID: 0x0003, Status: 0, AttrData: uint16(2400)}}}, nil)

		v, err := ep.Read(ctx, 0x0000, zcl.AttributeID(0x0003))
		assert.NoError(t, err)
		assert.Equal(t, uint16(2400), v)
	})

	t.Run("rejects with request unsuccess on a non-zero status", func(t *testing.T) {
		af := &mocks.MockAFLayer{}
		s := &Shepherd{af: af, dispatcher: newDispatcher(defaultLogger())}
		ep := newEndpoint(1)
		ep.OnCoordinator = true
		s.attachZCLMethods(ep)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		af.On("ZCLFoundation", mock.Anything, ep, ep, zigbee.ClusterID(0x0000), "read", []zcl.AttributeID{0x0003}, RequestConfig{}).
			Return(FoundationResponse{Records: []AttributeRecord{{AttrID: 0x0003, Status: 134}}}, nil)

		_, err := ep.Read(ctx, 0x0000, zcl.AttributeID(0x0003))
		assert.EqualError(t, err, "request unsuccess: 134")

		var unsuccess *RequestUnsuccessError
		assert.ErrorAs(t, err, &unsuccess)
		assert.Equal(t, uint8(134), unsuccess.Status)
	})
}

func TestEndpoint_Write(t *testing.T) {
	t.Run("resolves to data and refreshes the cache on a successful record", func(t *testing.T) {
		af := &mocks.MockAFLayer{}
		catalog := &mocks.MockCatalog{}
		s := &Shepherd{af: af, catalog: catalog, dispatcher: newDispatcher(defaultLogger())}
		ep := newEndpoint(1)
		ep.OnCoordinator = true
		s.attachZCLMethods(ep)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		catalog.On("AttrType", zigbee.ClusterID(6), zcl.AttributeID(0x0000)).Return(zcl.AttributeDataType(0x10), true)
		af.On("ZCLFoundation", mock.Anything, ep, ep, zigbee.ClusterID(6), "write",
			[]AttributeRecord{{AttrID: 0x0000, DataType: 0x10, AttrData: true}}, RequestConfig{}).
			Return(FoundationResponse{Records: []AttributeRecord{{AttrID: 0x0000, Status: 0}}}, nil)
		af.On("ZCLClusterAttrsReq", mock.Anything, ep, zigbee.ClusterID(6)).
			Return(map[string]interface{}{}, nil)

		v, err := ep.Write(ctx, 6, zcl.AttributeID(0x0000), true)
		assert.NoError(t, err)
		assert.Equal(t, true, v)
	})

	t.Run("rejects with request unsuccess on a non-zero status", func(t *testing.T) {
		af := &mocks.MockAFLayer{}
		s := &Shepherd{af: af, dispatcher: newDispatcher(defaultLogger())}
		ep := newEndpoint(1)
		ep.OnCoordinator = true
		s.attachZCLMethods(ep)

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		af.On("ZCLFoundation", mock.Anything, ep, ep, zigbee.ClusterID(6), "write", mock.Anything, RequestConfig{}).
			Return(FoundationResponse{Records: []AttributeRecord{{AttrID: 0x0000, Status: 134}}}, nil)
		af.On("ZCLClusterAttrsReq", mock.Anything, ep, zigbee.ClusterID(6)).
			Return(map[string]interface{}{}, nil)

		_, err := ep.Write(ctx, 6, zcl.AttributeID(0x0000), true)
		assert.EqualError(t, err, "request unsuccess: 134")
	})
}

func TestEndpoint_DelegatorOrSelf(t *testing.T) {
	t.Run("an endpoint already on the coordinator sources its own requests", func(t *testing.T) {
		ep := newEndpoint(1)
		ep.OnCoordinator = true
		assert.Same(t, ep, ep.delegatorOrSelf())
	})

	t.Run("a remote endpoint resolves to the matching profile delegator", func(t *testing.T) {
		s := &Shepherd{}
		coord := newDevice(zigbee.IEEEAddress(0x01), 0)
		delegatorEp := newEndpoint(11)
		delegatorEp.Delegator = true
		delegatorEp.ProfileID = 0x0104
		coord.addEndpoint(delegatorEp)
		s.coordinator = coord

		remote := newDevice(zigbee.IEEEAddress(0x02), 0)
		ep := newEndpoint(1)
		ep.ProfileID = 0x0104
		remote.addEndpoint(ep)
		ep.router = &requestRouter{s: s}

		assert.Same(t, delegatorEp, ep.delegatorOrSelf())
	})

	t.Run("falls back to itself when no delegator covers the profile", func(t *testing.T) {
		s := &Shepherd{coordinator: newDevice(zigbee.IEEEAddress(0x01), 0)}

		remote := newDevice(zigbee.IEEEAddress(0x02), 0)
		ep := newEndpoint(1)
		ep.ProfileID = 0x0104
		remote.addEndpoint(ep)
		ep.router = &requestRouter{s: s}

		assert.Same(t, ep, ep.delegatorOrSelf())
	})
}

func TestEndpoint_Report_BindsThenConfigures(t *testing.T) {
	af := &mocks.MockAFLayer{}
	ctrl := &mocks.MockController{}
	catalog := &mocks.MockCatalog{}
	s := &Shepherd{af: af, controller: ctrl, catalog: catalog, dispatcher: newDispatcher(defaultLogger())}

	coord := newDevice(zigbee.IEEEAddress(0x01), 0)
	delegatorEp := newEndpoint(11)
	delegatorEp.Delegator = true
	delegatorEp.ProfileID = 0x0104
	coord.addEndpoint(delegatorEp)
	s.coordinator = coord

	remote := newDevice(zigbee.IEEEAddress(0x02), 0)
	ep := newEndpoint(1)
	ep.ProfileID = 0x0104
	remote.addEndpoint(ep)
	s.attachZCLMethods(ep)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ctrl.On("Bind", mock.Anything, ep, zigbee.ClusterID(6), delegatorEp).Return(nil)
	catalog.On("AttrType", zigbee.ClusterID(6), zcl.AttributeID(0x0000)).Return(zcl.AttributeDataType(0x21), true)

	expectedPayload := map[string]interface{}{
		"direction":   0,
		"minInterval": uint16(1),
		"maxInterval": uint16(60),
		"records": []AttributeRecord{{AttrID: 0x0000, DataType: 0x21, AttrData: uint16(1)}},
	}
	af.On("ZCLFoundation", mock.Anything, delegatorEp, ep, zigbee.ClusterID(6), "configReport", expectedPayload, RequestConfig{}).
		Return(FoundationResponse{}, nil)

	err := ep.Report(ctx, 6, zcl.AttributeID(0x0000), 1, 60, uint16(1))
	assert.NoError(t, err)
	ctrl.AssertExpectations(t)
	af.AssertExpectations(t)
}

func TestEndpoint_Report_NoDelegator(t *testing.T) {
	s := &Shepherd{coordinator: newDevice(zigbee.IEEEAddress(0x01), 0)}

	remote := newDevice(zigbee.IEEEAddress(0x02), 0)
	ep := newEndpoint(1)
	remote.addEndpoint(ep)
	s.attachZCLMethods(ep)

	err := ep.Report(context.Background(), 6, zcl.AttributeID(0x0000), 1, 60, uint16(1))
	assert.ErrorIs(t, err, ErrProfileUnsupported)
}
