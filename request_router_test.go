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

func newTestRouterShepherd(af *mocks.MockAFLayer) (*Shepherd, *Endpoint) {
	s := &Shepherd{af: af, dispatcher: newDispatcher(defaultLogger())}
	dev := newDevice(zigbee.IEEEAddress(0x0102030405060708), 0xaabb)
	ep := newEndpoint(1)
	dev.addEndpoint(ep)
	s.attachZCLMethods(ep)
	return s, ep
}

func TestRequestRouter_Foundation_Read(t *testing.T) {
	af := &mocks.MockAFLayer{}
	s, ep := newTestRouterShepherd(af)

	af.On("ZCLFoundation", mock.Anything, ep, ep, zigbee.ClusterID(6), "read", mock.Anything, RequestConfig{}).
		Return(FoundationResponse{
			Records: []AttributeRecord{{AttrID: 0x0000, Status: 0, AttrData: true}},
		}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := ep.router.Foundation(ctx, ep, ep, 6, "read", []zcl.AttributeID{0x0000}, RequestConfig{})
	assert.NoError(t, err)
	assert.Len(t, resp.Records, 1)

	assert.Equal(t, true, ep.Cluster(6).Snapshot()[attrIDNumericKey(0x0000)])

	ind, err := s.dispatcher.readEvent(ctx)
	assert.NoError(t, err)
	assert.Equal(t, IndDevChange, ind.Kind)
	assert.Equal(t, true, ind.DevChange.Data[attrIDNumericKey(0x0000)])
}

func TestRequestRouter_Foundation_Write_RefreshesFromQuery(t *testing.T) {
	af := &mocks.MockAFLayer{}
	s, ep := newTestRouterShepherd(af)

	af.On("ZCLFoundation", mock.Anything, ep, ep, zigbee.ClusterID(6), "write", mock.Anything, RequestConfig{}).
		Return(FoundationResponse{}, nil)
	af.On("ZCLClusterAttrsReq", mock.Anything, ep, zigbee.ClusterID(6)).
		Return(map[string]interface{}{attrIDNumericKey(0x0000): false}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ep.router.Foundation(ctx, ep, ep, 6, "write", []AttributeRecord{{AttrID: 0x0000, AttrData: false}}, RequestConfig{})
	assert.NoError(t, err)

	ind, err := s.dispatcher.readEvent(ctx)
	assert.NoError(t, err)
	assert.Equal(t, IndDevChange, ind.Kind)
	assert.Equal(t, false, ind.DevChange.Data[attrIDNumericKey(0x0000)])
}

func TestRequestRouter_Functional_SkipFinalizeSkipsRefresh(t *testing.T) {
	af := &mocks.MockAFLayer{}
	_, ep := newTestRouterShepherd(af)

	af.On("ZCLFunctional", mock.Anything, ep, ep, zigbee.ClusterID(6), "on", mock.Anything, RequestConfig{SkipFinalize: true}).
		Return(FunctionalResponse{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := ep.router.Functional(ctx, ep, ep, 6, "on", nil, RequestConfig{SkipFinalize: true})
	assert.NoError(t, err)
	af.AssertNotCalled(t, "ZCLClusterAttrsReq", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestRouter_ApplyReport(t *testing.T) {
	af := &mocks.MockAFLayer{}
	_, ep := newTestRouterShepherd(af)
	rr := ep.router

	ct := ep.Cluster(6)
	ct.set(attrIDNumericKey(0x0000), true)

	reported, diff := rr.applyReport(ep, 6, []AttributeRecord{
		{AttrID: 0x0000, AttrData: true},
		{AttrID: 0x0001, AttrData: 42},
	})

	assert.Equal(t, map[string]interface{}{
		attrIDNumericKey(0x0000): true,
		attrIDNumericKey(0x0001): 42,
	}, reported)

	assert.Equal(t, map[string]interface{}{
		attrIDNumericKey(0x0001): 42,
	}, diff)
}
