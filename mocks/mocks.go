package mocks

import (
	"context"

	"github.com/shimmeringbee/zcl"
	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/mock"
	"github.com/yovio/zigbee-shepherd"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockController) Close() error {
	return m.Called().Error(0)
}

func (m *MockController) Reset(ctx context.Context, mode shepherd.ResetMode) error {
	return m.Called(ctx, mode).Error(0)
}

func (m *MockController) PermitJoin(ctx context.Context, d shepherd.PermitJoinDuration, joinType shepherd.PermitJoinType) error {
	return m.Called(ctx, d, joinType).Error(0)
}

func (m *MockController) Request(ctx context.Context, subsystem string, command string, args interface{}) (interface{}, error) {
	a := m.Called(ctx, subsystem, command, args)
	return a.Get(0), a.Error(1)
}

func (m *MockController) RegisterEndpoint(ctx context.Context, ep *shepherd.Endpoint) error {
	return m.Called(ctx, ep).Error(0)
}

func (m *MockController) Bind(ctx context.Context, ep *shepherd.Endpoint, cId zigbee.ClusterID, target *shepherd.Endpoint) error {
	return m.Called(ctx, ep, cId, target).Error(0)
}

func (m *MockController) Unbind(ctx context.Context, ep *shepherd.Endpoint, cId zigbee.ClusterID, target *shepherd.Endpoint) error {
	return m.Called(ctx, ep, cId, target).Error(0)
}

func (m *MockController) Remove(ctx context.Context, ieee zigbee.IEEEAddress, cfg shepherd.RemoveConfig) error {
	return m.Called(ctx, ieee, cfg).Error(0)
}

func (m *MockController) GetCoordinator(ctx context.Context) (*shepherd.Device, error) {
	a := m.Called(ctx)
	dev, _ := a.Get(0).(*shepherd.Device)
	return dev, a.Error(1)
}

func (m *MockController) GetNetInfo(ctx context.Context) (shepherd.NetInfo, error) {
	a := m.Called(ctx)
	info, _ := a.Get(0).(shepherd.NetInfo)
	return info, a.Error(1)
}

func (m *MockController) GetFirmwareInfo(ctx context.Context) (string, error) {
	a := m.Called(ctx)
	return a.String(0), a.Error(1)
}

func (m *MockController) SetNVParams(ctx context.Context, net shepherd.NetworkConfiguration) error {
	return m.Called(ctx, net).Error(0)
}

func (m *MockController) Events() <-chan shepherd.RawIndication {
	a := m.Called()
	ch, _ := a.Get(0).(<-chan shepherd.RawIndication)
	return ch
}

type MockAFLayer struct {
	mock.Mock
}

func (m *MockAFLayer) ZCLFoundation(ctx context.Context, src, dst *shepherd.Endpoint, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg shepherd.RequestConfig) (shepherd.FoundationResponse, error) {
	a := m.Called(ctx, src, dst, cId, cmd, zclData, cfg)
	resp, _ := a.Get(0).(shepherd.FoundationResponse)
	return resp, a.Error(1)
}

func (m *MockAFLayer) ZCLFunctional(ctx context.Context, src, dst *shepherd.Endpoint, cId zigbee.ClusterID, cmd string, zclData interface{}, cfg shepherd.RequestConfig) (shepherd.FunctionalResponse, error) {
	a := m.Called(ctx, src, dst, cId, cmd, zclData, cfg)
	resp, _ := a.Get(0).(shepherd.FunctionalResponse)
	return resp, a.Error(1)
}

func (m *MockAFLayer) ZCLClusterAttrsReq(ctx context.Context, ep *shepherd.Endpoint, cId zigbee.ClusterID) (map[string]interface{}, error) {
	a := m.Called(ctx, ep, cId)
	data, _ := a.Get(0).(map[string]interface{})
	return data, a.Error(1)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Cluster(cId zigbee.ClusterID) (string, bool) {
	a := m.Called(cId)
	return a.String(0), a.Bool(1)
}

func (m *MockCatalog) Attr(cId zigbee.ClusterID, attrId zcl.AttributeID) (string, bool) {
	a := m.Called(cId, attrId)
	return a.String(0), a.Bool(1)
}

func (m *MockCatalog) AttrType(cId zigbee.ClusterID, attrId zcl.AttributeID) (zcl.AttributeDataType, bool) {
	a := m.Called(cId, attrId)
	dt, _ := a.Get(0).(zcl.AttributeDataType)
	return dt, a.Bool(1)
}

func (m *MockCatalog) Foundation(cmd string) (string, bool) {
	a := m.Called(cmd)
	return a.String(0), a.Bool(1)
}

func (m *MockCatalog) Status(code uint8) string {
	return m.Called(code).String(0)
}

func (m *MockCatalog) ClusterByName(name string) (zigbee.ClusterID, bool) {
	a := m.Called(name)
	id, _ := a.Get(0).(zigbee.ClusterID)
	return id, a.Bool(1)
}

func (m *MockCatalog) AttrByName(cId zigbee.ClusterID, name string) (zcl.AttributeID, bool) {
	a := m.Called(cId, name)
	id, _ := a.Get(0).(zcl.AttributeID)
	return id, a.Bool(1)
}

type MockDevBox struct {
	mock.Mock
}

func (m *MockDevBox) Add(dev *shepherd.Device) (int, error) {
	a := m.Called(dev)
	return a.Int(0), a.Error(1)
}

func (m *MockDevBox) Set(id int, dev *shepherd.Device) error {
	return m.Called(id, dev).Error(0)
}

func (m *MockDevBox) Get(id int) (*shepherd.Device, bool) {
	a := m.Called(id)
	dev, _ := a.Get(0).(*shepherd.Device)
	return dev, a.Bool(1)
}

func (m *MockDevBox) Find(predicate func(*shepherd.Device) bool) (*shepherd.Device, bool) {
	a := m.Called(predicate)
	dev, _ := a.Get(0).(*shepherd.Device)
	return dev, a.Bool(1)
}

func (m *MockDevBox) Remove(id int) error {
	return m.Called(id).Error(0)
}

func (m *MockDevBox) Sync(id int) error {
	return m.Called(id).Error(0)
}

func (m *MockDevBox) ExportAllIds() []int {
	a := m.Called()
	ids, _ := a.Get(0).([]int)
	return ids
}

func (m *MockDevBox) ExportAllObjs() []*shepherd.Device {
	a := m.Called()
	devs, _ := a.Get(0).([]*shepherd.Device)
	return devs
}

func (m *MockDevBox) IsEmpty() bool {
	return m.Called().Bool(0)
}

type MockZive struct {
	mock.Mock
}

func (m *MockZive) SimpleDescriptor() shepherd.SimpleDescriptor {
	a := m.Called()
	desc, _ := a.Get(0).(shepherd.SimpleDescriptor)
	return desc
}

func (m *MockZive) OnZCLFoundation(ctx context.Context, msg shepherd.FoundationResponse) {
	m.Called(ctx, msg)
}

func (m *MockZive) OnZCLFunctional(ctx context.Context, msg shepherd.FunctionalResponse) {
	m.Called(ctx, msg)
}

var (
	_ shepherd.Controller = (*MockController)(nil)
	_ shepherd.AFLayer    = (*MockAFLayer)(nil)
	_ shepherd.Catalog    = (*MockCatalog)(nil)
	_ shepherd.DevBox     = (*MockDevBox)(nil)
	_ shepherd.Zive       = (*MockZive)(nil)
)
