package shepherd

import (
	"testing"

	"github.com/shimmeringbee/zigbee"
	"github.com/stretchr/testify/assert"
	"github.com/yovio/zigbee-shepherd/policy"
)

func TestIncomingToPolicyInput(t *testing.T) {
	info := DeviceIncomingInfo{
		IEEEAddr:    zigbee.IEEEAddress(0x0102030405060708),
		LogicalType: zigbee.Router,
		Endpoints: []DiscoveredEndpoint{
			{ID: 1, ProfileID: 0x0104, DeviceID: 0x0000, InClusterList: []zigbee.ClusterID{0, 6}, OutClusterList: []zigbee.ClusterID{6}},
		},
	}

	in := incomingToPolicyInput(info)
	assert.Equal(t, info.IEEEAddr.String(), in.IEEEAddr)
	assert.Equal(t, "Router", in.LogicalType)
	assert.Len(t, in.Endpoints, 1)
	assert.Equal(t, []uint16{0, 6}, in.Endpoints[0].InClusters)
	assert.Equal(t, []uint16{6}, in.Endpoints[0].OutClusters)
}

func TestPolicyAcceptIncoming(t *testing.T) {
	t.Run("accepts unconditionally with no policy configured", func(t *testing.T) {
		s := &Shepherd{logger: defaultLogger()}
		assert.True(t, s.policyAcceptIncoming(DeviceIncomingInfo{LogicalType: zigbee.Router}))
	})

	t.Run("defers to a configured policy engine", func(t *testing.T) {
		eng, err := policy.Compile([]policy.Rule{{Filter: "true", Accept: false}})
		assert.NoError(t, err)

		s := &Shepherd{logger: defaultLogger(), opts: Options{Policy: eng}}
		assert.False(t, s.policyAcceptIncoming(DeviceIncomingInfo{LogicalType: zigbee.Router}))
	})
}

func TestPolicyAcceptInterview(t *testing.T) {
	t.Run("a failed interview is always accepted regardless of policy", func(t *testing.T) {
		eng, err := policy.Compile([]policy.Rule{{Filter: "true", Accept: false}})
		assert.NoError(t, err)

		s := &Shepherd{opts: Options{Policy: eng}}
		assert.True(t, s.policyAcceptInterview(DeviceInterviewInfo{Success: false}))
	})
}
