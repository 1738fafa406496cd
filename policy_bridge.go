package shepherd

import (
	"context"

	"github.com/yovio/zigbee-shepherd/policy"
)

// policyAcceptIncoming is the default acceptDevIncoming hook: it defers
// to the configured PolicyEngine, or accepts unconditionally when none
// is configured or evaluation fails.
func (s *Shepherd) policyAcceptIncoming(info DeviceIncomingInfo) bool {
	accept, err := s.opts.Policy.Evaluate(incomingToPolicyInput(info))
	if err != nil {
		s.logger.LogWarn(context.Background(), "Policy evaluation failed on incoming device, defaulting to accept.")
		return true
	}
	return accept
}

func (s *Shepherd) policyAcceptInterview(info DeviceInterviewInfo) bool {
	if !info.Success {
		return true
	}

	accept, err := s.opts.Policy.Evaluate(policy.Input{IEEEAddr: info.IEEEAddr.String()})
	if err != nil {
		return true
	}
	return accept
}

func incomingToPolicyInput(info DeviceIncomingInfo) policy.Input {
	eps := make([]policy.EndpointInput, 0, len(info.Endpoints))
	for _, ep := range info.Endpoints {
		in := make([]uint16, len(ep.InClusterList))
		for i, c := range ep.InClusterList {
			in[i] = uint16(c)
		}
		out := make([]uint16, len(ep.OutClusterList))
		for i, c := range ep.OutClusterList {
			out[i] = uint16(c)
		}

		eps = append(eps, policy.EndpointInput{
			ID:          ep.ID,
			ProfileID:   uint16(ep.ProfileID),
			DeviceID:    ep.DeviceID,
			InClusters:  in,
			OutClusters: out,
		})
	}

	return policy.Input{
		IEEEAddr:    info.IEEEAddr.String(),
		LogicalType: info.LogicalType.String(),
		Endpoints:   eps,
	}
}
