package shepherd

import "github.com/yovio/zigbee-shepherd/policy"

// PolicyEngine evaluates admission/interview acceptance rules.
type PolicyEngine = policy.Engine

// SerialSettings configures the transport the Controller opens. Defaults
// are applied by New.
type SerialSettings struct {
	BaudRate int
	RTSCTS   bool
}

func defaultSerialSettings() SerialSettings {
	return SerialSettings{BaudRate: 115200, RTSCTS: true}
}

// Options is the construction input of New: a transport path plus serial
// settings, network/NV parameters, and a persistence path.
type Options struct {
	Serial SerialSettings
	Net    NetworkConfiguration
	DBPath string

	Controller Controller
	AF         AFLayer
	Catalog    Catalog
	DevBox     DevBox

	// AcceptDevIncoming/AcceptDevInterview override the default
	// accept-all user hooks. Either may be nil, in which case the policy
	// engine (or, absent any policy, unconditional accept) decides.
	AcceptDevIncoming  func(DeviceIncomingInfo) bool
	AcceptDevInterview func(DeviceInterviewInfo) bool

	Policy *PolicyEngine

	// SuppressEvents, when true, disables the one-shot `ready` event on
	// Start.
	SuppressEvents bool
}

func (o Options) withDefaults() Options {
	if o.Serial.BaudRate == 0 {
		o.Serial = defaultSerialSettings()
	}
	if o.DBPath == "" {
		o.DBPath = "./data/shepherd.db"
	}
	return o
}
