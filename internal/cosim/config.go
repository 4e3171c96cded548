package cosim

// LogCallback receives a single log line at the given severity.
type LogCallback func(severity Severity, message string)

// SimulationCallback is invoked for simulation-time lifecycle transitions
// that only carry a timestamp (start/stop/pause/continue/begin-step/end-step).
type SimulationCallback func(simTime SimulationTime)

// SimulationTerminatedCallback is invoked when the simulation ends, carrying
// the reason it ended.
type SimulationTerminatedCallback func(simTime SimulationTime, reason TerminateReason)

// IncomingSignalChangedCallback fires when a signal value changes during
// IoBuffer.Deserialize.
type IncomingSignalChangedCallback func(simTime SimulationTime, signal IoSignal, length uint32, value []byte)

// CanMessageReceivedCallback fires for each CanMessage decoded during
// BusBuffer.Deserialize, when registered in place of queueing.
type CanMessageReceivedCallback func(simTime SimulationTime, controller CanController, message CanMessage)

// EthMessageReceivedCallback is the EthMessage analogue of CanMessageReceivedCallback.
type EthMessageReceivedCallback func(simTime SimulationTime, controller EthController, message EthMessage)

// LinMessageReceivedCallback is the LinMessage analogue of CanMessageReceivedCallback.
type LinMessageReceivedCallback func(simTime SimulationTime, controller LinController, message LinMessage)

// FrMessageReceivedCallback is the FrMessage analogue of CanMessageReceivedCallback.
type FrMessageReceivedCallback func(simTime SimulationTime, controller FrController, message FrMessage)

// Callbacks aggregates every optional user callback a client or server may
// register. Nil fields mean "not registered"; callers must nil-check before
// invoking.
type Callbacks struct {
	SimulationStartedCallback     SimulationCallback
	SimulationStoppedCallback     SimulationCallback
	SimulationTerminatedCallback  SimulationTerminatedCallback
	SimulationPausedCallback      SimulationCallback
	SimulationContinuedCallback   SimulationCallback
	SimulationBeginStepCallback   SimulationCallback
	SimulationEndStepCallback     SimulationCallback
	IncomingSignalChangedCallback IncomingSignalChangedCallback
	CanMessageReceivedCallback    CanMessageReceivedCallback
	EthMessageReceivedCallback    EthMessageReceivedCallback
	LinMessageReceivedCallback    LinMessageReceivedCallback
	FrMessageReceivedCallback     FrMessageReceivedCallback
	LogCallback                   LogCallback
}

// ConnectConfig parameterizes a client's connection attempt.
type ConnectConfig struct {
	RemoteIPAddress string
	ServerName      string
	ClientName      string
	RemotePort      uint16
	LocalPort       uint16
}

// ServerConfig parameterizes a co-sim server instance.
type ServerConfig struct {
	ServerName         string
	Port               uint16
	EnableRemoteAccess bool
	RegisterAtPortMapper bool
	StepSize           SimulationTime
	IncomingSignals    []IoSignal
	OutgoingSignals    []IoSignal
	CanControllers     []CanController
	EthControllers     []EthController
	LinControllers     []LinController
	FrControllers      []FrController
	Callbacks          Callbacks
}
