// Package cosim holds the shared data model of the co-simulation core:
// simulation time, identifiers, IO signals, bus controllers/messages and
// the small closed enums used throughout the protocol and buffers.
package cosim

import (
	"fmt"
	"strconv"
	"strings"
)

// SimulationTime is a monotone count of nanoseconds since the start of a run.
type SimulationTime int64

// SimulationTimeResolutionPerSecond is the number of SimulationTime units per second.
const SimulationTimeResolutionPerSecond = 1_000_000_000

// String renders the time as seconds with a trimmed fractional part,
// e.g. "1.5" for 1_500_000_000 or "0" for 0.
func (t SimulationTime) String() string {
	ns := int64(t)
	neg := ns < 0
	if neg {
		ns = -ns
	}
	repr := strconv.FormatInt(ns, 10)
	if len(repr) < 10 {
		repr = strings.Repeat("0", 10-len(repr)) + repr
	}
	dot := len(repr) - 9
	repr = repr[:dot] + "." + repr[dot:]
	repr = strings.TrimRight(repr, "0")
	repr = strings.TrimSuffix(repr, ".")
	if neg {
		repr = "-" + repr
	}
	return repr
}

// Result mirrors the small closed result-kind set every buffer and channel
// operation returns to its caller (spec §6).
type Result uint32

const (
	ResultOk Result = iota
	ResultError
	ResultEmpty
	ResultFull
	ResultInvalidArgument
	ResultDisconnected
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "Ok"
	case ResultError:
		return "Error"
	case ResultEmpty:
		return "Empty"
	case ResultFull:
		return "Full"
	case ResultInvalidArgument:
		return "InvalidArgument"
	case ResultDisconnected:
		return "Disconnected"
	default:
		return "<Invalid Result>"
	}
}

// CoSimType distinguishes which side of a session a component plays.
type CoSimType uint32

const (
	CoSimTypeClient CoSimType = iota
	CoSimTypeServer
)

func (t CoSimType) String() string {
	if t == CoSimTypeServer {
		return "Server"
	}
	return "Client"
}

// ConnectionKind distinguishes a same-host local transport from a remote TCP one.
type ConnectionKind uint32

const (
	ConnectionKindRemote ConnectionKind = iota
	ConnectionKindLocal
)

func (k ConnectionKind) String() string {
	if k == ConnectionKindLocal {
		return "Local"
	}
	return "Remote"
}

// Command is a server-initiated lifecycle or step command, or a
// client-requested "next command" piggy-backed on a StepOk/PingOk.
type Command uint32

const (
	CommandNone Command = iota
	CommandStep
	CommandStart
	CommandStop
	CommandTerminate
	CommandPause
	CommandContinue
	CommandTerminateFinished
	CommandPing
)

func (c Command) String() string {
	switch c {
	case CommandNone:
		return "None"
	case CommandStep:
		return "Step"
	case CommandStart:
		return "Start"
	case CommandStop:
		return "Stop"
	case CommandTerminate:
		return "Terminate"
	case CommandPause:
		return "Pause"
	case CommandContinue:
		return "Continue"
	case CommandTerminateFinished:
		return "TerminateFinished"
	case CommandPing:
		return "Ping"
	default:
		return "<Invalid Command>"
	}
}

// TerminateReason distinguishes a clean end-of-run Terminate from an error-driven one.
type TerminateReason uint32

const (
	TerminateReasonFinished TerminateReason = iota
	TerminateReasonError
)

func (r TerminateReason) String() string {
	if r == TerminateReasonError {
		return "Error"
	}
	return "Finished"
}

// ConnectionState is the coarse connected/disconnected state surfaced to callers.
type ConnectionState uint32

const (
	ConnectionStateDisconnected ConnectionState = iota
	ConnectionStateConnected
)

func (s ConnectionState) String() string {
	if s == ConnectionStateConnected {
		return "Connected"
	}
	return "Disconnected"
}

// SimulationState is the co-sim server's command-emission state machine position.
type SimulationState uint32

const (
	SimulationStateUnloaded SimulationState = iota
	SimulationStateStopped
	SimulationStateRunning
	SimulationStatePaused
	SimulationStateTerminated
)

func (s SimulationState) String() string {
	switch s {
	case SimulationStateUnloaded:
		return "Unloaded"
	case SimulationStateStopped:
		return "Stopped"
	case SimulationStateRunning:
		return "Running"
	case SimulationStatePaused:
		return "Paused"
	case SimulationStateTerminated:
		return "Terminated"
	default:
		return "<Unknown SimulationState>"
	}
}

// DataType is the scalar element type of an IO signal.
type DataType uint32

const (
	DataTypeBool DataType = iota + 1
	DataTypeInt8
	DataTypeInt16
	DataTypeInt32
	DataTypeInt64
	DataTypeUInt8
	DataTypeUInt16
	DataTypeUInt32
	DataTypeUInt64
	DataTypeFloat32
	DataTypeFloat64
)

// Size returns the element byte size of the data type, or 0 if unknown.
func (d DataType) Size() uint32 {
	switch d {
	case DataTypeBool, DataTypeInt8, DataTypeUInt8:
		return 1
	case DataTypeInt16, DataTypeUInt16:
		return 2
	case DataTypeInt32, DataTypeUInt32, DataTypeFloat32:
		return 4
	case DataTypeInt64, DataTypeUInt64, DataTypeFloat64:
		return 8
	default:
		return 0
	}
}

func (d DataType) String() string {
	switch d {
	case DataTypeBool:
		return "Bool"
	case DataTypeInt8:
		return "Int8"
	case DataTypeInt16:
		return "Int16"
	case DataTypeInt32:
		return "Int32"
	case DataTypeInt64:
		return "Int64"
	case DataTypeUInt8:
		return "UInt8"
	case DataTypeUInt16:
		return "UInt16"
	case DataTypeUInt32:
		return "UInt32"
	case DataTypeUInt64:
		return "UInt64"
	case DataTypeFloat32:
		return "Float32"
	case DataTypeFloat64:
		return "Float64"
	default:
		return "<Invalid DataType>"
	}
}

// SizeKind distinguishes fixed-length signals from variable-length ones.
type SizeKind uint32

const (
	SizeKindFixed SizeKind = iota + 1
	SizeKindVariable
)

func (k SizeKind) String() string {
	switch k {
	case SizeKindFixed:
		return "Fixed"
	case SizeKindVariable:
		return "Variable"
	default:
		return "<Invalid SizeKind>"
	}
}

// IoSignalId is an opaque, session-stable tag identifying an IO signal.
type IoSignalId uint32

// IoSignal describes one signal's immutable shape, fixed at connect time.
type IoSignal struct {
	ID       IoSignalId
	Length   uint32 // max length in elements
	DataType DataType
	SizeKind SizeKind
	Name     string
}

func (s IoSignal) String() string {
	return fmt.Sprintf("IO Signal { Id: %d, Length: %d, DataType: %s, SizeKind: %s, Name: %q }",
		s.ID, s.Length, s.DataType, s.SizeKind, s.Name)
}

// BusControllerId is an opaque, session-stable tag identifying a bus controller.
type BusControllerId uint32

// BusMessageId is an opaque per-bus message identifier (CAN/LIN arbitration id).
type BusMessageId uint32

// Bus payload maximum lengths (spec §6).
const (
	CanMessageMaxLength = 64
	EthMessageMaxLength = 9018
	LinMessageMaxLength = 8
	FrMessageMaxLength  = 254
	EthAddressLength    = 6
)

// CanMessageFlags are bit flags carried on a CanMessage.
type CanMessageFlags uint32

const (
	CanMessageFlagLoopback CanMessageFlags = 1 << iota
	CanMessageFlagError
	CanMessageFlagDrop
	CanMessageFlagExtendedID
	CanMessageFlagBitRateSwitch
	CanMessageFlagFlexibleDataRateFormat
)

func (f CanMessageFlags) Has(flag CanMessageFlags) bool { return f&flag == flag }

// CanController describes a CAN/CAN-FD controller.
type CanController struct {
	ID                            BusControllerId
	QueueSize                     uint32
	BitsPerSecond                 uint64
	FlexibleDataRateBitsPerSecond uint64
	Name                          string
	ChannelName                   string
	ClusterName                   string
}

// CanMessage is one CAN frame exchanged through the bus buffer.
type CanMessage struct {
	Timestamp    SimulationTime
	ControllerID BusControllerId
	ID           BusMessageId
	Flags        CanMessageFlags
	Length       uint32
	Data         [CanMessageMaxLength]byte
}


// EthMessageFlags are bit flags carried on an EthMessage.
type EthMessageFlags uint32

const (
	EthMessageFlagLoopback EthMessageFlags = 1 << iota
	EthMessageFlagError
	EthMessageFlagDrop
)

func (f EthMessageFlags) Has(flag EthMessageFlags) bool { return f&flag == flag }

// EthController describes an Ethernet controller.
type EthController struct {
	ID            BusControllerId
	QueueSize     uint32
	BitsPerSecond uint64
	MacAddress    [EthAddressLength]byte
	Name          string
	ChannelName   string
	ClusterName   string
}

// EthMessage is one Ethernet frame exchanged through the bus buffer.
type EthMessage struct {
	Timestamp    SimulationTime
	ControllerID BusControllerId
	Reserved     uint32
	Flags        EthMessageFlags
	Length       uint32
	Data         [EthMessageMaxLength]byte
}


// LinControllerType distinguishes a responder node from the commander (master) node.
type LinControllerType uint32

const (
	LinControllerTypeResponder LinControllerType = iota + 1
	LinControllerTypeCommander
)

func (t LinControllerType) String() string {
	if t == LinControllerTypeCommander {
		return "Commander"
	}
	return "Responder"
}

// LinMessageFlags are bit flags carried on a LinMessage.
type LinMessageFlags uint32

const (
	LinMessageFlagLoopback LinMessageFlags = 1 << iota
	LinMessageFlagError
	LinMessageFlagDrop
	LinMessageFlagHeader
	LinMessageFlagResponse
	LinMessageFlagWakeEvent
	LinMessageFlagSleepEvent
	LinMessageFlagEnhancedChecksum
	LinMessageFlagTransferOnce
	LinMessageFlagParityFailure
	LinMessageFlagCollision
	LinMessageFlagNoResponse
)

func (f LinMessageFlags) Has(flag LinMessageFlags) bool { return f&flag == flag }

// LinController describes a LIN controller.
type LinController struct {
	ID            BusControllerId
	QueueSize     uint32
	BitsPerSecond uint64
	Type          LinControllerType
	Name          string
	ChannelName   string
	ClusterName   string
}

// LinMessage is one LIN frame exchanged through the bus buffer.
type LinMessage struct {
	Timestamp    SimulationTime
	ControllerID BusControllerId
	ID           BusMessageId
	Flags        LinMessageFlags
	Length       uint32
	Data         [LinMessageMaxLength]byte
}


// FrController describes a FlexRay controller (V2 protocol addition). Field
// shape follows spec.md's "cluster geometry" description; the original
// source's FlexRay header was outside the retrieval pack (see DESIGN.md).
type FrController struct {
	ID              BusControllerId
	QueueSize       uint32
	ClusterID       uint32
	ClusterBaudRate uint64
	NodeID          uint32
	Name            string
	ChannelName     string
	ClusterName     string
}

// FrMessage is one FlexRay frame exchanged through the bus buffer.
type FrMessage struct {
	Timestamp    SimulationTime
	ControllerID BusControllerId
	SlotID       uint32
	Cycle        uint8
	Flags        uint32
	Length       uint32
	Data         [FrMessageMaxLength]byte
}


// Severity is the log-level style used by user-facing log callbacks.
type Severity uint32

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityTrace
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "Error"
	case SeverityWarning:
		return "Warning"
	case SeverityInfo:
		return "Info"
	case SeverityTrace:
		return "Trace"
	default:
		return "<Invalid Severity>"
	}
}
