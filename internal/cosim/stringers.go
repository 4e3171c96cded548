package cosim

import (
	"fmt"
	"strings"
)

// DataToString renders a byte slice as a "01 AB 02 ..." hex dump, matching
// the original's debug renderer used in trace log lines.
func DataToString(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

func (m CanMessage) String() string {
	return fmt.Sprintf("CAN Message { Timestamp: %s, ControllerId: %d, Id: %d, Flags: %d, Length: %d, Data: %s }",
		m.Timestamp, m.ControllerID, m.ID, m.Flags, m.Length, DataToString(m.Data[:m.Length]))
}

func (m EthMessage) String() string {
	return fmt.Sprintf("ETH Message { Timestamp: %s, ControllerId: %d, Flags: %d, Length: %d, Data: %s }",
		m.Timestamp, m.ControllerID, m.Flags, m.Length, DataToString(m.Data[:m.Length]))
}

func (m LinMessage) String() string {
	return fmt.Sprintf("LIN Message { Timestamp: %s, ControllerId: %d, Id: %d, Flags: %d, Length: %d, Data: %s }",
		m.Timestamp, m.ControllerID, m.ID, m.Flags, m.Length, DataToString(m.Data[:m.Length]))
}

func (m FrMessage) String() string {
	return fmt.Sprintf("FR Message { Timestamp: %s, ControllerId: %d, SlotId: %d, Cycle: %d, Length: %d, Data: %s }",
		m.Timestamp, m.ControllerID, m.SlotID, m.Cycle, m.Length, DataToString(m.Data[:m.Length]))
}
