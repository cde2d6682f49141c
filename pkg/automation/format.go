package automation

import "encoding/binary"

// Magic identifies a compiled-rule blob ('GWAR' read as a little-endian u32).
const Magic uint32 = 0x52415747

// Version is the only compiled-rule wire version this package understands.
const Version uint16 = 2

// Fixed record sizes on the wire. These are encoding sizes, not
// unsafe.Sizeof of the Go structs: every record is field-copied with
// encoding/binary rather than memcpy'd, so alignment/padding differences
// between platforms never leak into the format.
const (
	headerSize      = 48
	automationSize  = 36
	triggerSize     = 16
	conditionSize   = 20
	actionSize      = 32
	sanityMaxBuffer = 16 << 20 // 16 MiB ceiling -> ErrOutOfMemory instead of a huge alloc
	sanityMaxCount  = 1 << 16  // per-array record count ceiling
)

// EventType discriminates a trigger's matching rules.
type EventType uint8

const (
	EventZigbeeCommand    EventType = 1
	EventZigbeeAttrReport EventType = 2
	EventDeviceJoin       EventType = 3
	EventDeviceLeave      EventType = 4
)

func eventTypeFromString(s string) EventType {
	switch s {
	case "zigbee.command":
		return EventZigbeeCommand
	case "zigbee.attr_report":
		return EventZigbeeAttrReport
	case "device.join":
		return EventDeviceJoin
	case "device.leave":
		return EventDeviceLeave
	default:
		return 0
	}
}

// EventTypeFromString exposes eventTypeFromString for callers outside the
// package (the rules engine maps an incoming event's type string the same
// way the compiler maps a trigger document's event_type).
func EventTypeFromString(s string) EventType { return eventTypeFromString(s) }

// Op is a condition's comparison operator.
type Op uint8

const (
	OpEQ Op = 1
	OpNE Op = 2
	OpGT Op = 3
	OpLT Op = 4
	OpGE Op = 5
	OpLE Op = 6
)

func opFromString(s string) Op {
	switch s {
	case "==":
		return OpEQ
	case "!=":
		return OpNE
	case ">":
		return OpGT
	case "<":
		return OpLT
	case ">=":
		return OpGE
	case "<=":
		return OpLE
	default:
		return 0
	}
}

// ValType discriminates a condition's literal value representation.
type ValType uint8

const (
	ValF64  ValType = 1
	ValBool ValType = 2
)

// ActKind discriminates an action record's target shape.
type ActKind uint8

const (
	ActDevice ActKind = 1
	ActGroup  ActKind = 2
	ActScene  ActKind = 3
	ActBind   ActKind = 4
)

// ActFlag holds kind-specific bit flags on an action record.
type ActFlag uint8

const ActFlagUnbind ActFlag = 1 << 0

// Header is the fixed 48-byte compiled-rule file header.
type Header struct {
	Magic              uint32
	Version            uint16
	Reserved           uint16
	AutomationCount    uint32
	TriggerCountTotal  uint32
	ConditionCountTotal uint32
	ActionCountTotal   uint32
	AutomationsOff     uint32
	TriggersOff        uint32
	ConditionsOff      uint32
	ActionsOff         uint32
	StringsOff         uint32
	StringsSize        uint32
}

func (h *Header) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], h.Magic)
	binary.LittleEndian.PutUint16(b[4:], h.Version)
	binary.LittleEndian.PutUint16(b[6:], h.Reserved)
	binary.LittleEndian.PutUint32(b[8:], h.AutomationCount)
	binary.LittleEndian.PutUint32(b[12:], h.TriggerCountTotal)
	binary.LittleEndian.PutUint32(b[16:], h.ConditionCountTotal)
	binary.LittleEndian.PutUint32(b[20:], h.ActionCountTotal)
	binary.LittleEndian.PutUint32(b[24:], h.AutomationsOff)
	binary.LittleEndian.PutUint32(b[28:], h.TriggersOff)
	binary.LittleEndian.PutUint32(b[32:], h.ConditionsOff)
	binary.LittleEndian.PutUint32(b[36:], h.ActionsOff)
	binary.LittleEndian.PutUint32(b[40:], h.StringsOff)
	binary.LittleEndian.PutUint32(b[44:], h.StringsSize)
}

func decodeHeader(b []byte) Header {
	var h Header
	h.Magic = binary.LittleEndian.Uint32(b[0:])
	h.Version = binary.LittleEndian.Uint16(b[4:])
	h.Reserved = binary.LittleEndian.Uint16(b[6:])
	h.AutomationCount = binary.LittleEndian.Uint32(b[8:])
	h.TriggerCountTotal = binary.LittleEndian.Uint32(b[12:])
	h.ConditionCountTotal = binary.LittleEndian.Uint32(b[16:])
	h.ActionCountTotal = binary.LittleEndian.Uint32(b[20:])
	h.AutomationsOff = binary.LittleEndian.Uint32(b[24:])
	h.TriggersOff = binary.LittleEndian.Uint32(b[28:])
	h.ConditionsOff = binary.LittleEndian.Uint32(b[32:])
	h.ActionsOff = binary.LittleEndian.Uint32(b[36:])
	h.StringsOff = binary.LittleEndian.Uint32(b[40:])
	h.StringsSize = binary.LittleEndian.Uint32(b[44:])
	return h
}

// Automation is the fixed-layout record describing one rule's metadata
// and its windows into the triggers/conditions/actions arrays.
type Automation struct {
	IDOff           uint32
	NameOff         uint32
	Enabled         uint8
	Mode            uint8
	TriggersIndex   uint32
	TriggersCount   uint32
	ConditionsIndex uint32
	ConditionsCount uint32
	ActionsIndex    uint32
	ActionsCount    uint32
}

func (a *Automation) encode(b []byte) {
	binary.LittleEndian.PutUint32(b[0:], a.IDOff)
	binary.LittleEndian.PutUint32(b[4:], a.NameOff)
	b[8] = a.Enabled
	b[9] = a.Mode
	binary.LittleEndian.PutUint16(b[10:], 0)
	binary.LittleEndian.PutUint32(b[12:], a.TriggersIndex)
	binary.LittleEndian.PutUint32(b[16:], a.TriggersCount)
	binary.LittleEndian.PutUint32(b[20:], a.ConditionsIndex)
	binary.LittleEndian.PutUint32(b[24:], a.ConditionsCount)
	binary.LittleEndian.PutUint32(b[28:], a.ActionsIndex)
	binary.LittleEndian.PutUint32(b[32:], a.ActionsCount)
}

func decodeAutomation(b []byte) Automation {
	var a Automation
	a.IDOff = binary.LittleEndian.Uint32(b[0:])
	a.NameOff = binary.LittleEndian.Uint32(b[4:])
	a.Enabled = b[8]
	a.Mode = b[9]
	a.TriggersIndex = binary.LittleEndian.Uint32(b[12:])
	a.TriggersCount = binary.LittleEndian.Uint32(b[16:])
	a.ConditionsIndex = binary.LittleEndian.Uint32(b[20:])
	a.ConditionsCount = binary.LittleEndian.Uint32(b[24:])
	a.ActionsIndex = binary.LittleEndian.Uint32(b[28:])
	a.ActionsCount = binary.LittleEndian.Uint32(b[32:])
	return a
}

// Trigger is the fixed-layout record describing one event-matching predicate.
type Trigger struct {
	EventType    EventType
	Endpoint     uint8
	DeviceUIDOff uint32
	CmdOff       uint32
	ClusterID    uint16
	AttrID       uint16
}

func (t *Trigger) encode(b []byte) {
	b[0] = uint8(t.EventType)
	b[1] = t.Endpoint
	binary.LittleEndian.PutUint16(b[2:], 0)
	binary.LittleEndian.PutUint32(b[4:], t.DeviceUIDOff)
	binary.LittleEndian.PutUint32(b[8:], t.CmdOff)
	binary.LittleEndian.PutUint16(b[12:], t.ClusterID)
	binary.LittleEndian.PutUint16(b[14:], t.AttrID)
}

func decodeTrigger(b []byte) Trigger {
	var t Trigger
	t.EventType = EventType(b[0])
	t.Endpoint = b[1]
	t.DeviceUIDOff = binary.LittleEndian.Uint32(b[4:])
	t.CmdOff = binary.LittleEndian.Uint32(b[8:])
	t.ClusterID = binary.LittleEndian.Uint16(b[12:])
	t.AttrID = binary.LittleEndian.Uint16(b[14:])
	return t
}

// Condition is the fixed-layout record describing one state-cache predicate.
// Exactly one of F64/Bool is meaningful, selected by ValType.
type Condition struct {
	Op           Op
	ValType      ValType
	DeviceUIDOff uint32
	KeyOff       uint32
	F64          float64
	Bool         bool
}

func (c *Condition) encode(b []byte) {
	b[0] = uint8(c.Op)
	b[1] = uint8(c.ValType)
	binary.LittleEndian.PutUint16(b[2:], 0)
	binary.LittleEndian.PutUint32(b[4:], c.DeviceUIDOff)
	binary.LittleEndian.PutUint32(b[8:], c.KeyOff)
	if c.ValType == ValBool {
		if c.Bool {
			b[12] = 1
		} else {
			b[12] = 0
		}
	} else {
		binary.LittleEndian.PutUint64(b[12:], floatBits(c.F64))
	}
}

func decodeCondition(b []byte) Condition {
	var c Condition
	c.Op = Op(b[0])
	c.ValType = ValType(b[1])
	c.DeviceUIDOff = binary.LittleEndian.Uint32(b[4:])
	c.KeyOff = binary.LittleEndian.Uint32(b[8:])
	if c.ValType == ValBool {
		c.Bool = b[12] != 0
	} else {
		c.F64 = floatFromBits(binary.LittleEndian.Uint64(b[12:]))
	}
	return c
}

// Action is the fixed-layout record describing one Zigbee command to issue.
type Action struct {
	Kind     ActKind
	Endpoint uint8
	AuxEP    uint8
	Flags    ActFlag
	U16_0    uint16
	U16_1    uint16
	CmdOff   uint32
	UIDOff   uint32
	UID2Off  uint32
	Arg0     uint32
	Arg1     uint32
	Arg2     uint32
}

func (a *Action) encode(b []byte) {
	b[0] = uint8(a.Kind)
	b[1] = a.Endpoint
	b[2] = a.AuxEP
	b[3] = uint8(a.Flags)
	binary.LittleEndian.PutUint16(b[4:], a.U16_0)
	binary.LittleEndian.PutUint16(b[6:], a.U16_1)
	binary.LittleEndian.PutUint32(b[8:], a.CmdOff)
	binary.LittleEndian.PutUint32(b[12:], a.UIDOff)
	binary.LittleEndian.PutUint32(b[16:], a.UID2Off)
	binary.LittleEndian.PutUint32(b[20:], a.Arg0)
	binary.LittleEndian.PutUint32(b[24:], a.Arg1)
	binary.LittleEndian.PutUint32(b[28:], a.Arg2)
}

func decodeAction(b []byte) Action {
	var a Action
	a.Kind = ActKind(b[0])
	a.Endpoint = b[1]
	a.AuxEP = b[2]
	a.Flags = ActFlag(b[3])
	a.U16_0 = binary.LittleEndian.Uint16(b[4:])
	a.U16_1 = binary.LittleEndian.Uint16(b[6:])
	a.CmdOff = binary.LittleEndian.Uint32(b[8:])
	a.UIDOff = binary.LittleEndian.Uint32(b[12:])
	a.UID2Off = binary.LittleEndian.Uint32(b[16:])
	a.Arg0 = binary.LittleEndian.Uint32(b[20:])
	a.Arg1 = binary.LittleEndian.Uint32(b[24:])
	a.Arg2 = binary.LittleEndian.Uint32(b[28:])
	return a
}
