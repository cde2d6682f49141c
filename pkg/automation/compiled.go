package automation

import "fmt"

// Compiled is the in-memory, owned representation of one compiled rule:
// a header plus the four typed arrays and the string table they reference
// by offset. A Compiled value is self-contained — every offset it stores
// resolves within its own Strings pool.
type Compiled struct {
	Header     Header
	Automation Automation
	Triggers   []Trigger
	Conditions []Condition
	Actions    []Action
	Strings    []byte
}

// String resolves a string-table offset to its Go string. Offset 0
// resolves to ""; so does an out-of-range offset or one whose string is
// not NUL-terminated within the table.
func (c *Compiled) String(off uint32) string {
	if off == 0 || int(off) >= len(c.Strings) {
		return ""
	}
	end := off
	for int(end) < len(c.Strings) && c.Strings[end] != 0 {
		end++
	}
	if int(end) >= len(c.Strings) {
		return "" // not NUL-terminated within the table: malformed
	}
	return string(c.Strings[off:end])
}

// Serialize lays out header ‖ automation[] ‖ triggers[] ‖ conditions[] ‖
// actions[] ‖ strings, patching absolute byte offsets into the header
// before writing, exactly as the on-disk format in §6 describes.
func (c *Compiled) Serialize() ([]byte, error) {
	if c.Header.Magic != Magic || c.Header.Version != Version {
		return nil, fmt.Errorf("%w: bad header magic/version", ErrInvalidArgument)
	}

	trCount := uint32(len(c.Triggers))
	coCount := uint32(len(c.Conditions))
	acCount := uint32(len(c.Actions))
	stSize := uint32(len(c.Strings))

	h := c.Header
	h.TriggerCountTotal = trCount
	h.ConditionCountTotal = coCount
	h.ActionCountTotal = acCount
	h.AutomationCount = 1
	h.AutomationsOff = headerSize
	h.TriggersOff = h.AutomationsOff + h.AutomationCount*automationSize
	h.ConditionsOff = h.TriggersOff + trCount*triggerSize
	h.ActionsOff = h.ConditionsOff + coCount*conditionSize
	h.StringsOff = h.ActionsOff + acCount*actionSize
	h.StringsSize = stSize

	total := int(h.StringsOff) + int(stSize)
	buf := make([]byte, total)

	h.encode(buf[0:headerSize])
	c.Automation.encode(buf[h.AutomationsOff : h.AutomationsOff+automationSize])
	for i := range c.Triggers {
		off := h.TriggersOff + uint32(i)*triggerSize
		c.Triggers[i].encode(buf[off : off+triggerSize])
	}
	for i := range c.Conditions {
		off := h.ConditionsOff + uint32(i)*conditionSize
		c.Conditions[i].encode(buf[off : off+conditionSize])
	}
	for i := range c.Actions {
		off := h.ActionsOff + uint32(i)*actionSize
		c.Actions[i].encode(buf[off : off+actionSize])
	}
	copy(buf[h.StringsOff:], c.Strings)

	return buf, nil
}

// Deserialize validates and parses a compiled-rule blob produced by
// Serialize, returning an owned Compiled value. It never reads past len(buf):
// every offset+size is checked before any slice is taken.
func Deserialize(buf []byte) (*Compiled, error) {
	if len(buf) < headerSize {
		return nil, fmt.Errorf("%w: buffer shorter than header", ErrInvalidFormat)
	}
	if len(buf) > sanityMaxBuffer {
		return nil, ErrOutOfMemory
	}

	h := decodeHeader(buf[:headerSize])
	if h.Magic != Magic || h.Version != Version {
		return nil, fmt.Errorf("%w: bad magic/version", ErrInvalidFormat)
	}
	if h.AutomationCount != 1 {
		return nil, fmt.Errorf("%w: automation_count must be 1", ErrInvalidFormat)
	}
	if h.TriggerCountTotal > sanityMaxCount || h.ConditionCountTotal > sanityMaxCount ||
		h.ActionCountTotal > sanityMaxCount {
		return nil, ErrOutOfMemory
	}

	blen := uint64(len(buf))
	checkRange := func(off, size uint64) error {
		if off > blen || size > blen || off+size > blen {
			return fmt.Errorf("%w: offset/size out of bounds", ErrInvalidFormat)
		}
		return nil
	}

	autosSz := uint64(h.AutomationCount) * automationSize
	trSz := uint64(h.TriggerCountTotal) * triggerSize
	coSz := uint64(h.ConditionCountTotal) * conditionSize
	acSz := uint64(h.ActionCountTotal) * actionSize
	stSz := uint64(h.StringsSize)

	if err := checkRange(uint64(h.AutomationsOff), autosSz); err != nil {
		return nil, err
	}
	if err := checkRange(uint64(h.TriggersOff), trSz); err != nil {
		return nil, err
	}
	if err := checkRange(uint64(h.ConditionsOff), coSz); err != nil {
		return nil, err
	}
	if err := checkRange(uint64(h.ActionsOff), acSz); err != nil {
		return nil, err
	}
	if err := checkRange(uint64(h.StringsOff), stSz); err != nil {
		return nil, err
	}

	c := &Compiled{Header: h}
	c.Automation = decodeAutomation(buf[h.AutomationsOff : uint64(h.AutomationsOff)+automationSize])

	if h.TriggerCountTotal > 0 {
		c.Triggers = make([]Trigger, h.TriggerCountTotal)
		for i := range c.Triggers {
			off := uint64(h.TriggersOff) + uint64(i)*triggerSize
			c.Triggers[i] = decodeTrigger(buf[off : off+triggerSize])
		}
	}
	if h.ConditionCountTotal > 0 {
		c.Conditions = make([]Condition, h.ConditionCountTotal)
		for i := range c.Conditions {
			off := uint64(h.ConditionsOff) + uint64(i)*conditionSize
			c.Conditions[i] = decodeCondition(buf[off : off+conditionSize])
		}
	}
	if h.ActionCountTotal > 0 {
		c.Actions = make([]Action, h.ActionCountTotal)
		for i := range c.Actions {
			off := uint64(h.ActionsOff) + uint64(i)*actionSize
			c.Actions[i] = decodeAction(buf[off : off+actionSize])
		}
	}

	c.Strings = make([]byte, stSz)
	copy(c.Strings, buf[h.StringsOff:uint64(h.StringsOff)+stSz])

	if err := validateStringOffsets(c); err != nil {
		return nil, err
	}

	return c, nil
}

// validateStringOffsets enforces the invariant that every non-zero string
// offset stored in a record refers to a NUL-terminated range fully inside
// the string table, and every array index stored lies within its array's
// declared count.
func validateStringOffsets(c *Compiled) error {
	checkOff := func(off uint32) error {
		if off == 0 {
			return nil
		}
		if int(off) >= len(c.Strings) {
			return fmt.Errorf("%w: string offset out of bounds", ErrInvalidFormat)
		}
		for i := off; ; i++ {
			if int(i) >= len(c.Strings) {
				return fmt.Errorf("%w: string not NUL-terminated", ErrInvalidFormat)
			}
			if c.Strings[i] == 0 {
				return nil
			}
		}
	}

	if err := checkOff(c.Automation.IDOff); err != nil {
		return err
	}
	if err := checkOff(c.Automation.NameOff); err != nil {
		return err
	}
	if uint64(c.Automation.TriggersIndex)+uint64(c.Automation.TriggersCount) > uint64(len(c.Triggers)) {
		return fmt.Errorf("%w: trigger window out of bounds", ErrInvalidFormat)
	}
	if uint64(c.Automation.ConditionsIndex)+uint64(c.Automation.ConditionsCount) > uint64(len(c.Conditions)) {
		return fmt.Errorf("%w: condition window out of bounds", ErrInvalidFormat)
	}
	if uint64(c.Automation.ActionsIndex)+uint64(c.Automation.ActionsCount) > uint64(len(c.Actions)) {
		return fmt.Errorf("%w: action window out of bounds", ErrInvalidFormat)
	}

	for _, t := range c.Triggers {
		if err := checkOff(t.DeviceUIDOff); err != nil {
			return err
		}
		if err := checkOff(t.CmdOff); err != nil {
			return err
		}
	}
	for _, cd := range c.Conditions {
		if err := checkOff(cd.DeviceUIDOff); err != nil {
			return err
		}
		if err := checkOff(cd.KeyOff); err != nil {
			return err
		}
	}
	for _, a := range c.Actions {
		if err := checkOff(a.CmdOff); err != nil {
			return err
		}
		if err := checkOff(a.UIDOff); err != nil {
			return err
		}
		if err := checkOff(a.UID2Off); err != nil {
			return err
		}
	}
	return nil
}
