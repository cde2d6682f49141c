package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// CompileJSON parses a rule document from JSON and compiles it. Numbers
// are decoded via json.Number so the duck-typed coercion rules below see
// the same shapes the original JSON ingress did.
func CompileJSON(doc []byte) (*Compiled, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: bad json: %v", ErrInvalidRule, err)
	}
	return Compile(v)
}

// Compile parses a rule document (the same shape the UI emits: id, name,
// enabled?, mode?, triggers[], conditions[]?, actions[]) into a compiled
// binary-friendly representation. Unknown top-level and nested fields are
// ignored to preserve forward-compatibility. On any validation miss it
// returns a *CompileError (wrapping ErrInvalidRule) with a stable short
// reason string, and no partial state escapes: Compile either succeeds
// fully or returns nil.
func Compile(doc map[string]any) (*Compiled, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		return nil, invalidRule("missing id")
	}
	name, nameOK := doc["name"].(string)
	if !nameOK {
		return nil, invalidRule("missing name")
	}

	triggersRaw, ok := doc["triggers"].([]any)
	if !ok {
		return nil, invalidRule("missing triggers")
	}
	actionsRaw, ok := doc["actions"].([]any)
	if !ok {
		return nil, invalidRule("missing actions")
	}
	var condsRaw []any
	if v, ok := doc["conditions"].([]any); ok {
		condsRaw = v
	}

	st := newStringTable()

	triggers := make([]Trigger, len(triggersRaw))
	for i, raw := range triggersRaw {
		t, err := compileTrigger(st, raw)
		if err != nil {
			return nil, err
		}
		triggers[i] = t
	}

	conditions := make([]Condition, len(condsRaw))
	for i, raw := range condsRaw {
		c, err := compileCondition(st, raw)
		if err != nil {
			return nil, err
		}
		conditions[i] = c
	}

	actions := make([]Action, len(actionsRaw))
	for i, raw := range actionsRaw {
		a, err := compileAction(st, raw)
		if err != nil {
			return nil, err
		}
		actions[i] = a
	}

	enabled := uint8(1)
	if raw, present := doc["enabled"]; present {
		b, ok := parseBoolAny(raw)
		if !ok {
			return nil, invalidRule("bad enabled")
		}
		if !b {
			enabled = 0
		}
	}

	auto := Automation{
		IDOff:           st.add(id),
		NameOff:         st.add(name),
		Enabled:         enabled,
		Mode:            1, // reserved; always written as 1, see §9
		TriggersCount:   uint32(len(triggers)),
		ConditionsCount: uint32(len(conditions)),
		ActionsCount:    uint32(len(actions)),
	}

	c := &Compiled{
		Header: Header{
			Magic:   Magic,
			Version: Version,
		},
		Automation: auto,
		Triggers:   triggers,
		Conditions: conditions,
		Actions:    actions,
		Strings:    st.buf,
	}
	return c, nil
}

func asObject(raw any) (map[string]any, bool) {
	m, ok := raw.(map[string]any)
	return m, ok
}

func compileTrigger(st *stringTable, raw any) (Trigger, error) {
	obj, ok := asObject(raw)
	if !ok {
		return Trigger{}, invalidRule("trigger must be object")
	}
	if s, _ := obj["type"].(string); s != "event" {
		return Trigger{}, invalidRule("unsupported trigger.type")
	}
	evtStr, _ := obj["event_type"].(string)
	et := eventTypeFromString(evtStr)
	if et == 0 {
		return Trigger{}, invalidRule("unsupported event_type")
	}

	t := Trigger{EventType: et}

	match, _ := asObject(obj["match"])
	if match != nil {
		if uid, _ := match["device_uid"].(string); uid != "" {
			t.DeviceUIDOff = st.add(uid)
		}
		if ep, ok := parseU16Any(match["payload.endpoint"]); ok && ep <= 255 {
			t.Endpoint = uint8(ep)
		}

		switch et {
		case EventZigbeeCommand:
			if cmd, _ := match["payload.cmd"].(string); cmd != "" {
				t.CmdOff = st.add(cmd)
			}
			if cid, ok := parseU16Any(match["payload.cluster"]); ok {
				t.ClusterID = cid
			}
		case EventZigbeeAttrReport:
			if cid, ok := parseU16Any(match["payload.cluster"]); ok {
				t.ClusterID = cid
			}
			if aid, ok := parseU16Any(match["payload.attr"]); ok {
				t.AttrID = aid
			}
		}
	}

	return t, nil
}

func compileCondition(st *stringTable, raw any) (Condition, error) {
	obj, ok := asObject(raw)
	if !ok {
		return Condition{}, invalidRule("condition must be object")
	}
	if s, _ := obj["type"].(string); s != "state" {
		return Condition{}, invalidRule("unsupported condition.type")
	}
	opStr, _ := obj["op"].(string)
	op := opFromString(opStr)
	if op == 0 {
		return Condition{}, invalidRule("bad condition.op")
	}
	ref, ok := asObject(obj["ref"])
	if !ok {
		return Condition{}, invalidRule("missing condition.ref")
	}
	uid, _ := ref["device_uid"].(string)
	if uid == "" {
		return Condition{}, invalidRule("missing condition.ref.device_uid")
	}
	key, _ := ref["key"].(string)
	if key == "" {
		return Condition{}, invalidRule("missing condition.ref.key")
	}

	c := Condition{
		Op:           op,
		DeviceUIDOff: st.add(uid),
		KeyOff:       st.add(key),
	}

	switch v := obj["value"].(type) {
	case bool:
		c.ValType = ValBool
		c.Bool = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return Condition{}, invalidRule("bad condition.value")
		}
		c.ValType = ValF64
		c.F64 = f
	case float64:
		c.ValType = ValF64
		c.F64 = v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Condition{}, invalidRule("bad condition.value")
		}
		c.ValType = ValF64
		c.F64 = f
	default:
		return Condition{}, invalidRule("bad condition.value")
	}

	return c, nil
}

func compileAction(st *stringTable, raw any) (Action, error) {
	obj, ok := asObject(raw)
	if !ok {
		return Action{}, invalidRule("action must be object")
	}
	if s, _ := obj["type"].(string); s != "zigbee" {
		return Action{}, invalidRule("unsupported action.type")
	}
	cmd, _ := obj["cmd"].(string)
	if cmd == "" {
		return Action{}, invalidRule("missing action.cmd")
	}

	a := Action{CmdOff: st.add(cmd)}

	switch cmd {
	case "bind", "unbind", "bindings.bind", "bindings.unbind":
		return compileBindAction(st, obj, cmd, a)
	case "scene.store", "scene.recall":
		return compileSceneAction(obj, a)
	}

	if groupID, ok := parseU16Any(obj["group_id"]); ok && groupID != 0 && groupID != 0xFFFF {
		a.Kind = ActGroup
		a.U16_0 = groupID
		if err := fillCommandArgs(obj, cmd, &a); err != nil {
			return Action{}, err
		}
		return a, nil
	}

	return compileDeviceAction(st, obj, cmd, a)
}

func compileBindAction(st *stringTable, obj map[string]any, cmd string, a Action) (Action, error) {
	srcUID, _ := obj["src_device_uid"].(string)
	if srcUID == "" {
		return Action{}, invalidRule("missing action.src_device_uid")
	}
	dstUID, _ := obj["dst_device_uid"].(string)
	if dstUID == "" {
		return Action{}, invalidRule("missing action.dst_device_uid")
	}
	srcEP, ok := parseU16Any(obj["src_endpoint"])
	if !ok || srcEP == 0 || srcEP > 240 {
		return Action{}, invalidRule("bad action.src_endpoint")
	}
	dstEP, ok := parseU16Any(obj["dst_endpoint"])
	if !ok || dstEP == 0 || dstEP > 240 {
		return Action{}, invalidRule("bad action.dst_endpoint")
	}
	clusterID, ok := parseU16Any(obj["cluster_id"])
	if !ok || clusterID == 0 {
		return Action{}, invalidRule("bad action.cluster_id")
	}

	a.Kind = ActBind
	a.UIDOff = st.add(srcUID)
	a.UID2Off = st.add(dstUID)
	a.Endpoint = uint8(srcEP)
	a.AuxEP = uint8(dstEP)
	a.U16_0 = clusterID
	if contains(cmd, "unbind") {
		a.Flags = ActFlagUnbind
	}
	return a, nil
}

func compileSceneAction(obj map[string]any, a Action) (Action, error) {
	groupID, ok := parseU16Any(obj["group_id"])
	if !ok || groupID == 0 || groupID == 0xFFFF {
		return Action{}, invalidRule("bad action.group_id")
	}
	sceneID, ok := parseU32Any(obj["scene_id"])
	if !ok || sceneID == 0 || sceneID > 255 {
		return Action{}, invalidRule("bad action.scene_id")
	}
	a.Kind = ActScene
	a.U16_0 = groupID
	a.U16_1 = uint16(sceneID)
	return a, nil
}

func compileDeviceAction(st *stringTable, obj map[string]any, cmd string, a Action) (Action, error) {
	uid, _ := obj["device_uid"].(string)
	if uid == "" {
		return Action{}, invalidRule("missing action.device_uid")
	}
	ep, ok := parseU16Any(obj["endpoint"])
	if !ok || ep == 0 || ep > 240 {
		return Action{}, invalidRule("bad action.endpoint")
	}

	a.Kind = ActDevice
	a.UIDOff = st.add(uid)
	a.Endpoint = uint8(ep)
	if err := fillCommandArgs(obj, cmd, &a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// fillCommandArgs fills the command-specific numeric slots shared by
// DEVICE and GROUP actions, per the table in §4.3.
func fillCommandArgs(obj map[string]any, cmd string, a *Action) error {
	switch cmd {
	case "onoff.on", "onoff.off", "onoff.toggle":
		return nil
	case "level.move_to_level":
		lvl, ok := parseU32Any(obj["level"])
		if !ok || lvl > 254 {
			return invalidRule("bad action.level")
		}
		tr, ok := parseU32Any(obj["transition_ms"])
		if ok && tr > 60000 {
			return invalidRule("bad action.transition_ms")
		}
		a.Arg0, a.Arg1 = lvl, tr
		return nil
	case "color.move_to_color_xy":
		x, okX := parseU32Any(obj["x"])
		if !okX || x > 65535 {
			return invalidRule("bad action.x")
		}
		y, okY := parseU32Any(obj["y"])
		if !okY || y > 65535 {
			return invalidRule("bad action.y")
		}
		tr, ok := parseU32Any(obj["transition_ms"])
		if ok && tr > 60000 {
			return invalidRule("bad action.transition_ms")
		}
		a.Arg0, a.Arg1, a.Arg2 = x, y, tr
		return nil
	case "color.move_to_color_temperature":
		mireds, ok := parseU32Any(obj["mireds"])
		if !ok || mireds < 1 || mireds > 1000 {
			return invalidRule("bad action.mireds")
		}
		tr, ok := parseU32Any(obj["transition_ms"])
		if ok && tr > 60000 {
			return invalidRule("bad action.transition_ms")
		}
		a.Arg0, a.Arg1 = mireds, tr
		return nil
	default:
		return nil // unknown command string: slots stay zero, forward-compat
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
