package rules

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nyxgw/gwcore/pkg/eventbus"
	"github.com/nyxgw/gwcore/pkg/executor"
	"github.com/nyxgw/gwcore/pkg/statecache"
	"github.com/nyxgw/gwcore/pkg/store"
	"github.com/nyxgw/gwcore/pkg/zigbee"
)

const srcUID = "0x00124b0001020304"
const dstUID = "0x00124b0005060708"

type recordingCommander struct {
	zigbee.NullCommander
	onOff []zigbee.OnOffCommand
	binds int
}

func (r *recordingCommander) OnOff(ctx context.Context, uid zigbee.UID, endpoint uint8, cmd zigbee.OnOffCommand) error {
	r.onOff = append(r.onOff, cmd)
	return nil
}

func (r *recordingCommander) Bind(ctx context.Context, src zigbee.UID, srcEndpoint uint8, clusterID uint16, dst zigbee.UID, dstEndpoint uint8) error {
	r.binds++
	return nil
}

type captured struct {
	typ, msg, payload string
}

// captureRulesEvents registers a listener that forwards every rules.*
// event onto a buffered channel, for tests to assert on emission order.
func captureRulesEvents(bus *eventbus.Bus) chan captured {
	ch := make(chan captured, 64)
	bus.AddListener(func(e eventbus.Event) {
		if strings.HasPrefix(e.Type, "rules.") {
			ch <- captured{e.Type, e.Msg, e.PayloadJSON}
		}
	})
	return ch
}

func waitFor(t *testing.T, ch chan captured, n int) []captured {
	t.Helper()
	out := make([]captured, 0, n)
	for i := 0; i < n; i++ {
		select {
		case c := <-ch:
			out = append(out, c)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d/%d (have %+v)", i+1, n, out)
		}
	}
	return out
}

func assertNoMoreWithin(t *testing.T, ch chan captured, d time.Duration) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected event: %+v", c)
	case <-time.After(d):
	}
}

func newHarness(t *testing.T) (*Engine, *store.Store, *eventbus.Bus, *statecache.Cache, *recordingCommander, chan captured) {
	t.Helper()
	st, err := store.Open("", 32)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	bus := eventbus.New()
	cache := statecache.New()
	cmd := &recordingCommander{}
	exec := executor.New(cmd)
	ch := captureRulesEvents(bus)
	e := New(st, bus, cache, exec, 16, DefaultConditionEpsilon)
	return e, st, bus, cache, cmd, ch
}

func toggleRuleDoc(id string) map[string]any {
	return map[string]any{
		"id": id, "name": id, "enabled": true,
		"triggers": []any{
			map[string]any{
				"type": "event", "event_type": "zigbee.command",
				"match": map[string]any{"device_uid": srcUID, "payload.cmd": "toggle"},
			},
		},
		"actions": []any{
			map[string]any{"type": "zigbee", "cmd": "onoff.toggle", "device_uid": dstUID, "endpoint": float64(1)},
		},
	}
}

// S1 — button toggles bulb: rules.fired then rules.action(ok:true), and
// the executor is invoked with the expected onoff.toggle call.
func TestEngine_ToggleRuleEndToEnd(t *testing.T) {
	e, st, bus, _, cmd, ch := newHarness(t)
	if _, err := st.Put(toggleRuleDoc("R1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	bus.Publish("zigbee.command", "zb", srcUID, 0, "", `{"cmd":"toggle","endpoint":1}`)

	got := waitFor(t, ch, 2)
	if got[0].typ != "rules.fired" || !strings.Contains(got[0].msg, "R1") {
		t.Errorf("got[0] = %+v, want rules.fired for R1", got[0])
	}
	if got[1].typ != "rules.action" || !strings.Contains(got[1].payload, `"ok":true`) {
		t.Errorf("got[1] = %+v, want rules.action ok:true", got[1])
	}
	if len(cmd.onOff) != 1 || cmd.onOff[0] != zigbee.OnOffToggle {
		t.Errorf("onOff calls = %+v", cmd.onOff)
	}
}

// S2 — condition gate: a state-cache value below the ">" threshold stops
// the rule before rules.fired is ever emitted.
func TestEngine_ConditionGateBlocksFiring(t *testing.T) {
	e, st, bus, cache, cmd, ch := newHarness(t)
	doc := toggleRuleDoc("R2")
	doc["conditions"] = []any{
		map[string]any{
			"type": "state", "op": ">",
			"ref":   map[string]any{"device_uid": "0x00124b00090a0b0c", "key": "lux"},
			"value": float64(500),
		},
	}
	if _, err := st.Put(doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cache.SetF32("0x00124b00090a0b0c", "lux", 400.0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	bus.Publish("zigbee.command", "zb", srcUID, 0, "", `{"cmd":"toggle","endpoint":1}`)
	assertNoMoreWithin(t, ch, 300*time.Millisecond)
	if len(cmd.onOff) != 0 {
		t.Errorf("onOff calls = %+v, want none", cmd.onOff)
	}
}

// S3 — bind action: a device.join event fires a rule whose only action
// is a bind, invoking Commander.Bind once.
func TestEngine_BindActionOnDeviceJoin(t *testing.T) {
	e, st, bus, _, cmd, ch := newHarness(t)
	doc := map[string]any{
		"id": "R3", "name": "R3", "enabled": true,
		"triggers": []any{
			map[string]any{
				"type": "event", "event_type": "device.join",
				"match": map[string]any{"device_uid": srcUID},
			},
		},
		"actions": []any{
			map[string]any{
				"type": "zigbee", "cmd": "bind",
				"src_device_uid": srcUID, "src_endpoint": float64(1),
				"cluster_id": float64(6),
				"dst_device_uid": dstUID, "dst_endpoint": float64(1),
			},
		},
	}
	if _, err := st.Put(doc); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	bus.Publish("device.join", "zb", srcUID, 0, "", "")

	waitFor(t, ch, 2) // rules.fired, rules.action
	if cmd.binds != 1 {
		t.Errorf("binds = %d, want 1", cmd.binds)
	}
}

// Property 6: after automation_saved(id) with the rule enabled, a
// subsequent matching event fires exactly once.
func TestEngine_AutomationSavedCachesIncrementally(t *testing.T) {
	e, st, bus, _, cmd, ch := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx) // cache starts empty: store has no entries yet

	if _, err := st.Put(toggleRuleDoc("R4")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	bus.Publish("automation_saved", "cfg", "", 0, "", `{"id":"R4"}`)
	waitFor(t, ch, 1) // rules.cache ok

	bus.Publish("zigbee.command", "zb", srcUID, 0, "", `{"cmd":"toggle","endpoint":1}`)
	got := waitFor(t, ch, 2)
	if got[0].typ != "rules.fired" {
		t.Errorf("got[0].typ = %q, want rules.fired", got[0].typ)
	}
	if len(cmd.onOff) != 1 {
		t.Errorf("onOff calls = %+v, want exactly one", cmd.onOff)
	}
}

// Property 7: given actions [A1(fails), A2], A2 is not dispatched and
// exactly one rules.action{ok:false} is emitted.
func TestEngine_PerRuleShortCircuit(t *testing.T) {
	e, st, bus, _, cmd, ch := newHarness(t)
	doc := map[string]any{
		"id": "R5", "name": "R5", "enabled": true,
		"triggers": []any{
			map[string]any{"type": "event", "event_type": "device.join",
				"match": map[string]any{"device_uid": srcUID}},
		},
		"actions": []any{
			map[string]any{"type": "zigbee", "cmd": "level.move_to_level",
				"device_uid": dstUID, "endpoint": float64(1), "level": float64(254), "transition_ms": float64(0)},
			map[string]any{"type": "zigbee", "cmd": "onoff.on",
				"device_uid": dstUID, "endpoint": float64(1)},
		},
	}
	c, err := st.Put(doc)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Simulate a tampered/loaded blob: the first action's endpoint is
	// zeroed, so the executor rejects it though the compiler accepted it.
	c.Compiled.Actions[c.Compiled.Automation.ActionsIndex].Endpoint = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx)

	bus.Publish("device.join", "zb", srcUID, 0, "", "")

	got := waitFor(t, ch, 2) // rules.fired, rules.action(ok:false)
	if got[1].typ != "rules.action" || !strings.Contains(got[1].payload, `"ok":false`) {
		t.Fatalf("got[1] = %+v, want rules.action ok:false", got[1])
	}
	assertNoMoreWithin(t, ch, 300*time.Millisecond)
	if len(cmd.onOff) != 0 {
		t.Errorf("onOff calls = %+v, want none (second action must not run)", cmd.onOff)
	}
}

// Property 8: events with source="rules" or a "rules."-prefixed type never
// reach the queue, so they can never cause any downstream rules.* emission.
func TestEngine_FeedbackLoopGuard(t *testing.T) {
	e, _, _, _, _, _ := newHarness(t)
	e.enqueue(eventbus.Event{ID: 1, Type: "device.join", Source: "rules"})
	e.enqueue(eventbus.Event{ID: 2, Type: "rules.fired", Source: "engine"})
	if len(e.queue) != 0 {
		t.Errorf("queue len = %d, want 0: feedback events must never enqueue", len(e.queue))
	}
}

// S6 — queue backpressure: pushing capacity+1 events without draining
// drops the extra event instead of blocking or panicking.
func TestEngine_QueueBackpressureDropsExcess(t *testing.T) {
	e, _, _, _, _, _ := newHarness(t)
	for i := 0; i < 17; i++ {
		e.enqueue(eventbus.Event{ID: uint32(i + 1), Type: "device.join"})
	}
	if len(e.queue) != 16 {
		t.Errorf("queue len = %d, want 16 (capacity, 17th dropped)", len(e.queue))
	}
	first := <-e.queue
	if first.ID != 1 {
		t.Errorf("first.ID = %d, want 1: earlier events must not be evicted", first.ID)
	}
}

// Rule-store lookup failure on a save notification leaves the previous
// cache intact and surfaces the error via rules.cache.
func TestEngine_ControlEventUnknownIDLeavesCacheIntact(t *testing.T) {
	e, st, bus, _, cmd, ch := newHarness(t)
	if _, err := st.Put(toggleRuleDoc("R6")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.Start(ctx) // loads R6 at startup

	bus.Publish("automation_saved", "cfg", "", 0, "", `{"id":"does-not-exist"}`)
	got := waitFor(t, ch, 1)
	if !strings.Contains(got[0].payload, `"ok":false`) {
		t.Errorf("payload = %q, want ok:false", got[0].payload)
	}

	// R6 must still be cached and still fire.
	bus.Publish("zigbee.command", "zb", srcUID, 0, "", `{"cmd":"toggle","endpoint":1}`)
	waitFor(t, ch, 2)
	if len(cmd.onOff) != 1 {
		t.Errorf("onOff calls = %+v, want exactly one", cmd.onOff)
	}
}
