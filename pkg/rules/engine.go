package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nyxgw/gwcore/pkg/automation"
	"github.com/nyxgw/gwcore/pkg/eventbus"
	"github.com/nyxgw/gwcore/pkg/executor"
	"github.com/nyxgw/gwcore/pkg/statecache"
	"github.com/nyxgw/gwcore/pkg/store"
)

// controlEventTypes are the three incremental cache-update notifications
// the configuration layer emits on every rule edit; everything else is a
// candidate for trigger matching.
const (
	eventAutomationSaved   = "automation_saved"
	eventAutomationRemoved = "automation_removed"
	eventAutomationEnabled = "automation_enabled"
)

// Engine is the single-goroutine rules worker: it owns a bounded queue of
// incoming events, an incrementally-maintained view of the enabled rule
// cache, and dispatches matched automations through an Executor. Mirrors
// spec.md §5's "single-threaded worker bound to one task consuming a
// bounded FIFO."
type Engine struct {
	st    *store.Store
	bus   *eventbus.Bus
	cache *statecache.Cache
	exec  *executor.Executor

	epsilon float64
	queue   chan eventbus.Event

	dropMu       sync.Mutex
	lastDropLog  time.Time
	droppedSince int

	cacheMu sync.RWMutex
	cached  map[string]store.Entry
}

// New creates an Engine. queueCapacity bounds the pending-event channel
// (spec.md's capacity = 16); epsilon is the condition evaluator's float
// tolerance (DefaultConditionEpsilon unless the caller overrides it).
func New(st *store.Store, bus *eventbus.Bus, cache *statecache.Cache, exec *executor.Executor, queueCapacity int, epsilon float64) *Engine {
	return &Engine{
		st:      st,
		bus:     bus,
		cache:   cache,
		exec:    exec,
		epsilon: epsilon,
		queue:   make(chan eventbus.Event, queueCapacity),
		cached:  make(map[string]store.Entry),
	}
}

// Start loads every enabled automation from the store into the cache,
// registers the engine as an event-bus listener, and spawns the worker
// goroutine. It does not block; the worker runs until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	e.loadAll()
	e.bus.AddListener(e.enqueue)
	go e.run(ctx)
}

// loadAll replaces the cache wholesale from the store's current contents.
// Used only at startup: after that, the cache tracks the three control
// events incrementally rather than re-scanning the store.
func (e *Engine) loadAll() {
	entries := e.st.List()
	cached := make(map[string]store.Entry, len(entries))
	for _, entry := range entries {
		if entry.Enabled {
			cached[entry.ID] = entry
		}
	}
	e.cacheMu.Lock()
	e.cached = cached
	e.cacheMu.Unlock()
}

// enqueue is the event-bus listener callback. It drops events the engine
// itself produced (feedback-loop avoidance) and otherwise attempts a
// non-blocking send; a full queue drops the event and logs rather than
// stalling the publishing thread.
func (e *Engine) enqueue(ev eventbus.Event) {
	if ev.Source == "rules" || strings.HasPrefix(ev.Type, "rules.") {
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.logDropped(ev)
	}
}

// dropLogInterval bounds how often a queue-full diagnostic is emitted, so
// a sustained backpressure burst logs once a second instead of flooding
// the bus and the log.
const dropLogInterval = time.Second

// logDropped records a queue-full drop and, at most once per
// dropLogInterval, emits a rate-limited rules.queue_full diagnostic so
// operators can see backpressure (spec.md §9's event-drop observability
// note). Safe to call from within the bus's listener fan-out: the emitted
// event's source is "rules", so the engine's own feedback-loop guard
// drops it before it could re-enter Publish.
func (e *Engine) logDropped(ev eventbus.Event) {
	log.Warn().Uint32("event_id", ev.ID).Str("event_type", ev.Type).Msg("rules: queue full, dropping event")

	e.dropMu.Lock()
	e.droppedSince++
	due := time.Since(e.lastDropLog) >= dropLogInterval
	var count int
	if due {
		count = e.droppedSince
		e.droppedSince = 0
		e.lastDropLog = time.Now()
	}
	e.dropMu.Unlock()

	if !due {
		return
	}
	payload, _ := json.Marshal(struct {
		Dropped int `json:"dropped"`
	}{count})
	e.bus.Publish("rules.queue_full", "rules", "", 0,
		fmt.Sprintf("dropped %d event(s)", count), string(payload))
}

// run is the worker loop: it processes events strictly in dequeue order,
// which equals publish order as long as the queue has capacity.
func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.queue:
			e.process(ev)
		}
	}
}

func (e *Engine) process(ev eventbus.Event) {
	switch ev.Type {
	case eventAutomationSaved, eventAutomationRemoved, eventAutomationEnabled:
		e.handleControlEvent(ev)
	default:
		e.evaluate(ev)
	}
}

// handleControlEvent keeps the cache current without a full store rescan.
// A store lookup failure on a save/enable notification surfaces via
// rules.cache and leaves the previous cache untouched, per spec.md's
// failure semantics.
func (e *Engine) handleControlEvent(ev eventbus.Event) {
	id, err := extractRuleID(ev)
	if err != nil {
		log.Warn().Str("event_type", ev.Type).Msg("rules: control event missing rule id")
		return
	}

	if ev.Type == eventAutomationRemoved {
		e.cacheMu.Lock()
		delete(e.cached, id)
		e.cacheMu.Unlock()
		e.publishCacheOutcome(ev.Type, id, true, nil)
		return
	}

	entry, err := e.st.Get(id)
	if err != nil {
		e.publishCacheOutcome(ev.Type, id, false, err)
		return
	}

	e.cacheMu.Lock()
	if entry.Enabled {
		e.cached[id] = entry
	} else {
		delete(e.cached, id)
	}
	e.cacheMu.Unlock()
	e.publishCacheOutcome(ev.Type, id, true, nil)
}

func (e *Engine) publishCacheOutcome(op, id string, ok bool, cacheErr error) {
	payload := struct {
		OK  bool   `json:"ok"`
		Op  string `json:"op"`
		ID  string `json:"id"`
		Err string `json:"err,omitempty"`
	}{OK: ok, Op: op, ID: id}
	if cacheErr != nil {
		payload.Err = cacheErr.Error()
	}
	buf, _ := json.Marshal(payload)
	e.bus.Publish("rules.cache", "rules", "", 0, fmt.Sprintf("%s id=%s", op, id), string(buf))
}

// evaluate runs every cached rule's match -> conditions -> dispatch chain
// against ev. Ordering across rules for the same event is unspecified.
func (e *Engine) evaluate(ev eventbus.Event) {
	for _, entry := range e.snapshotCache() {
		e.evaluateRule(ev, entry)
	}
}

func (e *Engine) snapshotCache() []store.Entry {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	out := make([]store.Entry, 0, len(e.cached))
	for _, entry := range e.cached {
		out = append(out, entry)
	}
	return out
}

// evaluateRule carries one rule through Idle -> Matched -> ConditionsPassed
// -> Firing(i) -> Done|Aborted(i, err) for the given event.
func (e *Engine) evaluateRule(ev eventbus.Event, entry store.Entry) {
	c := entry.Compiled
	if !matchTriggers(c, ev) {
		return // Idle: no trigger matched
	}
	if !evaluateConditions(c, e.cache, e.epsilon) {
		return // Matched, but conditions failed: rule does not fire
	}

	firedPayload, _ := json.Marshal(struct {
		RuleID    string `json:"rule_id"`
		EventID   uint32 `json:"event_id"`
		EventType string `json:"event_type"`
	}{entry.ID, ev.ID, ev.Type})
	e.bus.Publish("rules.fired", "rules", ev.DeviceUID, 0,
		fmt.Sprintf("rule=%s event=%d", entry.ID, ev.ID), string(firedPayload))

	start := c.Automation.ActionsIndex
	count := c.Automation.ActionsCount
	for i := uint32(0); i < count; i++ {
		idx := start + i
		if idx >= uint32(len(c.Actions)) {
			break
		}
		err := e.exec.Dispatch(context.Background(), c, c.Actions[idx])
		e.publishActionOutcome(entry.ID, i, err)
		if err != nil {
			return // Aborted(i, err): stop remaining actions for this rule
		}
	}
	// Done: every action in the rule ran without error.
}

func (e *Engine) publishActionOutcome(ruleID string, index uint32, actionErr error) {
	payload := struct {
		OK    bool   `json:"ok"`
		Rule  string `json:"rule_id"`
		Index uint32 `json:"index"`
		Err   string `json:"err,omitempty"`
	}{OK: actionErr == nil, Rule: ruleID, Index: index}
	msg := fmt.Sprintf("rule=%s action=%d ok=%v", ruleID, index, actionErr == nil)
	if actionErr != nil {
		payload.Err = actionErr.Error()
		msg = fmt.Sprintf("%s err=%v", msg, actionErr)
	}
	buf, _ := json.Marshal(payload)
	e.bus.Publish("rules.action", "rules", "", 0, msg, string(buf))
}

// extractRuleID recovers a rule id from a control event, either from a
// structured "id" payload field or from a "id=..." token in msg.
func extractRuleID(ev eventbus.Event) (string, error) {
	if payload := parsePayload(ev.PayloadJSON); payload != nil {
		if id, ok := payloadString(payload, "id"); ok && id != "" {
			return id, nil
		}
	}
	const marker = "id="
	if idx := strings.Index(ev.Msg, marker); idx >= 0 {
		rest := ev.Msg[idx+len(marker):]
		if end := strings.IndexAny(rest, " \t\n"); end >= 0 {
			rest = rest[:end]
		}
		if rest != "" {
			return rest, nil
		}
	}
	return "", ErrUnknownRuleID
}
