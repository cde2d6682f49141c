// Package rules is the single-goroutine rules engine: it consumes events
// off the event bus, matches them against cached compiled automations,
// evaluates conditions against the state cache, and dispatches matched
// actions through the executor. Ported from the original rules_engine.c's
// event-handling entrypoint, fleshed out to the full match/evaluate/fire
// pipeline spec.md describes.
package rules

import "errors"

// ErrUnknownRuleID indicates a control event (automation_saved, etc.)
// carried no recoverable rule id in either its payload or its msg field.
var ErrUnknownRuleID = errors.New("rules: control event has no rule id")
