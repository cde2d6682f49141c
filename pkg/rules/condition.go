package rules

import (
	"math"

	"github.com/nyxgw/gwcore/pkg/automation"
	"github.com/nyxgw/gwcore/pkg/statecache"
)

// DefaultConditionEpsilon is the tolerance used for float equality and
// inequality comparisons when a caller doesn't supply its own (spec.md's
// fixed ε = 1e-6, kept configurable per §9's open question).
const DefaultConditionEpsilon = 1e-6

// evaluateConditions reports whether every one of c's conditions holds,
// fetching each from cache. Conditions are a conjunction: the first miss
// or coercion failure fails the whole rule closed.
func evaluateConditions(c *automation.Compiled, cache *statecache.Cache, epsilon float64) bool {
	start := c.Automation.ConditionsIndex
	count := c.Automation.ConditionsCount
	for i := uint32(0); i < count; i++ {
		idx := start + i
		if idx >= uint32(len(c.Conditions)) {
			break
		}
		if !evaluateCondition(c, c.Conditions[idx], cache, epsilon) {
			return false
		}
	}
	return true
}

func evaluateCondition(c *automation.Compiled, cond automation.Condition, cache *statecache.Cache, epsilon float64) bool {
	uid := c.String(cond.DeviceUIDOff)
	key := c.String(cond.KeyOff)
	v, ok := cache.Get(uid, key)
	if !ok {
		return false
	}

	if cond.ValType == automation.ValBool {
		got, ok := v.AsBool()
		if !ok {
			return false
		}
		return compareBool(cond.Op, got, cond.Bool)
	}

	got, ok := v.AsFloat()
	if !ok {
		return false
	}
	return compareFloat(cond.Op, got, cond.F64, epsilon)
}

func compareBool(op automation.Op, got, want bool) bool {
	switch op {
	case automation.OpEQ:
		return got == want
	case automation.OpNE:
		return got != want
	default:
		return false // ordering ops don't apply to bool: fail closed
	}
}

func compareFloat(op automation.Op, got, want, epsilon float64) bool {
	switch op {
	case automation.OpEQ:
		return math.Abs(got-want) <= epsilon
	case automation.OpNE:
		return math.Abs(got-want) > epsilon
	case automation.OpGT:
		return got > want
	case automation.OpLT:
		return got < want
	case automation.OpGE:
		return got >= want
	case automation.OpLE:
		return got <= want
	default:
		return false
	}
}
