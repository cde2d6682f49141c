package rules

import (
	"github.com/nyxgw/gwcore/pkg/automation"
	"github.com/nyxgw/gwcore/pkg/eventbus"
)

// matchTriggers reports whether any of c's triggers match ev, per the
// five-part rule spec.md's trigger-matching section lays out: discriminator,
// device uid, endpoint, and the per-event-type cmd/cluster/attr checks.
func matchTriggers(c *automation.Compiled, ev eventbus.Event) bool {
	et := automation.EventTypeFromString(ev.Type)
	if et == 0 {
		return false
	}

	payload := parsePayload(ev.PayloadJSON)
	start := c.Automation.TriggersIndex
	count := c.Automation.TriggersCount
	for i := uint32(0); i < count; i++ {
		idx := start + i
		if idx >= uint32(len(c.Triggers)) {
			break
		}
		if triggerMatches(c, c.Triggers[idx], et, ev, payload) {
			return true
		}
	}
	return false
}

func triggerMatches(c *automation.Compiled, t automation.Trigger, et automation.EventType, ev eventbus.Event, payload map[string]any) bool {
	if t.EventType != et {
		return false
	}
	if t.DeviceUIDOff != 0 && c.String(t.DeviceUIDOff) != ev.DeviceUID {
		return false
	}
	if t.Endpoint != 0 {
		ep, ok := payloadUint16(payload, "endpoint")
		if !ok || ep != uint16(t.Endpoint) {
			return false
		}
	}

	switch et {
	case automation.EventZigbeeCommand:
		if t.CmdOff != 0 {
			cmd, ok := payloadString(payload, "cmd")
			if !ok || cmd != c.String(t.CmdOff) {
				return false
			}
		}
		if t.ClusterID != 0 {
			cl, ok := payloadUint16(payload, "cluster")
			if !ok || cl != t.ClusterID {
				return false
			}
		}
	case automation.EventZigbeeAttrReport:
		if t.ClusterID != 0 {
			cl, ok := payloadUint16(payload, "cluster")
			if !ok || cl != t.ClusterID {
				return false
			}
		}
		if t.AttrID != 0 {
			at, ok := payloadUint16(payload, "attr")
			if !ok || at != t.AttrID {
				return false
			}
		}
	}
	return true
}
