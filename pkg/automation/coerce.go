package automation

import (
	"encoding/json"
	"strconv"
	"strings"
)

// parseU16Any duck-types a JSON value into a uint16, accepting a bare
// number or a string holding one — the same permissive ingress the
// original cJSON-based compiler gave rule documents. ok is false for
// anything that doesn't cleanly parse, is negative, or overflows.
func parseU16Any(v any) (uint16, bool) {
	u, ok := parseU32Any(v)
	if !ok || u > 0xFFFF {
		return 0, false
	}
	return uint16(u), true
}

// parseU32Any is parseU16Any's u32 counterpart.
func parseU32Any(v any) (uint32, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.ParseUint(string(n), 10, 32)
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil || f < 0 || f != float64(uint32(f)) {
				return 0, false
			}
			return uint32(f), true
		}
		return uint32(i), true
	case float64:
		if n < 0 || n != float64(uint32(n)) {
			return 0, false
		}
		return uint32(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		i, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return 0, false
		}
		return uint32(i), true
	default:
		return 0, false
	}
}

// parseBoolAny duck-types a JSON value into a bool, accepting the several
// spellings the original cJSON ingress tolerated (true/false, "true"/
// "false", "1"/"0", and non-zero/zero numbers).
func parseBoolAny(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "on":
			return true, true
		case "false", "0", "no", "off":
			return false, true
		default:
			return false, false
		}
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return false, false
		}
		return f != 0, true
	case float64:
		return b != 0, true
	default:
		return false, false
	}
}
