package automation

import "bytes"

// stringTable is an append-only, NUL-terminated byte pool with linear-scan
// dedup. Offset 0 is reserved for the empty string. Acceptable for the
// small-hundreds-of-entries sizes a single rule document compiles to;
// ported from the original compiler's strtab_add.
type stringTable struct {
	buf []byte
}

func newStringTable() *stringTable {
	return &stringTable{buf: []byte{0}} // offset 0 => ""
}

// add returns the offset of the NUL-terminated bytes of s within the
// table, adding them if not already present. add("") always returns 0.
func (t *stringTable) add(s string) uint32 {
	if s == "" {
		return 0
	}
	needle := append([]byte(s), 0)
	for off := 0; off < len(t.buf); {
		end := bytes.IndexByte(t.buf[off:], 0)
		if end < 0 {
			break // malformed table, shouldn't happen
		}
		cur := t.buf[off : off+end+1]
		if bytes.Equal(cur, needle) {
			return uint32(off)
		}
		off += end + 1
	}
	off := uint32(len(t.buf))
	t.buf = append(t.buf, needle...)
	return off
}

// get resolves a string-table offset back to its Go string. Offset 0
// always resolves to "". Callers must have already bounds-checked off
// against the table length (deserialize does this once, up front).
func (t *stringTable) get(off uint32) string {
	if off == 0 || int(off) >= len(t.buf) {
		return ""
	}
	end := bytes.IndexByte(t.buf[off:], 0)
	if end < 0 {
		return ""
	}
	return string(t.buf[off : int(off)+end])
}

func (t *stringTable) size() uint32 { return uint32(len(t.buf)) }
