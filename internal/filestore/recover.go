package filestore

import (
	"bytes"
	"encoding/json"
)

// recoverJSON applies the corruption-recovery heuristics in order:
// strip non-printable control characters and re-parse; failing that, scan
// the raw bytes for the last syntactically closed {...} object and parse
// just that fragment. Returns the recovered bytes and whether any
// heuristic produced a parseable document.
func recoverJSON(raw []byte) ([]byte, bool) {
	stripped := stripControlChars(raw)
	if json.Valid(stripped) {
		return stripped, true
	}
	if frag := lastBalancedObject(stripped); frag != nil && json.Valid(frag) {
		return frag, true
	}
	return nil, false
}

// stripControlChars drops the C0/C1 control ranges except the whitespace
// JSON itself permits.
func stripControlChars(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	for _, b := range raw {
		switch {
		case b == '\n' || b == '\r' || b == '\t':
			out = append(out, b)
		case b < 0x20 || b == 0x7f:
			// dropped
		default:
			out = append(out, b)
		}
	}
	return bytes.TrimSpace(out)
}

// lastBalancedObject returns the last {...} substring whose braces balance,
// ignoring braces inside string literals. Nil when none closes.
func lastBalancedObject(raw []byte) []byte {
	var (
		start    = -1
		depth    = 0
		inString = false
		escaped  = false
		lastGood []byte
	)
	for i, b := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					lastGood = raw[start : i+1]
				}
			}
		}
	}
	return lastGood
}
