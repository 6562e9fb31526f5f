package connectors

import "strings"

// ReturnCodeLength is the width of the return codes produced by the Ledger and
// forwarded by the Planner.
const ReturnCodeLength = 32

// SplitReturnCode extracts the operator-facing parts of a return code: the 6 char
// first code at [18:24] and the 8 char second code at [24:32]. Shorter codes yield
// whatever part of each window exists.
func SplitReturnCode(code string) (first, second string) {
	return window(code, 18, 24), window(code, 24, 32)
}

func window(s string, from, to int) string {
	if len(s) <= from {
		return ""
	}
	if len(s) < to {
		to = len(s)
	}
	return strings.TrimSpace(s[from:to])
}

// LineFailure is the failure reported by an external system for one line.
type LineFailure struct {
	ItemNo     string `json:"itemNo"`
	Code       string `json:"code,omitempty"`
	FirstCode  string `json:"firstCode,omitempty"`
	SecondCode string `json:"secondCode,omitempty"`
	Message    string `json:"message"`
}

func newLineFailure(itemNo, code, message string) LineFailure {
	first, second := SplitReturnCode(code)
	return LineFailure{
		ItemNo:     itemNo,
		Code:       code,
		FirstCode:  first,
		SecondCode: second,
		Message:    message,
	}
}
