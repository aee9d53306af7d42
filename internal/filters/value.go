package filters

import (
	"strconv"
	"strings"
)

// Value is a draft or committed field value. Number fields carry an int, every
// other kind carries a string.
type Value struct {
	kind   Kind
	text   string
	number int
}

// ZeroValue is the empty value of kind: 0 for numbers, "" otherwise.
func ZeroValue(kind Kind) Value {
	return Value{kind: kind}
}

// TextValue builds a string-backed value of kind.
func TextValue(kind Kind, s string) Value {
	if kind == KindNumber {
		return NumberValue(parseLeadingInt(s))
	}
	return Value{kind: kind, text: s}
}

// NumberValue builds a number value.
func NumberValue(n int) Value {
	return Value{kind: KindNumber, number: n}
}

// Coerce converts raw input into a value of kind. Number input keeps its leading
// integer ("12abc" is 12) and falls back to 0; other kinds keep raw verbatim.
func Coerce(kind Kind, raw string) Value {
	return TextValue(kind, raw)
}

// Kind returns the kind the value was built for.
func (v Value) Kind() Kind { return v.kind }

// Int returns the number of a number value and 0 otherwise.
func (v Value) Int() int { return v.number }

// IsZero reports whether v equals the kind default.
func (v Value) IsZero() bool {
	if v.kind == KindNumber {
		return v.number == 0
	}
	return v.text == ""
}

// String renders the value as it is sent to the backend.
func (v Value) String() string {
	if v.kind == KindNumber {
		return strconv.Itoa(v.number)
	}
	return v.text
}

// Input renders the value for an HTML input; a zero number shows as empty.
func (v Value) Input() string {
	if v.kind == KindNumber && v.number == 0 {
		return ""
	}
	return v.String()
}

func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
