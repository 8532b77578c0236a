// Package size resolves the size and offset tokens used in partition
// filenames into byte counts, following parted's unit conventions.
package size

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Multipliers for each unit suffix, keyed by lower-cased suffix. A missing
// suffix means MB, which is what parted assumes.
var units = map[string]int64{
	"":    1000 * 1000,
	"s":   512,
	"b":   1,
	"kb":  1000,
	"mb":  1000 * 1000,
	"gb":  1000 * 1000 * 1000,
	"tb":  1000 * 1000 * 1000 * 1000,
	"kib": 1024,
	"mib": 1024 * 1024,
	"gib": 1024 * 1024 * 1024,
	"tib": 1024 * 1024 * 1024 * 1024,
}

// ParseError reports a token that cannot be resolved to a byte count.
// Token is empty when no size token could be found at all.
type ParseError struct {
	Token  string
	Reason string
}

func (e *ParseError) Error() string {
	msg := "unable to parse disk size"
	if e.Token != "" {
		msg = fmt.Sprintf("%s %q", msg, e.Token)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

// Value is a parsed size token. It is either an absolute byte count or a
// relative position such as "100%" that is handed to parted untouched.
type Value struct {
	token       string
	bytes       int64
	passthrough bool
}

// Parse reads a token of the form <number><unit>. The number may be
// fractional; the byte count is truncated, not rounded. A <number>% token
// yields a passthrough Value.
func Parse(token string) (Value, error) {
	i := 0
	for i < len(token) && (isDigit(token[i]) || token[i] == '.') {
		i++
	}
	if i == 0 {
		return Value{}, &ParseError{Token: token, Reason: "missing number"}
	}

	num, err := strconv.ParseFloat(token[:i], 64)
	if err != nil {
		return Value{}, &ParseError{Token: token, Reason: "invalid number"}
	}

	unit := strings.ToLower(token[i:])
	if unit == "%" {
		return Value{token: token, passthrough: true}, nil
	}

	mult, ok := units[unit]
	if !ok {
		return Value{}, &ParseError{Token: token, Reason: fmt.Sprintf("unknown unit %q", token[i:])}
	}

	bytes := num * float64(mult)
	if math.IsInf(bytes, 0) || math.IsNaN(bytes) || bytes >= math.MaxInt64 {
		return Value{}, &ParseError{Token: token, Reason: "size out of range"}
	}
	return Value{token: token, bytes: int64(bytes)}, nil
}

// ParseBytes parses token and requires it to be an absolute byte count.
func ParseBytes(token string) (int64, error) {
	v, err := Parse(token)
	if err != nil {
		return 0, err
	}
	if v.passthrough {
		return 0, &ParseError{Token: token, Reason: "not an absolute size"}
	}
	return v.bytes, nil
}

// Bytes returns the byte count and true, or 0 and false for a passthrough
// value.
func (v Value) Bytes() (int64, bool) {
	if v.passthrough {
		return 0, false
	}
	return v.bytes, true
}

func (v Value) IsPassthrough() bool {
	return v.passthrough
}

// String returns the token the value was parsed from.
func (v Value) String() string {
	return v.token
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
