package scpi

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Device replies are free-form text: a number possibly followed by a unit
// token ("784nm", "  -3.5 mW "). numberPattern accepts an optional sign,
// integer or decimal digits, and an optional trailing alphanumeric unit.
var numberPattern = regexp.MustCompile(`^\s*(-?\d+(\.\d+)?)\s*(\w+)?\s*$`)

// ParseNumber extracts the numeric component of a device reply.
// It returns NaN when the reply does not match the expected shape;
// callers detect failure with math.IsNaN and never see an error.
func ParseNumber(text string) float64 {
	m := numberPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// ParseErrorReply splits an Error? reply of the form `code,"message"` into
// its code and unquoted message. A reply that does not carry a numeric
// first field yields ok=false so the caller can treat it as a parse
// failure rather than trusting a garbage code.
func ParseErrorReply(reply string) (code int, message string, ok bool) {
	reply = strings.TrimSpace(reply)
	first, rest, found := strings.Cut(reply, ",")
	if !found {
		rest = first
	}
	code, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, reply, false
	}
	message = strings.TrimSpace(rest)
	message = strings.Trim(message, `"`)
	return code, message, true
}

// Query builds a query line from a verb path, e.g. Query("Laser:Current")
// -> "Laser:Current?".
func Query(path string) string {
	return path + "?"
}

// Set builds a set line from a verb path and arguments rendered in
// default decimal notation (never locale-sensitive).
func Set(path string, args ...string) string {
	if len(args) == 0 {
		return path
	}
	return path + " " + strings.Join(args, " ")
}

// Bool renders a boolean argument the way the board expects it: 1 or 0.
func Bool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// Int renders an integer argument.
func Int(v int) string {
	return strconv.Itoa(v)
}

// Float renders a float argument in shortest form ("25", "32.5").
func Float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
