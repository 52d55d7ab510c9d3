package scale

import (
	"strconv"
	"strings"
)

// Default scale factor used when the configuration carries no factor item.
const (
	DefaultFactor     = 100.0
	DefaultFactorText = "100.0"
)

// ParseFactor converts factor text the way C's strtod does: leading
// whitespace is skipped and the longest numeric prefix is converted. Text
// with no numeric prefix yields 0. Hexadecimal notation is not recognised.
//
// ok is false whenever the text was not entirely a number, so callers can
// report a diagnostic while still using the returned value.
func ParseFactor(text string) (factor float64, ok bool) {
	s := strings.TrimLeft(text, " \t\n\v\f\r")

	neg := false
	body := s
	if body != "" && (body[0] == '+' || body[0] == '-') {
		neg = body[0] == '-'
		body = body[1:]
	}

	n := numericPrefix(body)
	if n == 0 {
		return 0, false
	}

	f, err := strconv.ParseFloat(body[:n], 64)
	if err != nil {
		// ParseFloat reports overflow with ±Inf, which matches strtod's HUGE_VAL.
		ne, isNum := err.(*strconv.NumError)
		if !isNum || ne.Err != strconv.ErrRange {
			return 0, false
		}
		ok = false
	} else {
		ok = strings.TrimSpace(body[n:]) == ""
	}
	if neg {
		f = -f
	}
	return f, ok
}

// numericPrefix returns the length of the longest prefix of s (sign already
// removed) that strtod would consume as a decimal number, inf or nan.
func numericPrefix(s string) int {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "infinity"):
		return len("infinity")
	case strings.HasPrefix(lower, "inf"), strings.HasPrefix(lower, "nan"):
		return 3
	}

	i, digits := 0, 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return 0
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return i
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
