package billing

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a client-supplied number. It decodes from either a JSON number
// or a JSON string so that "12.50" and 12.5 are both accepted; parsing is
// deferred to the calculator, which reports bad values as validation errors.
type Numeric string

// UnmarshalJSON keeps the raw literal without interpreting it.
func (n *Numeric) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*n = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = Numeric(strings.TrimSpace(s))
		return nil
	}
	*n = Numeric(raw)
	return nil
}

// Float parses the value. NaN and infinities are rejected.
func (n Numeric) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// IsZero reports whether no value was supplied.
func (n Numeric) IsZero() bool { return strings.TrimSpace(string(n)) == "" }

// NumericFromFloat formats f with the minimal number of digits.
func NumericFromFloat(f float64) Numeric {
	return Numeric(strconv.FormatFloat(f, 'f', -1, 64))
}
