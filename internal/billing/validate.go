package billing

import (
	"math"
	"strconv"
	"strings"
)

// DefaultTotalTolerance absorbs rounding drift between client and server.
const DefaultTotalTolerance = 0.02

// ValidateTotal reports whether the client total is within tolerance of the
// server total. It never fails: unparseable input is simply not valid.
func ValidateTotal(clientTotal, calculatedTotal string, tolerance float64) bool {
	client, err := strconv.ParseFloat(strings.TrimSpace(clientTotal), 64)
	if err != nil {
		return false
	}
	calculated, err := strconv.ParseFloat(strings.TrimSpace(calculatedTotal), 64)
	if err != nil {
		return false
	}
	return math.Abs(calculated-client) <= tolerance
}
