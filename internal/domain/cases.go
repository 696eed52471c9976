package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MissingSentinel is the value reported in place of a case count when the
// upstream source could not be reached.
const MissingSentinel = "missing"

type caseState uint8

const (
	caseNull caseState = iota
	caseKnown
	caseMissing
)

// CaseCount is a hospital case count that may also be null (no data for the
// region) or the "missing" sentinel (source unavailable). The zero value is null.
type CaseCount struct {
	n     int64
	state caseState
}

// Cases returns a known case count.
func Cases(n int64) CaseCount { return CaseCount{n: n, state: caseKnown} }

// MissingCases returns the sentinel count used by the fallback dataset.
func MissingCases() CaseCount { return CaseCount{state: caseMissing} }

// NullCases returns the null count used for unmatched join rows.
func NullCases() CaseCount { return CaseCount{} }

func (c CaseCount) IsNull() bool    { return c.state == caseNull }
func (c CaseCount) IsMissing() bool { return c.state == caseMissing }

// Value returns the count and whether it is a known number.
func (c CaseCount) Value() (int64, bool) {
	return c.n, c.state == caseKnown
}

// Equal reports whether both counts are in the same state with the same value.
func (c CaseCount) Equal(o CaseCount) bool { return c == o }

// String renders the count as it appears in CSV output: the number,
// the "missing" sentinel, or an empty string for null.
func (c CaseCount) String() string {
	switch c.state {
	case caseKnown:
		return strconv.FormatInt(c.n, 10)
	case caseMissing:
		return MissingSentinel
	default:
		return ""
	}
}

func (c CaseCount) MarshalJSON() ([]byte, error) {
	switch c.state {
	case caseKnown:
		return []byte(strconv.FormatInt(c.n, 10)), nil
	case caseMissing:
		return json.Marshal(MissingSentinel)
	default:
		return []byte("null"), nil
	}
}

func (c *CaseCount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = NullCases()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != MissingSentinel {
			return fmt.Errorf("unexpected case count %q", s)
		}
		*c = MissingCases()
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = Cases(n)
	return nil
}
