// Package recency decodes the "N units ago at Retailer" annotation shown
// next to each price drop into an absolute timestamp.
package recency

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrMalformedFragment = errors.New("malformed recency fragment")

type MalformedFragmentError struct {
	Fragment string
	Reason   string
}

func (e *MalformedFragmentError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrMalformedFragment, e.Fragment, e.Reason)
}

func (e *MalformedFragmentError) Is(target error) bool {
	return target == ErrMalformedFragment
}

var fragmentPattern = regexp.MustCompile(`^(\d+) ([a-z]+) ago at (.+)$`)

// units maps the plural unit word to the length of one unit.
var units = map[string]time.Duration{
	"seconds": time.Second,
	"minutes": time.Minute,
	"hours":   time.Hour,
	"days":    24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

type Fragment struct {
	Value    int
	Unit     string // always plural
	Retailer string
}

// Granularity is the length of one unit of the fragment.
func (f Fragment) Granularity() time.Duration {
	return units[f.Unit]
}

func (f Fragment) Duration() time.Duration {
	return time.Duration(f.Value) * f.Granularity()
}

type Decoded struct {
	At          time.Time
	Granularity time.Duration
	Retailer    string
}

func Parse(text string) (Fragment, error) {
	normalized := strings.Join(strings.Fields(text), " ")

	m := fragmentPattern.FindStringSubmatch(normalized)
	if m == nil {
		return Fragment{}, &MalformedFragmentError{Fragment: text, Reason: "does not match '<n> <unit> ago at <retailer>'"}
	}

	value, err := strconv.Atoi(m[1])
	if err != nil {
		return Fragment{}, &MalformedFragmentError{Fragment: text, Reason: err.Error()}
	}

	unit := m[2]
	if !strings.HasSuffix(unit, "s") {
		unit += "s"
	}
	granularity, ok := units[unit]
	if !ok {
		return Fragment{}, &MalformedFragmentError{Fragment: text, Reason: fmt.Sprintf("unknown unit %q", m[2])}
	}
	if int64(value) > math.MaxInt64/int64(granularity) {
		return Fragment{}, &MalformedFragmentError{Fragment: text, Reason: "duration out of range"}
	}

	return Fragment{
		Value:    value,
		Unit:     unit,
		Retailer: m[3],
	}, nil
}

// Decode parses text and subtracts the parsed duration from ref.
func Decode(text string, ref time.Time) (Decoded, error) {
	f, err := Parse(text)
	if err != nil {
		return Decoded{}, err
	}

	return Decoded{
		At:          ref.Add(-f.Duration()),
		Granularity: f.Granularity(),
		Retailer:    f.Retailer,
	}, nil
}
