package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sample types a test can be run on. Samples use the same set.
var SampleTypes = []string{"Blood", "Urine", "Stool", "Swab", "Tissue", "Other"}

func ValidSampleType(s string) bool {
	for _, t := range SampleTypes {
		if t == s {
			return true
		}
	}
	return false
}

// TestDefinition maps to the test_definitions table.
type TestDefinition struct {
	Code           string    `db:"code" json:"code" yaml:"code"`
	Name           string    `db:"name" json:"name" yaml:"name"`
	SampleType     string    `db:"sample_type" json:"sample_type" yaml:"sample_type"`
	Unit           string    `db:"unit" json:"unit,omitempty" yaml:"unit"`
	ReferenceRange string    `db:"reference_range" json:"reference_range,omitempty" yaml:"reference_range"`
	Price          float64   `db:"price" json:"price" yaml:"price"`
	Active         bool      `db:"active" json:"active" yaml:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at" yaml:"-"`
}

var codeRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,31}$`)

// Range is a parsed reference interval. Open ends are infinite. Strict
// excludes the single bound of "<5" or ">40" from the normal interval.
type Range struct {
	Low, High       float64
	HasLow, HasHigh bool
	Strict          bool
}

var rangeRe = regexp.MustCompile(`^\s*(-?\d+(?:\.\d+)?)\s*(?:-|–|to)\s*(-?\d+(?:\.\d+)?)\s*$`)

// ParseRange understands "4.5-11", "4.5 – 11", "10 to 20", "<5", "<=5",
// ">40" and ">=40".
func ParseRange(s string) (Range, bool) {
	s = strings.TrimSpace(s)
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		lo, _ := strconv.ParseFloat(m[1], 64)
		hi, _ := strconv.ParseFloat(m[2], 64)
		if lo > hi {
			return Range{}, false
		}
		return Range{Low: lo, High: hi, HasLow: true, HasHigh: true}, true
	}
	for _, op := range []string{"<=", ">=", "<", ">"} {
		if !strings.HasPrefix(s, op) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(s, op)), 64)
		if err != nil {
			return Range{}, false
		}
		strict := len(op) == 1
		if op[0] == '<' {
			return Range{High: v, HasHigh: true, Strict: strict}, true
		}
		return Range{Low: v, HasLow: true, Strict: strict}, true
	}
	return Range{}, false
}

// Result flags.
const (
	FlagLow    = "L"
	FlagHigh   = "H"
	FlagNormal = "N"
)

// Flag classifies value against a reference range string. Unparsable
// ranges yield "".
func Flag(value float64, reference string) string {
	r, ok := ParseRange(reference)
	if !ok {
		return ""
	}
	switch {
	case r.HasLow && (value < r.Low || r.Strict && value == r.Low):
		return FlagLow
	case r.HasHigh && (value > r.High || r.Strict && value == r.High):
		return FlagHigh
	default:
		return FlagNormal
	}
}
