// Package civil holds a calendar date without time of day, as used for
// dates of birth, invoice due dates and reagent expiry.
package civil

import (
	"encoding/json"
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Date is midnight UTC of a calendar day. JSON form is "YYYY-MM-DD";
// RFC 3339 timestamps are accepted on input and truncated.
type Date struct {
	time.Time
}

// Of truncates t to its calendar day in t's location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func Parse(s string) (Date, error) {
	if t, err := time.Parse(Layout, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Of(t), nil
}

// Ptr converts a nullable database value.
func Ptr(t *time.Time) *Date {
	if t == nil {
		return nil
	}
	d := Of(*t)
	return &d
}

// TimePtr is the inverse of Ptr.
func (d *Date) TimePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// BeforeDay reports whether d falls on an earlier calendar day than t.
func (d Date) BeforeDay(t time.Time) bool {
	return d.Time.Before(Of(t).Time)
}

// NotAfterDay reports whether d falls on the same calendar day as t or earlier.
func (d Date) NotAfterDay(t time.Time) bool {
	return !d.Time.After(Of(t).Time)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(Layout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(Layout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
