package core

import (
	"fmt"
	"iter"
	"time"
)

// Date is a calendar day (UTC). It is a comparable 4-byte value type so it
// can key maps and cache entries without the monotonic-clock baggage of
// time.Time.
type Date struct {
	Year  int16
	Month uint8
	Day   uint8
}

// NewDate constructs a Date from its parts.
func NewDate(year, month, day int) Date {
	return Date{Year: int16(year), Month: uint8(month), Day: uint8(day)}
}

// DateOf converts a time.Time to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: int16(y), Month: uint8(m), Day: uint8(d)}
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses "2006-01-02".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("core: invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns the date as a UTC midnight time.Time.
func (d Date) Time() time.Time {
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
}

// String returns the ISO form "2006-01-02".
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// MarshalText implements encoding.TextMarshaler, so dates serialize as
// "2006-01-02" in JSON manifests and API payloads.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Sub returns the number of whole days from o to d; negative when d is
// earlier.
func (d Date) Sub(o Date) int {
	return int(d.Time().Sub(o.Time()) / (24 * time.Hour))
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(d.Time().AddDate(0, 0, 1))
}

// Compare returns -1, 0 or +1 ordering d against o.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		if d.Year < o.Year {
			return -1
		}
		return 1
	case d.Month != o.Month:
		if d.Month < o.Month {
			return -1
		}
		return 1
	case d.Day != o.Day:
		if d.Day < o.Day {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Before reports whether d precedes o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d follows o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// Range is an inclusive span of calendar days. A Range with To before From
// is empty; empty ranges are legal query inputs and yield empty results.
type Range struct {
	From Date
	To   Date
}

// NewRange builds an inclusive range.
func NewRange(from, to Date) Range {
	return Range{From: from, To: to}
}

// Empty reports whether the range contains no days.
func (r Range) Empty() bool {
	return r.From.IsZero() || r.To.IsZero() || r.To.Before(r.From)
}

// Days returns the number of days in the range.
func (r Range) Days() int {
	if r.Empty() {
		return 0
	}
	return int(r.To.Time().Sub(r.From.Time())/(24*time.Hour)) + 1
}

// All iterates the days of the range in ascending order.
func (r Range) All() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		if r.Empty() {
			return
		}
		for d := r.From; !d.After(r.To); d = d.Next() {
			if !yield(d) {
				return
			}
		}
	}
}

// Dates materializes the range as a slice, in ascending order.
func (r Range) Dates() []Date {
	out := make([]Date, 0, r.Days())
	for d := range r.All() {
		out = append(out, d)
	}
	return out
}

// String returns "from..to".
func (r Range) String() string {
	return r.From.String() + ".." + r.To.String()
}
