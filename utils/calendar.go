// utils/calendar.go
package utils

import (
	"database/sql/driver"
	"fmt"
	"log"
	"time"
)

// Date is a calendar day with no time-of-day component. All streak and
// daily-goal comparisons in the engine operate on Date values, never on raw
// instants, so timezone handling lives in exactly one place: DateOf.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf resolves an instant to the calendar day observed in the given IANA
// timezone. An empty or unknown timezone falls back to UTC — this is a known
// source of off-by-one-day complaints from users far from Greenwich, which is
// why callers should forward the client-reported timezone whenever they have one.
func DateOf(instant time.Time, tz string) Date {
	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Printf("⚠️ [CALENDAR] Unknown timezone %q, falling back to UTC", tz)
		}
	}
	local := instant.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// Delta returns b − a in whole days. Negative when b precedes a.
func Delta(a, b Date) int {
	ta := time.Date(a.Year, a.Month, a.Day, 0, 0, 0, 0, time.UTC)
	tb := time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
	return int(tb.Sub(ta).Hours() / 24)
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Day == 0
}

func (d Date) Equal(o Date) bool {
	return d == o
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	return Delta(d, o) > 0
}

// String renders ISO "YYYY-MM-DD", which also sorts correctly as text —
// the maintenance sweeps rely on that for their date-range WHERE clauses.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate parses ISO "YYYY-MM-DD". Empty input yields the zero Date.
func ParseDate(s string) (Date, error) {
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid calendar date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// Value implements driver.Valuer so GORM persists Date as ISO text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for text, byte and time column representations.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		parsed, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case time.Time:
		*d = Date{Year: v.Year(), Month: v.Month(), Day: v.Day()}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
