package spreadsheet

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	EXCEL_EPOCH_MS = -2209161600000 // December 30, 1899 00:00:00 UTC
	MS_PER_DAY     = 86400000       // milliseconds in a day
)

// dateLayouts are the text forms YEAR, MONTH and DAY accept
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"1/2/2006",
}

func dateFunctions() []FunctionSpec {
	return []FunctionSpec{
		{Name: "TODAY", Category: CategoryDate, MinArgs: 0, MaxArgs: 0, Volatile: true, Signature: "TODAY()", Fn: fnToday},
		{Name: "NOW", Category: CategoryDate, MinArgs: 0, MaxArgs: 0, Volatile: true, Signature: "NOW()", Fn: fnNow},
		{Name: "DATE", Category: CategoryDate, MinArgs: 3, MaxArgs: 3, Signature: "DATE(year, month, day)", Fn: fnDate},
		{Name: "YEAR", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Signature: "YEAR(date)", Fn: datePart(func(t time.Time) int { return t.Year() })},
		{Name: "MONTH", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Signature: "MONTH(date)", Fn: datePart(func(t time.Time) int { return int(t.Month()) })},
		{Name: "DAY", Category: CategoryDate, MinArgs: 1, MaxArgs: 1, Signature: "DAY(date)", Fn: datePart(func(t time.Time) int { return t.Day() })},
	}
}

// serialOf converts a wall time to a serial date number. the wall clock
// reading is used as is, ignoring its zone offset.
func serialOf(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return float64(wall.UnixMilli()-EXCEL_EPOCH_MS) / MS_PER_DAY
}

// timeOf converts a serial date number back to a UTC wall time
func timeOf(serial float64) time.Time {
	return time.UnixMilli(EXCEL_EPOCH_MS + int64(math.Round(serial*MS_PER_DAY))).UTC()
}

func fnToday(env Env, _ []Primitive) (Primitive, error) {
	return math.Floor(serialOf(env.Clock.Now())), nil
}

func fnNow(env Env, _ []Primitive) (Primitive, error) {
	return serialOf(env.Clock.Now()), nil
}

// fnDate normalizes overflowing months and days into the following year or
// month. years 0 through 1899 are offset from 1900.
func fnDate(_ Env, args []Primitive) (Primitive, error) {
	parts := make([]int, 3)
	for i := range parts {
		num, err := toNumber(args[i])
		if err != nil {
			return nil, err
		}
		parts[i] = int(math.Trunc(num))
	}
	year, month, day := parts[0], parts[1], parts[2]
	if year >= 0 && year < 1900 {
		year += 1900
	}

	serial := serialOf(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
	if serial < 0 {
		return nil, NewFormulaError(ErrorCodeDomain, fmt.Sprintf("DATE(%d, %d, %d) is before the first serial date", parts[0], month, day))
	}
	return serial, nil
}

// dateValue reads a serial number or date text
func dateValue(value Primitive) (time.Time, *FormulaError) {
	if text, ok := value.(string); ok {
		text = strings.TrimSpace(text)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t, nil
			}
		}
		if _, ok := parseNumber(text); !ok {
			return time.Time{}, NewFormulaError(ErrorCodeValue, fmt.Sprintf("cannot use %q as a date", text))
		}
	}

	serial, err := toNumber(value)
	if err != nil {
		return time.Time{}, err
	}
	if serial < 0 {
		return time.Time{}, NewFormulaError(ErrorCodeDomain, "negative serial date")
	}
	return timeOf(serial), nil
}

func datePart(part func(time.Time) int) Function {
	return func(_ Env, args []Primitive) (Primitive, error) {
		t, err := dateValue(args[0])
		if err != nil {
			return nil, err
		}
		return float64(part(t)), nil
	}
}
