// Package normalize converts raw segment fields into display form:
// flight numbers without booking-class suffixes, localized dates with a
// computed weekday, and HH:MM times.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// monthTable maps GDS month abbreviations to month numbers.
var monthTable = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

// weekdayTable holds Korean weekday labels indexed Sunday=0..Saturday=6,
// matching time.Weekday.
var weekdayTable = [7]string{"일", "월", "화", "수", "목", "금", "토"}

// UnknownMonthError reports a month abbreviation missing from the month table.
type UnknownMonthError struct {
	Token string
}

func (e *UnknownMonthError) Error() string {
	return fmt.Sprintf("unknown month in date token %q", e.Token)
}

// InvalidDateError reports a day/month/year combination that is not a
// real calendar date, e.g. 30FEB.
type InvalidDateError struct {
	Token string
	Year  int
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("date token %q is not a valid date in %d", e.Token, e.Year)
}

// classSuffixRe matches one trailing uppercase booking-class letter
// directly after the flight number digits.
var classSuffixRe = regexp.MustCompile(`(\d+)[A-Z]$`)

// FlightNumber strips a spurious trailing booking-class letter from a
// combined designator: "OZ 369T" becomes "OZ 369", "KE 711" is left
// untouched. At most one letter is removed, and only at the very end.
func FlightNumber(designator string) string {
	return classSuffixRe.ReplaceAllString(designator, "$1")
}

// Time renders a 4-character HHMM token as "HH:MM". Tokens of any other
// length pass through unchanged; malformed times are not an error.
func Time(token string) string {
	if len(token) != 4 {
		return token
	}
	return token[0:2] + ":" + token[2:4]
}

// Date converts a DDMON token into a localized display date with
// weekday, e.g. "14NOV" -> "2026.11.14(토)". The reference date stands
// in for "today"; it must be supplied explicitly so the conversion is
// deterministic.
//
// Year inference assumes near-future travel: a month more than one
// month behind the reference month belongs to next year. A December
// reference with a January token lands in the coming January, not the
// one eleven months past.
func Date(token string, ref time.Time) (string, error) {
	if len(token) < 5 {
		return "", &UnknownMonthError{Token: token}
	}

	month, ok := monthTable[token[2:5]]
	if !ok {
		return "", &UnknownMonthError{Token: token}
	}
	day, err := strconv.Atoi(token[0:2])
	if err != nil {
		return "", &InvalidDateError{Token: token, Year: ref.Year()}
	}

	year := ref.Year()
	if int(month) < int(ref.Month())-1 {
		year++
	}

	date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days (30FEB -> 02MAR); a
	// round-trip mismatch means the date never existed.
	if date.Day() != day || date.Month() != month {
		return "", &InvalidDateError{Token: token, Year: year}
	}

	weekday := weekdayTable[int(date.Weekday())]
	return fmt.Sprintf("%04d.%02d.%02d(%s)", year, int(month), day, weekday), nil
}
