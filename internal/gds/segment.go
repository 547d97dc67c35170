// Package gds recognises GDS-style reservation segment lines as pasted
// from ticketing systems and extracts their raw positional fields.
//
// Exactly two line layouts are recognised:
//
//	Layout A: "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS"
//	Layout B: "1  KE 711 U 03FEB 2 ICNNRT DK9  1325 1555  03FEB  E  0 73J L"
//
// Layout B carries a booking-class token at index 3, shifting the date,
// route and time fields one position to the right.
package gds

import (
	"fmt"
	"regexp"
	"strings"
)

// Layout identifies which of the two recognised token arrangements a
// segment line uses.
type Layout int

const (
	// LayoutA has the date at token 3 and no standalone class token.
	LayoutA Layout = iota
	// LayoutB has a booking-class token at token 3 and the date at token 4.
	LayoutB
)

func (l Layout) String() string {
	switch l {
	case LayoutA:
		return "A"
	case LayoutB:
		return "B"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// minTokens is the smallest token count either layout can produce.
const minTokens = 9

// fieldOffsets holds the positional offsets for one layout.
type fieldOffsets struct {
	date, route, depTime, arrTime int
}

var offsets = map[Layout]fieldOffsets{
	LayoutA: {date: 3, route: 5, depTime: 7, arrTime: 8},
	LayoutB: {date: 4, route: 6, depTime: 8, arrTime: 9},
}

// dateTokenRe matches a DDMON token: two digits followed by a
// three-letter month abbreviation, e.g. "14NOV".
var dateTokenRe = regexp.MustCompile(`^\d{2}[A-Z]{3}$`)

// FormatError reports a line that cannot be any recognised layout.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "segment format: " + e.Reason
}

// RawSegment holds the unprocessed fields extracted from one segment
// line. It is produced once per line and never mutated.
type RawSegment struct {
	Designator      string // airline code + flight number, e.g. "OZ 369T"
	DateToken       string // DDMON token, e.g. "14NOV"
	OriginCode      string // 3-letter origin, e.g. "ICN"
	DestinationCode string // 3-letter destination, e.g. "CAN"
	DepTimeToken    string // raw departure time, e.g. "0820"
	ArrTimeToken    string // raw arrival time, e.g. "1130"
}

// Tokenize splits a line on whitespace runs, discarding empty tokens.
// An empty line yields an empty slice; detection rejects it downstream.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// DetectLayout classifies a token sequence into one of the two known
// layouts. Lines with fewer than 9 tokens fail with *FormatError.
//
// Any 9+-token line whose index-3 token is not date-shaped is assumed
// to be Layout B rather than independently validated; a malformed line
// can therefore extract garbage fields instead of failing cleanly.
func DetectLayout(tokens []string) (Layout, error) {
	if len(tokens) < minTokens {
		return 0, &FormatError{Reason: fmt.Sprintf("need at least %d tokens, got %d", minTokens, len(tokens))}
	}
	if dateTokenRe.MatchString(tokens[3]) {
		return LayoutA, nil
	}
	return LayoutB, nil
}

// Extract reads the raw fields at the layout's fixed offsets. The
// designator always sits at tokens 1 and 2. The route token must carry
// at least six characters so that both airport codes exist; a shorter
// token fails with *FormatError before a RawSegment is constructed.
func Extract(tokens []string, layout Layout) (RawSegment, error) {
	off, ok := offsets[layout]
	if !ok {
		return RawSegment{}, &FormatError{Reason: fmt.Sprintf("unknown layout %v", layout)}
	}
	if len(tokens) <= off.arrTime {
		return RawSegment{}, &FormatError{Reason: fmt.Sprintf("layout %v needs %d tokens, got %d", layout, off.arrTime+1, len(tokens))}
	}

	route := tokens[off.route]
	if len(route) < 6 {
		return RawSegment{}, &FormatError{Reason: fmt.Sprintf("route token %q too short", route)}
	}

	return RawSegment{
		Designator:      tokens[1] + " " + tokens[2],
		DateToken:       tokens[off.date],
		OriginCode:      route[0:3],
		DestinationCode: route[3:6],
		DepTimeToken:    tokens[off.depTime],
		ArrTimeToken:    tokens[off.arrTime],
	}, nil
}

// ParseLine tokenizes a line, detects its layout and extracts the raw
// segment fields.
func ParseLine(line string) (RawSegment, error) {
	tokens := Tokenize(line)
	layout, err := DetectLayout(tokens)
	if err != nil {
		return RawSegment{}, err
	}
	return Extract(tokens, layout)
}
