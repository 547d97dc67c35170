// Package itinerary runs the full conversion pipeline: a pasted block
// of GDS segment lines in, a normalized human-readable itinerary out.
package itinerary

import (
	"strings"
	"time"

	"itinerary_parser/internal/airports"
	"itinerary_parser/internal/gds"
	"itinerary_parser/internal/normalize"
)

// NormalizedSegment is one leg of travel with every field in display form.
type NormalizedSegment struct {
	FlightNumber    string `json:"flight_number"`
	DisplayDate     string `json:"display_date"`
	OriginName      string `json:"origin_name"`
	DestinationName string `json:"destination_name"`
	DepartureTime   string `json:"departure_time"`
	ArrivalTime     string `json:"arrival_time"`
}

// Itinerary is the assembled conversion result: a required departure
// leg, an optional arrival leg and an optional reservation code.
type Itinerary struct {
	ReservationCode string             `json:"reservation_code,omitempty"`
	Departure       NormalizedSegment  `json:"departure"`
	Arrival         *NormalizedSegment `json:"arrival,omitempty"`
}

const headerRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Render produces the final text block. A reservation code prepends a
// decorated header; the arrival leg, when present, follows the
// departure leg separated by a blank line.
func (it *Itinerary) Render() string {
	var b strings.Builder

	if it.ReservationCode != "" {
		b.WriteString(headerRule + "\n")
		b.WriteString("📌 예약번호: " + it.ReservationCode + "\n")
		b.WriteString(headerRule + "\n\n")
	}

	b.WriteString("출발 : " + formatLeg(it.Departure))
	if it.Arrival != nil {
		b.WriteString("\n\n도착 : " + formatLeg(*it.Arrival))
	}
	return b.String()
}

func formatLeg(s NormalizedSegment) string {
	return s.DisplayDate + " - " + s.OriginName + ": " + s.DepartureTime +
		" - " + s.DestinationName + ": " + s.ArrivalTime + " - " + s.FlightNumber
}

// Converter turns pasted itinerary text into Itinerary values. It holds
// the airport directory and nothing else; conversions share no state.
type Converter struct {
	airports *airports.Directory
}

// NewConverter creates a Converter resolving names against dir.
func NewConverter(dir *airports.Directory) *Converter {
	return &Converter{airports: dir}
}

// Convert parses a text block and assembles the itinerary. The first
// non-empty line is the mandatory departure leg; a parse failure there
// fails the whole conversion. The second line, if present, is the
// optional arrival leg; if it cannot be parsed or normalized the result
// is simply a single-leg itinerary. The reference date stands in for
// "today" during year inference.
func (c *Converter) Convert(text, reservationCode string, ref time.Time) (*Itinerary, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, &gds.FormatError{Reason: "no segment lines in input"}
	}

	departure, err := c.convertLine(lines[0], ref)
	if err != nil {
		return nil, err
	}

	it := &Itinerary{
		ReservationCode: strings.TrimSpace(reservationCode),
		Departure:       *departure,
	}

	if len(lines) >= 2 {
		if arrival, err := c.convertLine(lines[1], ref); err == nil {
			it.Arrival = arrival
		}
	}

	return it, nil
}

// convertLine parses and normalizes a single segment line.
func (c *Converter) convertLine(line string, ref time.Time) (*NormalizedSegment, error) {
	raw, err := gds.ParseLine(line)
	if err != nil {
		return nil, err
	}

	displayDate, err := normalize.Date(raw.DateToken, ref)
	if err != nil {
		return nil, err
	}

	return &NormalizedSegment{
		FlightNumber:    normalize.FlightNumber(raw.Designator),
		DisplayDate:     displayDate,
		OriginName:      c.airports.Resolve(raw.OriginCode),
		DestinationName: c.airports.Resolve(raw.DestinationCode),
		DepartureTime:   normalize.Time(raw.DepTimeToken),
		ArrivalTime:     normalize.Time(raw.ArrTimeToken),
	}, nil
}
