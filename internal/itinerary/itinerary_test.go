package itinerary

import (
	"errors"
	"testing"
	"time"

	"itinerary_parser/internal/airports"
	"itinerary_parser/internal/gds"
	"itinerary_parser/internal/normalize"
)

var refDate = time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

func newConverter() *Converter {
	// Empty directory: resolution exercises the embedded fallback table.
	return NewConverter(airports.NewDirectory())
}

func TestConvert_DepartureOnly(t *testing.T) {
	it, err := newConverter().Convert("1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS", "", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if it.Arrival != nil {
		t.Error("expected no arrival leg")
	}
	if it.ReservationCode != "" {
		t.Errorf("ReservationCode = %q, want empty", it.ReservationCode)
	}

	dep := it.Departure
	if dep.FlightNumber != "OZ 369" {
		t.Errorf("FlightNumber = %q, want %q", dep.FlightNumber, "OZ 369")
	}
	if dep.DisplayDate != "2025.11.14(금)" {
		t.Errorf("DisplayDate = %q, want %q", dep.DisplayDate, "2025.11.14(금)")
	}
	if dep.OriginName != "인천" {
		t.Errorf("OriginName = %q, want %q", dep.OriginName, "인천")
	}
	if dep.DestinationName != "광저우" {
		t.Errorf("DestinationName = %q, want %q", dep.DestinationName, "광저우")
	}
	if dep.DepartureTime != "08:20" {
		t.Errorf("DepartureTime = %q, want %q", dep.DepartureTime, "08:20")
	}
	if dep.ArrivalTime != "11:30" {
		t.Errorf("ArrivalTime = %q, want %q", dep.ArrivalTime, "11:30")
	}

	want := "출발 : 2025.11.14(금) - 인천: 08:20 - 광저우: 11:30 - OZ 369"
	if got := it.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	text := "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS\n" +
		"2 OZ 370 16NOV 7 CANICN HK6 1230 1645 HRS"

	it, err := newConverter().Convert(text, "", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Arrival == nil {
		t.Fatal("expected arrival leg")
	}

	if it.Arrival.FlightNumber != "OZ 370" {
		t.Errorf("arrival FlightNumber = %q, want %q", it.Arrival.FlightNumber, "OZ 370")
	}
	if it.Arrival.DisplayDate != "2025.11.16(일)" {
		t.Errorf("arrival DisplayDate = %q, want %q", it.Arrival.DisplayDate, "2025.11.16(일)")
	}

	want := "출발 : 2025.11.14(금) - 인천: 08:20 - 광저우: 11:30 - OZ 369" +
		"\n\n" +
		"도착 : 2025.11.16(일) - 광저우: 12:30 - 인천: 16:45 - OZ 370"
	if got := it.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestConvert_LayoutB(t *testing.T) {
	it, err := newConverter().Convert("1  KE 711 U 03FEB 2 ICNNRT DK9  1325 1555  03FEB  E  0 73J L", "", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dep := it.Departure
	if dep.FlightNumber != "KE 711" {
		t.Errorf("FlightNumber = %q, want %q", dep.FlightNumber, "KE 711")
	}
	if dep.DisplayDate != "2026.02.03(화)" {
		t.Errorf("DisplayDate = %q, want %q", dep.DisplayDate, "2026.02.03(화)")
	}
	if dep.OriginName != "인천" {
		t.Errorf("OriginName = %q, want %q", dep.OriginName, "인천")
	}
	if dep.DestinationName != "나리타" {
		t.Errorf("DestinationName = %q, want %q", dep.DestinationName, "나리타")
	}
}

func TestConvert_ReservationCodeHeader(t *testing.T) {
	it, err := newConverter().Convert("1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS", "ABC123", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := headerRule + "\n" +
		"📌 예약번호: ABC123\n" +
		headerRule + "\n\n" +
		"출발 : 2025.11.14(금) - 인천: 08:20 - 광저우: 11:30 - OZ 369"
	if got := it.Render(); got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestConvert_DepartureFailureIsFatal(t *testing.T) {
	_, err := newConverter().Convert("not an itinerary at all", "", refDate)
	var fe *gds.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *gds.FormatError, got %v", err)
	}

	_, err = newConverter().Convert("", "", refDate)
	if !errors.As(err, &fe) {
		t.Fatalf("expected *gds.FormatError for empty input, got %v", err)
	}
}

func TestConvert_BadDepartureDate(t *testing.T) {
	_, err := newConverter().Convert("1 OZ 369T 30FEB 5 ICNCAN HK6 0820 1130 HRS", "", refDate)
	var ide *normalize.InvalidDateError
	if !errors.As(err, &ide) {
		t.Fatalf("expected *normalize.InvalidDateError, got %v", err)
	}

	_, err = newConverter().Convert("1 OZ 369T 14XXX 5 ICNCAN HK6 0820 1130 HRS", "", refDate)
	var ume *normalize.UnknownMonthError
	if !errors.As(err, &ume) {
		t.Fatalf("expected *normalize.UnknownMonthError, got %v", err)
	}
}

func TestConvert_BrokenArrivalDegradesToSingleLeg(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "arrival line too short",
			text: "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS\ngarbage second line",
		},
		{
			name: "arrival date invalid",
			text: "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS\n2 OZ 370 30FEB 7 CANICN HK6 1230 1645 HRS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := newConverter().Convert(tt.text, "", refDate)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if it.Arrival != nil {
				t.Error("expected single-leg itinerary")
			}
		})
	}
}

func TestConvert_BlankLinesIgnored(t *testing.T) {
	text := "\n\n1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS\n\n" +
		"2 OZ 370 16NOV 7 CANICN HK6 1230 1645 HRS\n\n"

	it, err := newConverter().Convert(text, "", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Arrival == nil {
		t.Error("expected arrival leg from second non-empty line")
	}
}

func TestConvert_MalformedTimesPassThrough(t *testing.T) {
	it, err := newConverter().Convert("1 OZ 369T 14NOV 5 ICNCAN HK6 820 113055 HRS", "", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if it.Departure.DepartureTime != "820" {
		t.Errorf("DepartureTime = %q, want pass-through %q", it.Departure.DepartureTime, "820")
	}
	if it.Departure.ArrivalTime != "113055" {
		t.Errorf("ArrivalTime = %q, want pass-through %q", it.Departure.ArrivalTime, "113055")
	}
}

func TestConvert_Idempotent(t *testing.T) {
	text := "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS\n" +
		"2 OZ 370 16NOV 7 CANICN HK6 1230 1645 HRS"
	c := newConverter()

	first, err := c.Convert(text, "XY12Z", refDate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := c.Convert(text, "XY12Z", refDate)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.Render() != first.Render() {
			t.Fatal("output changed between identical runs")
		}
	}
}
