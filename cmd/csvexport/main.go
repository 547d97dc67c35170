// Command csvexport dumps the local SQLite conversion history to CSV.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jszwec/csvutil"

	"itinerary_parser/internal/storage"
)

// row is the CSV shape of one conversion.
type row struct {
	ID              int64  `csv:"id"`
	CreatedAt       string `csv:"created_at"`
	ReferenceDate   string `csv:"reference_date"`
	ReservationCode string `csv:"reservation_code"`
	FlightNumber    string `csv:"flight_number"`
	TravelDate      string `csv:"travel_date"`
	Origin          string `csv:"origin"`
	Destination     string `csv:"destination"`
	HasArrival      bool   `csv:"has_arrival"`
	OutputText      string `csv:"output_text"`
}

func main() {
	dbPath := flag.String("db", "", "SQLite history database (required)")
	outPath := flag.String("output", "", "Output CSV file (default: stdout)")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "csvexport requires -db")
		flag.Usage()
		os.Exit(2)
	}

	db, err := storage.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	conversions, err := db.All()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read conversions: %v\n", err)
		os.Exit(1)
	}

	rows := make([]row, 0, len(conversions))
	for _, c := range conversions {
		rows = append(rows, row{
			ID:              c.ID,
			CreatedAt:       c.CreatedAt.Format("2006-01-02 15:04:05"),
			ReferenceDate:   c.ReferenceDate,
			ReservationCode: c.ReservationCode,
			FlightNumber:    c.FlightNumber,
			TravelDate:      c.TravelDate,
			Origin:          c.Origin,
			Destination:     c.Destination,
			HasArrival:      c.HasArrival,
			OutputText:      c.OutputText,
		})
	}

	data, err := csvutil.Marshal(rows)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CSV encode error: %v\n", err)
		os.Exit(1)
	}

	if *outPath == "" {
		_, _ = os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Exported %d conversions to %s\n", len(rows), *outPath)
}
