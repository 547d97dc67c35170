// Command-line entry point for the itinerary converter.
//
// Reads a pasted GDS-style reservation block (departure line, optional
// arrival line) and prints the normalized itinerary text. Conversions
// can optionally be recorded in a local SQLite history database.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"itinerary_parser/internal/airports"
	"itinerary_parser/internal/itinerary"
	"itinerary_parser/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "itinerary_parser - commands:")
	fmt.Fprintln(w, "  convert  - convert a pasted reservation block to itinerary text")
	fmt.Fprintln(w, "  history  - query the local conversion history database")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  itinerary_parser convert [-input file] [-pnr code] [-date YYYY-MM-DD] [-airports dataset.json] [-db history.db]")
	fmt.Fprintln(w, "  itinerary_parser history -db history.db [-flight N] [-search text] [-limit N] [-stats]")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "convert":
		runConvert(os.Args[2:])
	case "history":
		runHistory(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	inPath := fs.String("input", "", "Input file with the pasted reservation block (default: stdin)")
	outPath := fs.String("output", "", "Output file (default: stdout)")
	pnr := fs.String("pnr", "", "Reservation code to prepend as a header block")
	dateStr := fs.String("date", "", "Reference date for year inference, YYYY-MM-DD (default: today)")
	airportsPath := fs.String("airports", "", "Path to the region-grouped airport dataset JSON")
	dbPath := fs.String("db", "", "SQLite history database; record the conversion when set")
	_ = fs.Parse(args)

	// The reference date is resolved here at the boundary so the core
	// stays deterministic.
	ref := time.Now()
	if *dateStr != "" {
		parsed, err := time.Parse("2006-01-02", *dateStr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -date (want YYYY-MM-DD): %v\n", err)
			os.Exit(1)
		}
		ref = parsed
	}

	dir := airports.NewDirectory()
	if *airportsPath != "" {
		loaded, err := airports.Load(*airportsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load airport dataset: %v\n", err)
			os.Exit(1)
		}
		dir = loaded
	}

	var r io.Reader = os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = f
	}

	text, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}

	converter := itinerary.NewConverter(dir)
	it, err := converter.Convert(string(text), *pnr, ref)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Conversion failed: %v\n", err)
		os.Exit(1)
	}
	output := it.Render()

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		wout = f
	}

	fmt.Fprintln(wout, output)

	if *dbPath != "" {
		db, err := storage.Open(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()

		_, err = db.Insert(storage.InsertParams{
			ReferenceDate:   ref.Format("2006-01-02"),
			ReservationCode: it.ReservationCode,
			FlightNumber:    it.Departure.FlightNumber,
			TravelDate:      it.Departure.DisplayDate,
			Origin:          it.Departure.OriginName,
			Destination:     it.Departure.DestinationName,
			HasArrival:      it.Arrival != nil,
			RawText:         string(text),
			OutputText:      output,
			Itinerary:       it,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to record conversion: %v\n", err)
			os.Exit(1)
		}
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite history database (required)")
	flight := fs.String("flight", "", "Filter by flight number substring")
	search := fs.String("search", "", "Full-text search on the pasted input")
	limit := fs.Int("limit", 20, "Max results")
	showStats := fs.Bool("stats", false, "Print aggregate statistics instead of rows")
	_ = fs.Parse(args)

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "history requires -db")
		os.Exit(2)
	}

	db, err := storage.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open history database: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if *showStats {
		stats, err := db.GetStats()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read stats: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("conversions=%d with_arrival=%d with_reservation=%d\n",
			stats.TotalConversions, stats.WithArrival, stats.WithReservation)
		for origin, count := range stats.ByOrigin {
			fmt.Printf("origin %-12s %d\n", origin, count)
		}
		return
	}

	conversions, err := db.Query(storage.QueryParams{
		Flight:   *flight,
		FullText: *search,
		Limit:    *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	for _, c := range conversions {
		fmt.Printf("#%d  %s  %s  %s -> %s\n", c.ID, c.TravelDate, c.FlightNumber, c.Origin, c.Destination)
	}
	if len(conversions) == 0 {
		fmt.Println("no conversions found")
	}
}
