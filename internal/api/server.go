// Package api provides the REST API around the itinerary conversion core.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"itinerary_parser/internal/airports"
	"itinerary_parser/internal/gds"
	"itinerary_parser/internal/itinerary"
	"itinerary_parser/internal/normalize"
	"itinerary_parser/internal/publish"
	"itinerary_parser/internal/storage"
)

// ConversionStore is the persistence interface the server needs.
// *storage.PostgresDB implements it; tests substitute a mock.
type ConversionStore interface {
	InsertConversion(ctx context.Context, rec *storage.ConversionRecord) (uuid.UUID, error)
	ListConversions(ctx context.Context, limit int) ([]storage.ConversionRecord, error)
	GetConversion(ctx context.Context, id uuid.UUID) (*storage.ConversionRecord, error)
}

// EventPublisher sends conversion events to downstream consumers.
type EventPublisher interface {
	Publish(event publish.ConvertedEvent) error
}

// AnalyticsSink records conversion events for analytics.
type AnalyticsSink interface {
	InsertEvents(ctx context.Context, events []storage.ConversionEvent) error
}

// Server converts pasted itineraries over HTTP and serves history.
type Server struct {
	store       ConversionStore
	converter   *itinerary.Converter
	airports    *airports.Directory
	datasetPath string
	publisher   EventPublisher
	analytics   AnalyticsSink
	port        int
	authEnabled bool
	apiKeys     map[string]bool
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string
	DatasetPath string // Airport dataset path, used by the reload endpoint.
}

// NewServer creates a new itinerary API server. Publisher and analytics
// are optional; pass nil to disable them.
func NewServer(store ConversionStore, dir *airports.Directory, pub EventPublisher, sink AnalyticsSink, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &Server{
		store:       store,
		converter:   itinerary.NewConverter(dir),
		airports:    dir,
		datasetPath: cfg.DatasetPath,
		publisher:   pub,
		analytics:   sink,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS for browser access.
	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Itinerary API listening on %s", addr)
	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Post("/convert", s.handleConvert)
	r.Get("/conversions", s.handleListConversions)
	r.Get("/conversions/{id}", s.handleGetConversion)
	r.Get("/airports/{code}", s.handleGetAirport)
	r.Post("/airports/reload", s.handleReloadAirports)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ConvertRequest is the JSON body for POST /convert.
type ConvertRequest struct {
	Text            string `json:"text"`
	ReservationCode string `json:"reservation_code,omitempty"`
	// ReferenceDate overrides "today" for year inference (YYYY-MM-DD).
	ReferenceDate string `json:"reference_date,omitempty"`
}

// ConvertResponse is the JSON response for POST /convert.
type ConvertResponse struct {
	ID        string               `json:"id,omitempty"`
	Output    string               `json:"output"`
	Itinerary *itinerary.Itinerary `json:"itinerary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	// The reference date is resolved here at the boundary; the core
	// never reads the clock.
	ref := time.Now().UTC()
	if req.ReferenceDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ReferenceDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reference_date must be YYYY-MM-DD")
			return
		}
		ref = parsed
	}

	it, err := s.converter.Convert(req.Text, req.ReservationCode, ref)
	if err != nil {
		writeConvertError(w, err)
		return
	}

	resp := ConvertResponse{
		Output:    it.Render(),
		Itinerary: it,
	}

	if s.store != nil {
		if id, err := s.storeConversion(r.Context(), req, ref, it, resp.Output); err != nil {
			log.Printf("store conversion: %v", err)
		} else {
			resp.ID = id.String()
		}
	}

	if s.publisher != nil {
		event := publish.ConvertedEvent{
			ConversionID:    resp.ID,
			FlightNumber:    it.Departure.FlightNumber,
			TravelDate:      it.Departure.DisplayDate,
			Origin:          it.Departure.OriginName,
			Destination:     it.Departure.DestinationName,
			HasArrival:      it.Arrival != nil,
			ReservationCode: it.ReservationCode,
			OutputText:      resp.Output,
		}
		if err := s.publisher.Publish(event); err != nil {
			log.Printf("publish conversion event: %v", err)
		}
	}

	if s.analytics != nil {
		s.recordAnalytics(r.Context(), req, it, resp.Output)
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeConvertError maps pipeline errors to a 422 with a stable code.
func writeConvertError(w http.ResponseWriter, err error) {
	var fe *gds.FormatError
	var ume *normalize.UnknownMonthError
	var ide *normalize.InvalidDateError

	code := "conversion_failed"
	switch {
	case errors.As(err, &fe):
		code = "format_error"
	case errors.As(err, &ume):
		code = "unknown_month"
	case errors.As(err, &ide):
		code = "invalid_date"
	}

	writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
		"error": err.Error(),
		"code":  code,
	})
}

func (s *Server) storeConversion(ctx context.Context, req ConvertRequest, ref time.Time, it *itinerary.Itinerary, output string) (uuid.UUID, error) {
	itineraryJSON, err := json.Marshal(it)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal itinerary: %w", err)
	}

	return s.store.InsertConversion(ctx, &storage.ConversionRecord{
		ReferenceDate:   ref,
		ReservationCode: it.ReservationCode,
		FlightNumber:    it.Departure.FlightNumber,
		TravelDate:      it.Departure.DisplayDate,
		Origin:          it.Departure.OriginName,
		Destination:     it.Departure.DestinationName,
		HasArrival:      it.Arrival != nil,
		RawText:         req.Text,
		OutputText:      output,
		ItineraryJSON:   itineraryJSON,
	})
}

func (s *Server) recordAnalytics(ctx context.Context, req ConvertRequest, it *itinerary.Itinerary, output string) {
	layout := ""
	for _, line := range strings.Split(req.Text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if l, err := gds.DetectLayout(gds.Tokenize(line)); err == nil {
			layout = l.String()
		}
		break
	}

	event := storage.ConversionEvent{
		Timestamp:      time.Now().UTC(),
		Layout:         layout,
		FlightNumber:   it.Departure.FlightNumber,
		Origin:         it.Departure.OriginName,
		Destination:    it.Departure.DestinationName,
		TravelDate:     it.Departure.DisplayDate,
		HasArrival:     it.Arrival != nil,
		HasReservation: it.ReservationCode != "",
		InputBytes:     uint32(len(req.Text)),
		OutputBytes:    uint32(len(output)),
	}
	if err := s.analytics.InsertEvents(ctx, []storage.ConversionEvent{event}); err != nil {
		log.Printf("record analytics event: %v", err)
	}
}

func (s *Server) handleListConversions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "History storage not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := s.store.ListConversions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"conversions": records,
		"count":       len(records),
	})
}

func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "History storage not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid conversion ID")
		return
	}

	rec, err := s.store.GetConversion(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Conversion not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// AirportResponse is the JSON response for airport lookups.
type AirportResponse struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Terminal string `json:"terminal,omitempty"`
}

func (s *Server) handleGetAirport(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if len(code) != 3 {
		writeError(w, http.StatusBadRequest, "Airport code must be 3 letters")
		return
	}

	writeJSON(w, http.StatusOK, AirportResponse{
		Code:     code,
		Name:     s.airports.Resolve(code),
		Terminal: s.airports.Terminal(code),
	})
}

func (s *Server) handleReloadAirports(w http.ResponseWriter, r *http.Request) {
	if s.datasetPath == "" {
		writeError(w, http.StatusServiceUnavailable, "No airport dataset configured")
		return
	}

	if err := s.airports.Reload(s.datasetPath); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"airports": s.airports.Len(),
	})
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
