package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"itinerary_parser/internal/airports"
	"itinerary_parser/internal/publish"
	"itinerary_parser/internal/storage"
)

// mockStore implements ConversionStore for testing.
type mockStore struct {
	records map[uuid.UUID]*storage.ConversionRecord
	order   []uuid.UUID
}

func newMockStore() *mockStore {
	return &mockStore{records: make(map[uuid.UUID]*storage.ConversionRecord)}
}

func (m *mockStore) InsertConversion(_ context.Context, rec *storage.ConversionRecord) (uuid.UUID, error) {
	id := uuid.New()
	rec.ID = id
	m.records[id] = rec
	m.order = append(m.order, id)
	return id, nil
}

func (m *mockStore) ListConversions(_ context.Context, limit int) ([]storage.ConversionRecord, error) {
	var records []storage.ConversionRecord
	for i := len(m.order) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, *m.records[m.order[i]])
	}
	return records, nil
}

func (m *mockStore) GetConversion(_ context.Context, id uuid.UUID) (*storage.ConversionRecord, error) {
	return m.records[id], nil
}

// mockPublisher captures published events.
type mockPublisher struct {
	events []publish.ConvertedEvent
}

func (m *mockPublisher) Publish(event publish.ConvertedEvent) error {
	m.events = append(m.events, event)
	return nil
}

func newTestServer(store ConversionStore, pub EventPublisher) *Server {
	return NewServer(store, airports.NewDirectory(), pub, nil, Config{Port: 8082})
}

func postConvert(t *testing.T, server *Server, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/convert", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	server := NewServer(nil, airports.NewDirectory(), nil, nil, Config{
		Port:        8082,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123"},
	})

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
	}{
		{name: "no key", wantStatus: http.StatusUnauthorized},
		{name: "invalid key", header: "X-API-Key", value: "wrong-key", wantStatus: http.StatusForbidden},
		{name: "valid key via X-API-Key", header: "X-API-Key", value: "test-key-123", wantStatus: http.StatusOK},
		{name: "valid key via bearer", header: "Authorization", value: "Bearer test-key-123", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestConvertEndpoint(t *testing.T) {
	store := newMockStore()
	pub := &mockPublisher{}
	server := newTestServer(store, pub)

	rec := postConvert(t, server, map[string]string{
		"text":             "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS",
		"reservation_code": "ABC123",
		"reference_date":   "2025-09-01",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ConvertResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Itinerary.Departure.FlightNumber != "OZ 369" {
		t.Errorf("FlightNumber = %q, want %q", resp.Itinerary.Departure.FlightNumber, "OZ 369")
	}
	if resp.Itinerary.Departure.DisplayDate != "2025.11.14(금)" {
		t.Errorf("DisplayDate = %q, want %q", resp.Itinerary.Departure.DisplayDate, "2025.11.14(금)")
	}
	if resp.ID == "" {
		t.Error("expected stored conversion ID")
	}

	// Conversion was recorded.
	if len(store.records) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(store.records))
	}

	// Conversion event was published.
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	if pub.events[0].FlightNumber != "OZ 369" {
		t.Errorf("event FlightNumber = %q, want %q", pub.events[0].FlightNumber, "OZ 369")
	}
}

func TestConvertEndpoint_Errors(t *testing.T) {
	server := newTestServer(nil, nil)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing text",
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "bad reference date",
			body: map[string]string{
				"text":           "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS",
				"reference_date": "01-09-2025",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unparseable line",
			body:       map[string]string{"text": "hello world"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "format_error",
		},
		{
			name: "unknown month",
			body: map[string]string{
				"text":           "1 OZ 369T 14XXX 5 ICNCAN HK6 0820 1130 HRS",
				"reference_date": "2025-09-01",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unknown_month",
		},
		{
			name: "invalid date",
			body: map[string]string{
				"text":           "1 OZ 369T 30FEB 5 ICNCAN HK6 0820 1130 HRS",
				"reference_date": "2025-09-01",
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "invalid_date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postConvert(t, server, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				var resp map[string]string
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp["code"] != tt.wantCode {
					t.Errorf("code = %q, want %q", resp["code"], tt.wantCode)
				}
			}
		})
	}
}

func TestConversionsEndpoints(t *testing.T) {
	store := newMockStore()
	server := newTestServer(store, nil)

	rec := postConvert(t, server, map[string]string{
		"text":           "1 OZ 369T 14NOV 5 ICNCAN HK6 0820 1130 HRS",
		"reference_date": "2025-09-01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d", rec.Code)
	}
	var created ConvertResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/conversions", nil)
	listRec := httptest.NewRecorder()
	server.Router().ServeHTTP(listRec, req)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	var listResp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if listResp.Count != 1 {
		t.Errorf("count = %d, want 1", listResp.Count)
	}

	req = httptest.NewRequest(http.MethodGet, "/conversions/"+created.ID, nil)
	getRec := httptest.NewRecorder()
	server.Router().ServeHTTP(getRec, req)
	if getRec.Code != http.StatusOK {
		t.Errorf("get status = %d", getRec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/conversions/"+uuid.NewString(), nil)
	missRec := httptest.NewRecorder()
	server.Router().ServeHTTP(missRec, req)
	if missRec.Code != http.StatusNotFound {
		t.Errorf("missing conversion status = %d, want 404", missRec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/conversions/not-a-uuid", nil)
	badRec := httptest.NewRecorder()
	server.Router().ServeHTTP(badRec, req)
	if badRec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", badRec.Code)
	}
}

func TestAirportEndpoint(t *testing.T) {
	server := newTestServer(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/airports/icn", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AirportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Code != "ICN" {
		t.Errorf("Code = %q, want %q", resp.Code, "ICN")
	}
	if resp.Name != "인천" {
		t.Errorf("Name = %q, want %q", resp.Name, "인천")
	}
	if resp.Terminal != "터미널 1" {
		t.Errorf("Terminal = %q, want %q", resp.Terminal, "터미널 1")
	}

	req = httptest.NewRequest(http.MethodGet, "/airports/TOOLONG", nil)
	badRec := httptest.NewRecorder()
	server.Router().ServeHTTP(badRec, req)
	if badRec.Code != http.StatusBadRequest {
		t.Errorf("long code status = %d, want 400", badRec.Code)
	}
}
