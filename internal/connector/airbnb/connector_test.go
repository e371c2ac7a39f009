package airbnb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/ratelimit"
	"github.com/edirooss/chansync/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

type call struct {
	Method string
	Path   string
	Body   string
	Header http.Header
}

type apiServer struct {
	*httptest.Server
	mu    sync.Mutex
	calls []call
}

func newAPIServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) *apiServer {
	t.Helper()
	s := &apiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.calls = append(s.calls, call{Method: r.Method, Path: r.URL.Path, Body: string(raw), Header: r.Header.Clone()})
		s.mu.Unlock()
		handle(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *apiServer) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func newTestConnector(baseURL string, timeout time.Duration) *Connector {
	return New(connector.Deps{
		Log: zap.NewNop(),
		Transport: transport.Options{
			Timeout: timeout,
			Sleep:   func(context.Context, time.Duration) error { return nil },
		},
		Settings: map[string]connector.Settings{Type: {BaseURL: baseURL}},
		Limiter:  func(int) ratelimit.Limiter { return ratelimit.Unlimited{} },
		Now:      func() time.Time { return fixedNow },
	})
}

var validCreds = channel.Credentials{"api_key": "key-1", "access_token": "tok-1", "listing_id": "L9"}

func target(creds channel.Credentials) connector.Target {
	return connector.Target{
		ChannelID:   "ch-abb",
		Property:    property.Property{ID: "p-1", Currency: "EUR"},
		Credentials: creds,
	}
}

func threeRooms() []property.Room {
	return []property.Room{
		{ID: "r1", Name: "Double", BaseRate: 100, Quantity: 4, MaxOccupancy: 2},
		{ID: "r2", Name: "Twin", BaseRate: 90, Quantity: 2, MaxOccupancy: 2},
		{ID: "r3", Name: "Suite", BaseRate: 250, Quantity: 1, MaxOccupancy: 4},
	}
}

func TestDefaults(t *testing.T) {
	c := New(connector.Deps{})
	assert.Equal(t, "airbnb", c.Type())
	assert.Equal(t, 60, c.RequestsPerMinute())
	assert.Equal(t, []string{"api_key", "access_token", "listing_id"}, c.RequiredCredentials())
}

func TestDefaults_SettingsOverride(t *testing.T) {
	c := New(connector.Deps{Settings: map[string]connector.Settings{Type: {RequestsPerMinute: 20}}})
	assert.Equal(t, 20, c.RequestsPerMinute())
}

func TestSyncAvailability_MissingCredentialsMakesNoCalls(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, `{}`) })
	c := newTestConnector(srv.URL, time.Second)

	res := c.SyncAvailability(context.Background(), connector.AvailabilityRequest{
		Target:       target(channel.Credentials{"api_key": "k", "access_token": "t"}),
		Availability: []property.Availability{{RoomID: "r1", Date: fixedNow}},
	})
	assert.False(t, res.Success)
	assert.Equal(t, []string{"missing required credentials: listing_id"}, res.Errors)
	assert.Empty(t, srv.Calls())
}

func TestSyncInventory_SendsAuthHeaders(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, `{"room":{}}`) })
	c := newTestConnector(srv.URL, time.Second)

	tg := target(validCreds)
	tg.Mappings = channel.Mappings{Rooms: []channel.RoomMapping{
		{InternalID: "r1", ChannelID: "AB-1", Active: true},
		{InternalID: "r3", ChannelID: "AB-3", Active: false},
	}}
	res := c.SyncInventory(context.Background(), connector.InventoryRequest{Target: tg, Rooms: threeRooms()})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedRooms)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"room r3: mapping inactive, skipped"}, res.Warnings)

	calls := srv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "/listings/L9/rooms/AB-1", calls[0].Path)
	assert.Equal(t, "/listings/L9/rooms/r2", calls[1].Path)
	assert.Equal(t, "Bearer tok-1", calls[0].Header.Get("Authorization"))
	assert.Equal(t, "key-1", calls[0].Header.Get("X-Api-Key"))
	assert.Equal(t, "r1", gjson.Get(calls[0].Body, "external_id").String())
}

func TestSyncInventory_PartialAndTotalFailure(t *testing.T) {
	failing := map[string]bool{"/listings/L9/rooms/r1": true}
	var mu sync.Mutex
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		bad := failing[r.URL.Path]
		mu.Unlock()
		if bad {
			writeJSON(w, http.StatusForbidden, `{"error":"listing locked"}`)
			return
		}
		writeJSON(w, 200, `{}`)
	})
	c := newTestConnector(srv.URL, time.Second)

	res := c.SyncInventory(context.Background(), connector.InventoryRequest{Target: target(validCreds), Rooms: threeRooms()})
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedRooms)
	assert.Len(t, res.Errors, 1)

	mu.Lock()
	failing["/listings/L9/rooms/r2"] = true
	failing["/listings/L9/rooms/r3"] = true
	mu.Unlock()

	res = c.SyncInventory(context.Background(), connector.InventoryRequest{Target: target(validCreds), Rooms: threeRooms()})
	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 3)
}

func TestSyncRates_RoomTwoTimesOut(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/calendar/L9/rooms/r2/pricing" {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		writeJSON(w, 200, `{}`)
	})
	c := newTestConnector(srv.URL, 50*time.Millisecond)

	res := c.SyncRates(context.Background(), connector.RatesRequest{Target: target(validCreds), Rooms: threeRooms()})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedRates)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "room r2"), res.Errors[0])

	ok := srv.Calls()[0]
	assert.JSONEq(t, `{"start_date":"2026-05-01","end_date":"2027-05-01","daily_price":100,"currency":"EUR"}`, ok.Body)
}

func TestSyncAvailability_Calendar(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, `{}`) })
	c := newTestConnector(srv.URL, time.Second)

	rate := 75.0
	tg := target(validCreds)
	tg.Configuration = channel.Configuration{"default_min_stay": 2}
	res := c.SyncAvailability(context.Background(), connector.AvailabilityRequest{
		Target: tg,
		Rooms:  threeRooms(),
		Availability: []property.Availability{
			{RoomID: "r2", Date: time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), Available: 0},
			{RoomID: "r2", Date: time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), Available: 2, Rate: &rate, MinStay: 3},
		},
	})
	require.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedInventory)

	got := srv.Calls()[0]
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/calendar/L9/rooms/r2", got.Path)
	assert.JSONEq(t, `{"days":[
		{"date":"2026-05-02","available":false,"available_units":0,"daily_price":90,"min_nights":2,"currency":"EUR"},
		{"date":"2026-05-03","available":true,"available_units":2,"daily_price":75,"min_nights":3,"currency":"EUR"}
	]}`, got.Body)
}

func TestTestConnection_IsReadOnlyAndIdempotent(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"listing":{"id":"L9","name":"Loft by the river"}}`)
	})
	c := newTestConnector(srv.URL, time.Second)

	first := c.TestConnection(context.Background(), validCreds, nil)
	second := c.TestConnection(context.Background(), validCreds, nil)
	assert.True(t, first.Success)
	assert.Equal(t, first, second)
	assert.Equal(t, "Loft by the river", first.Details["listing_name"])
	for _, got := range srv.Calls() {
		assert.Equal(t, http.MethodGet, got.Method)
	}
}

func TestTestConnection_MissingCredentials(t *testing.T) {
	c := newTestConnector("http://127.0.0.1:1", time.Second)
	res := c.TestConnection(context.Background(), channel.Credentials{}, nil)
	assert.False(t, res.Success)
	assert.Equal(t, "missing required credentials: api_key, access_token, listing_id", res.Message)
}

func TestGetBookings(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "L9", r.URL.Query().Get("listing_id"))
		writeJSON(w, 200, `{"reservations":[{"confirmation_code":"HM123","status":"accepted",
			"start_date":"2026-07-10","end_date":"2026-07-12","room_id":"r1",
			"guest":{"full_name":"Alan Turing","email":"alan@example.com"},
			"total_paid_amount":180,"currency":"EUR","notes":"late arrival"}]}`)
	})
	c := newTestConnector(srv.URL, time.Second)

	got := c.GetBookings(context.Background(), validCreds, nil, property.DefaultRange(fixedNow))
	require.Len(t, got, 1)
	assert.Equal(t, booking.Booking{
		ID:               "airbnb-HM123",
		ChannelBookingID: "HM123",
		ChannelType:      Type,
		GuestName:        "Alan Turing",
		GuestEmail:       "alan@example.com",
		CheckIn:          time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:         time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC),
		RoomID:           "r1",
		Status:           "accepted",
		TotalAmount:      180,
		Currency:         "EUR",
		Notes:            "late arrival",
	}, got[0])
}

func TestGetBookings_NonJSONYieldsEmptyList(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	c := newTestConnector(srv.URL, time.Second)

	got := c.GetBookings(context.Background(), validCreds, nil, property.DefaultRange(fixedNow))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUpdateBooking_Failure(t *testing.T) {
	srv := newAPIServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"unknown reservation"}`)
	})
	c := newTestConnector(srv.URL, time.Second)

	res := c.UpdateBooking(context.Background(), connector.BookingUpdateRequest{
		Target:    target(validCreds),
		BookingID: "HM404",
		Update:    booking.Update{Status: "cancelled"},
	})
	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "booking HM404: http 404"), res.Errors[0])
	assert.Len(t, srv.Calls(), 1)
}
