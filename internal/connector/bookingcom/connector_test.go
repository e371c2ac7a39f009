package bookingcom

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/ratelimit"
	"github.com/edirooss/chansync/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

type recordedCall struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

// otaServer records every call and answers through handle.
type otaServer struct {
	*httptest.Server
	mu    sync.Mutex
	calls []recordedCall
}

func newOTAServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body string)) *otaServer {
	t.Helper()
	s := &otaServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.calls = append(s.calls, recordedCall{Method: r.Method, Path: r.URL.Path, Body: string(raw), Auth: r.Header.Get("Authorization")})
		s.mu.Unlock()
		handle(w, r, string(raw))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *otaServer) Calls() []recordedCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedCall(nil), s.calls...)
}

func okOTA(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(`<OTA_HotelProductNotifRS xmlns="http://www.opentravel.org/OTA/2003/05"><Success/></OTA_HotelProductNotifRS>`))
}

func errOTA(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte(`<OTA_HotelProductNotifRS xmlns="http://www.opentravel.org/OTA/2003/05"><Errors><Error Code="392" ShortText="` + text + `"/></Errors></OTA_HotelProductNotifRS>`))
}

// requestDoc parses an outbound OTA message.
func requestDoc(t *testing.T, body string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(body))
	require.NotNil(t, doc.Root())
	return doc
}

func attrs(t *testing.T, doc *etree.Document, path string, keys ...string) []string {
	t.Helper()
	el := doc.FindElement(path)
	require.NotNil(t, el, path)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = el.SelectAttrValue(k, "")
	}
	return out
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

var validCreds = channel.Credentials{"hotel_id": "H-77", "username": "u", "password": "p"}

func target(creds channel.Credentials) connector.Target {
	return connector.Target{
		ChannelID:   "ch-bc",
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
	assert.Equal(t, "booking_com", c.Type())
	assert.Equal(t, 30, c.RequestsPerMinute())
	assert.Equal(t, []string{"hotel_id", "username", "password"}, c.RequiredCredentials())
}

func TestSyncInventory_MissingCredentialsMakesNoCalls(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(srv.URL, time.Second)

	res := c.SyncInventory(context.Background(), connector.InventoryRequest{
		Target: target(channel.Credentials{"hotel_id": "H-77", "username": "u"}),
		Rooms:  threeRooms(),
	})

	assert.False(t, res.Success)
	assert.Equal(t, []string{"missing required credentials: password"}, res.Errors)
	assert.Empty(t, srv.Calls())
}

func TestSyncInventory_PartialFailure(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		if strings.Contains(body, `RoomTypeCode="r2"`) {
			errOTA(w, "Invalid room type")
			return
		}
		okOTA(w)
	})
	c := newTestConnector(srv.URL, time.Second)

	res := c.SyncInventory(context.Background(), connector.InventoryRequest{Target: target(validCreds), Rooms: threeRooms()})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedRooms)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "room r2"), res.Errors[0])
	assert.Contains(t, res.Errors[0], "Invalid room type")

	calls := srv.Calls()
	require.Len(t, calls, 3)
	for _, call := range calls {
		assert.Equal(t, http.MethodPost, call.Method)
		assert.Equal(t, "/OTA_HotelProductNotif", call.Path)
		assert.Equal(t, connector.BasicAuth("u", "p"), call.Auth)
	}
}

func TestSyncInventory_AllFail(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusBadRequest)
	})
	c := newTestConnector(srv.URL, time.Second)

	res := c.SyncInventory(context.Background(), connector.InventoryRequest{Target: target(validCreds), Rooms: threeRooms()})

	assert.False(t, res.Success)
	assert.Len(t, res.Errors, 3)
	assert.Equal(t, 0, res.SyncedRooms)
	assert.Len(t, srv.Calls(), 3) // 400 is never retried
}

func TestSyncInventory_EscapesMarkup(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(srv.URL, time.Second)

	res := c.SyncInventory(context.Background(), connector.InventoryRequest{
		Target: target(validCreds),
		Rooms:  []property.Room{{ID: "r1", Name: `Tom & Jerry's <Loft>`, Description: `"sea" view`}},
	})
	require.True(t, res.Success)

	body := srv.Calls()[0].Body
	assert.NotContains(t, body, "<Loft>")
	doc := requestDoc(t, body)
	assert.Equal(t, otaNS, doc.Root().SelectAttrValue("xmlns", ""))
	assert.Equal(t, []string{`Tom & Jerry's <Loft>`}, attrs(t, doc, "//RoomDescription", "Name"))
	assert.Equal(t, `"sea" view`, doc.FindElement("//RoomDescription/Text").Text())
}

func TestSyncRates_RoomTwoTimesOut(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, body string) {
		if strings.Contains(body, `InvTypeCode="r2"`) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		okOTA(w)
	})
	c := newTestConnector(srv.URL, 50*time.Millisecond)

	res := c.SyncRates(context.Background(), connector.RatesRequest{Target: target(validCreds), Rooms: threeRooms()})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.SyncedRates)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "room r2"), res.Errors[0])

	r2 := 0
	for _, call := range srv.Calls() {
		if strings.Contains(call.Body, `InvTypeCode="r2"`) {
			r2++
		}
	}
	assert.Equal(t, 1+transport.DefaultMaxRetries, r2)
}

func TestSyncRates_PushesHorizonAndRatePlan(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(srv.URL, time.Second)

	tg := target(validCreds)
	tg.Mappings = channel.Mappings{
		Rooms: []channel.RoomMapping{{InternalID: "r1", ChannelID: "BC-DBL", Active: true}},
		Rates: []channel.RateMapping{{InternalID: "bar", RoomInternalID: "r1", ChannelID: "RP-9", Active: true}},
	}
	res := c.SyncRates(context.Background(), connector.RatesRequest{Target: tg, Rooms: threeRooms()[:1]})
	require.True(t, res.Success)

	assert.Equal(t, "/OTA_HotelRateAmountNotif", srv.Calls()[0].Path)
	doc := requestDoc(t, srv.Calls()[0].Body)
	assert.Equal(t, []string{"2026-05-01", "2027-05-01", "BC-DBL", "RP-9"},
		attrs(t, doc, "//StatusApplicationControl", "Start", "End", "InvTypeCode", "RatePlanCode"))
	assert.Equal(t, []string{"100.00", "EUR"}, attrs(t, doc, "//BaseByGuestAmt", "AmountAfterTax", "CurrencyCode"))
}

func TestSyncAvailability_OneBatchPerRoom(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(srv.URL, time.Second)

	day := func(d int) time.Time { return time.Date(2026, 5, d, 0, 0, 0, 0, time.UTC) }
	rate := 80.0
	res := c.SyncAvailability(context.Background(), connector.AvailabilityRequest{
		Target: target(validCreds),
		Rooms:  threeRooms(),
		Availability: []property.Availability{
			{RoomID: "r1", Date: day(1), Available: 3},
			{RoomID: "r3", Date: day(1), Available: 1, Rate: &rate},
			{RoomID: "r1", Date: day(2), Available: 2, Closed: true},
		},
		DateRange: property.DateRange{Start: day(1), End: day(2)},
	})

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.SyncedInventory)
	calls := srv.Calls()
	require.Len(t, calls, 2)
	first := requestDoc(t, calls[0].Body)
	msgs := first.FindElements("//AvailStatusMessage")
	require.Len(t, msgs, 2)
	assert.Equal(t, "r1", msgs[0].FindElement("./StatusApplicationControl").SelectAttrValue("InvTypeCode", ""))
	assert.Equal(t, "Open", msgs[0].FindElement("./RestrictionStatus").SelectAttrValue("Status", ""))
	assert.Equal(t, "Close", msgs[1].FindElement("./RestrictionStatus").SelectAttrValue("Status", ""))
	assert.Equal(t, []string{"80.00"}, attrs(t, requestDoc(t, calls[1].Body), "//BestAvailableRate", "AmountAfterTax"))
}

func TestSyncAvailability_EmptyBatchWarns(t *testing.T) {
	c := newTestConnector("http://127.0.0.1:1", time.Second)
	res := c.SyncAvailability(context.Background(), connector.AvailabilityRequest{Target: target(validCreds)})
	assert.True(t, res.Success)
	assert.Contains(t, res.Warnings, "no units to sync")
}

func TestTestConnection_IsReadOnlyAndIdempotent(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(srv.URL, time.Second)

	for i := 0; i < 2; i++ {
		res := c.TestConnection(context.Background(), validCreds, nil)
		assert.True(t, res.Success, res.Message)
	}
	calls := srv.Calls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, http.MethodGet, call.Method)
		assert.Equal(t, "/OTA_HotelDescriptiveInfo", call.Path)
	}
}

func TestTestConnection_HonoursChannelBaseURL(t *testing.T) {
	prod := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	sandbox := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(prod.URL, time.Second)

	res := c.TestConnection(context.Background(), validCreds, channel.Configuration{connector.ConfigBaseURL: sandbox.URL + "/"})
	assert.True(t, res.Success, res.Message)
	assert.Empty(t, prod.Calls())
	require.Len(t, sandbox.Calls(), 1)
	assert.Equal(t, "/OTA_HotelDescriptiveInfo", sandbox.Calls()[0].Path)
}

func TestTestConnection_AuthFailure(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	c := newTestConnector(srv.URL, time.Second)

	res := c.TestConnection(context.Background(), validCreds, nil)
	assert.False(t, res.Success)
	assert.Equal(t, http.StatusUnauthorized, res.Details["status_code"])
	assert.Len(t, srv.Calls(), 1)
}

func TestGetBookings(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.Header().Set("Content-Type", "text/xml")
		_, _ = w.Write([]byte(`<OTA_ReadRS xmlns="http://www.opentravel.org/OTA/2003/05"><Success/>
<ReservationsList><HotelReservation ResStatus="Book">
  <UniqueID Type="14" ID="BK-1"/>
  <RoomStays><RoomStay><RoomTypes><RoomType RoomTypeCode="r1"/></RoomTypes>
    <TimeSpan Start="2026-06-01" End="2026-06-04"/>
    <Total AmountAfterTax="300.00" CurrencyCode="EUR"/></RoomStay></RoomStays>
  <ResGuests><ResGuest><Profiles><ProfileInfo><Profile><Customer>
    <PersonName><GivenName>Ada</GivenName><Surname>Lovelace</Surname></PersonName>
    <Email>ada@example.com</Email></Customer></Profile></ProfileInfo></Profiles></ResGuest></ResGuests>
</HotelReservation></ReservationsList></OTA_ReadRS>`))
	})
	c := newTestConnector(srv.URL, time.Second)

	got := c.GetBookings(context.Background(), validCreds, nil, property.DateRange{Start: fixedNow, End: fixedNow.AddDate(0, 1, 0)})
	require.Len(t, got, 1)
	assert.Equal(t, booking.Booking{
		ID:               "booking_com-BK-1",
		ChannelBookingID: "BK-1",
		ChannelType:      Type,
		GuestName:        "Ada Lovelace",
		GuestEmail:       "ada@example.com",
		CheckIn:          time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:         time.Date(2026, 6, 4, 0, 0, 0, 0, time.UTC),
		RoomID:           "r1",
		Status:           "book",
		TotalAmount:      300,
		Currency:         "EUR",
	}, got[0])
	assert.Equal(t, []string{"2026-05-01", "2026-06-01"},
		attrs(t, requestDoc(t, srv.Calls()[0].Body), "//SelectionCriteria", "Start", "End"))
}

func TestGetBookings_ErrorYieldsEmptyList(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) {
		w.WriteHeader(http.StatusForbidden)
	})
	c := newTestConnector(srv.URL, time.Second)

	got := c.GetBookings(context.Background(), validCreds, nil, property.DefaultRange(fixedNow))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUpdateBooking(t *testing.T) {
	srv := newOTAServer(t, func(w http.ResponseWriter, r *http.Request, _ string) { okOTA(w) })
	c := newTestConnector(srv.URL, time.Second)

	res := c.UpdateBooking(context.Background(), connector.BookingUpdateRequest{
		Target:    target(validCreds),
		BookingID: "BK-1",
		Update:    booking.Update{Status: "Cancel", Notes: "guest asked"},
	})
	assert.True(t, res.Success)
	require.Len(t, srv.Calls(), 1)
	assert.Equal(t, "/OTA_HotelResModifyNotif", srv.Calls()[0].Path)
	doc := requestDoc(t, srv.Calls()[0].Body)
	assert.Equal(t, []string{"Cancel"}, attrs(t, doc, "//HotelResModify", "ResStatus"))
	assert.Equal(t, []string{"14", "BK-1"}, attrs(t, doc, "//HotelResModify/UniqueID", "Type", "ID"))
	assert.Equal(t, "guest asked", doc.FindElement("//Comment/Text").Text())
}
