// Package airbnb syncs a property, modelled as one listing with room
// sub-units, with the Airbnb REST API.
package airbnb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/transport"
	"github.com/tidwall/gjson"
)

const (
	Type       = "airbnb"
	DefaultRPM = 60
	DefaultURL = "https://api.airbnb.com/v2"
)

var requiredCredentials = []string{"api_key", "access_token", "listing_id"}

type Connector struct {
	*connector.Base
}

var _ connector.Connector = (*Connector)(nil)

func New(deps connector.Deps) *Connector {
	return &Connector{Base: connector.NewBase(deps, Type, DefaultRPM, DefaultURL, requiredCredentials)}
}

func (c *Connector) listingURL(cfg channel.Configuration, creds channel.Credentials) string {
	return c.BaseURL(cfg) + "/listings/" + url.PathEscape(creds["listing_id"])
}

func (c *Connector) call(ctx context.Context, creds channel.Credentials, method, endpoint string, body any) (*transport.Response, error) {
	req := transport.Request{
		Endpoint: endpoint,
		Method:   method,
		Header: map[string]string{
			"Authorization": "Bearer " + creds["access_token"],
			"X-Api-Key":     creds["api_key"],
			"Accept":        "application/json",
		},
	}
	if body != nil {
		req.Body = connector.JSONBody(body)
		req.Header["Content-Type"] = "application/json"
	}
	resp, err := c.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := connector.CheckJSON(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Connector) TestConnection(ctx context.Context, creds channel.Credentials, cfg channel.Configuration) (res syncresult.ConnectionTestResult) {
	defer c.RecoverTest(&res)
	if err := connector.ValidateCredentials(creds, requiredCredentials); err != nil {
		return syncresult.ConnectionTestResult{Success: false, Message: err.Error()}
	}

	resp, err := c.call(ctx, creds, http.MethodGet, c.listingURL(cfg, creds), nil)
	if err != nil {
		return c.ConnectionFailed(err)
	}
	details := map[string]any{"channel_type": Type, "listing_id": creds["listing_id"]}
	if name := resp.JSON().Get("listing.name"); name.Exists() {
		details["listing_name"] = name.String()
	}
	return syncresult.ConnectionTestResult{Success: true, Message: "connected to Airbnb", Details: details}
}

type roomBody struct {
	ExternalID  string `json:"external_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PersonCap   int    `json:"person_capacity"`
	Units       int    `json:"units"`
}

func (c *Connector) SyncInventory(ctx context.Context, req connector.InventoryRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Inventory, &res)
	bld, failed := c.Begin(req.Target, syncresult.Inventory)
	if failed != nil {
		return failed
	}

	base := c.listingURL(req.Configuration, req.Credentials)
	for _, room := range req.Rooms {
		unit := "room " + room.ID
		id, ok := connector.ResolveRoom(req.Mappings, room.ID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		_, err := c.call(ctx, req.Credentials, http.MethodPut, base+"/rooms/"+url.PathEscape(id), roomBody{
			ExternalID:  room.ID,
			Name:        room.Name,
			Description: room.Description,
			PersonCap:   room.MaxOccupancy,
			Units:       room.Quantity,
		})
		c.Unit(bld, req.Target, unit, 1, err)
	}
	return c.Finish(bld)
}

type priceBody struct {
	StartDate  string  `json:"start_date"`
	EndDate    string  `json:"end_date"`
	DailyPrice float64 `json:"daily_price"`
	Currency   string  `json:"currency"`
}

func (c *Connector) SyncRates(ctx context.Context, req connector.RatesRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Rates, &res)
	bld, failed := c.Begin(req.Target, syncresult.Rates)
	if failed != nil {
		return failed
	}

	base := c.BaseURL(req.Configuration) + "/calendar/" + url.PathEscape(req.Credentials["listing_id"])
	horizon := connector.RateHorizon(c.Now())
	currency := connector.Currency(req.Configuration, req.Property)
	for _, room := range req.Rooms {
		unit := "room " + room.ID
		id, ok := connector.ResolveRoom(req.Mappings, room.ID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		_, err := c.call(ctx, req.Credentials, http.MethodPut, base+"/rooms/"+url.PathEscape(id)+"/pricing", priceBody{
			StartDate:  horizon.Start.Format(property.DateLayout),
			EndDate:    horizon.End.Format(property.DateLayout),
			DailyPrice: room.BaseRate,
			Currency:   currency,
		})
		c.Unit(bld, req.Target, unit, 1, err)
	}
	return c.Finish(bld)
}

type calendarDay struct {
	Date       string  `json:"date"`
	Available  bool    `json:"available"`
	Units      int     `json:"available_units"`
	DailyPrice float64 `json:"daily_price"`
	MinNights  int     `json:"min_nights"`
	Currency   string  `json:"currency"`
}

type calendarBody struct {
	Days []calendarDay `json:"days"`
}

func (c *Connector) SyncAvailability(ctx context.Context, req connector.AvailabilityRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Availability, &res)
	bld, failed := c.Begin(req.Target, syncresult.Availability)
	if failed != nil {
		return failed
	}

	base := c.BaseURL(req.Configuration) + "/calendar/" + url.PathEscape(req.Credentials["listing_id"])
	currency := connector.Currency(req.Configuration, req.Property)
	rooms := connector.RoomIndex(req.Rooms)
	for _, batch := range connector.GroupByRoom(req.Availability) {
		unit := "room " + batch.RoomID
		id, ok := connector.ResolveRoom(req.Mappings, batch.RoomID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		body := calendarBody{Days: make([]calendarDay, 0, len(batch.Records))}
		for _, a := range batch.Records {
			body.Days = append(body.Days, calendarDay{
				Date:       a.Date.Format(property.DateLayout),
				Available:  !a.Closed && a.Available > 0,
				Units:      a.Available,
				DailyPrice: connector.RoomRate(a, rooms),
				MinNights:  connector.MinStay(a, req.Configuration),
				Currency:   currency,
			})
		}
		_, err := c.call(ctx, req.Credentials, http.MethodPut, base+"/rooms/"+url.PathEscape(id), body)
		c.Unit(bld, req.Target, unit, len(body.Days), err)
	}
	return c.Finish(bld)
}

func (c *Connector) GetBookings(ctx context.Context, creds channel.Credentials, cfg channel.Configuration, r property.DateRange) (out []booking.Booking) {
	defer c.RecoverBookings(&out)
	if err := connector.ValidateCredentials(creds, requiredCredentials); err != nil {
		return c.BookingsFailed(err)
	}

	q := url.Values{
		"listing_id": {creds["listing_id"]},
		"start_date": {r.Start.Format(property.DateLayout)},
		"end_date":   {r.End.Format(property.DateLayout)},
	}
	resp, err := c.call(ctx, creds, http.MethodGet, c.BaseURL(cfg)+"/reservations?"+q.Encode(), nil)
	if err != nil {
		return c.BookingsFailed(err)
	}
	if !resp.IsJSON() {
		return c.BookingsFailed(fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	out = []booking.Booking{}
	resp.JSON().Get("reservations").ForEach(func(_, v gjson.Result) bool {
		code := v.Get("confirmation_code").String()
		if code == "" {
			return true
		}
		out = append(out, booking.Booking{
			ID:               booking.NewID(Type, code),
			ChannelBookingID: code,
			ChannelType:      Type,
			GuestName:        v.Get("guest.full_name").String(),
			GuestEmail:       v.Get("guest.email").String(),
			CheckIn:          parseDay(v.Get("start_date").String()),
			CheckOut:         parseDay(v.Get("end_date").String()),
			RoomID:           v.Get("room_id").String(),
			Status:           v.Get("status").String(),
			TotalAmount:      v.Get("total_paid_amount").Float(),
			Currency:         v.Get("currency").String(),
			Notes:            v.Get("notes").String(),
		})
		return true
	})
	return out
}

func (c *Connector) UpdateBooking(ctx context.Context, req connector.BookingUpdateRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Booking, &res)
	if err := connector.ValidateCredentials(req.Credentials, requiredCredentials); err != nil {
		return c.BookingUpdated(req, err)
	}
	endpoint := c.BaseURL(req.Configuration) + "/reservations/" + url.PathEscape(req.BookingID)
	_, err := c.call(ctx, req.Credentials, http.MethodPut, endpoint, req.Update)
	return c.BookingUpdated(req, err)
}

func parseDay(s string) time.Time {
	t, _ := time.Parse(property.DateLayout, s)
	return t
}
