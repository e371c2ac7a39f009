// Package bookingcom pushes inventory, rates and availability to Booking.com
// over the OTA XML interface.
package bookingcom

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/beevik/etree"
	"github.com/edirooss/chansync/internal/connector"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/channel"
	"github.com/edirooss/chansync/internal/domain/property"
	"github.com/edirooss/chansync/internal/domain/syncresult"
	"github.com/edirooss/chansync/internal/transport"
)

const (
	Type       = "booking_com"
	DefaultRPM = 30
	DefaultURL = "https://supply-xml.booking.com/hotels/ota"

	defaultRatePlan = "BAR"
)

var requiredCredentials = []string{"hotel_id", "username", "password"}

type Connector struct {
	*connector.Base
}

var _ connector.Connector = (*Connector)(nil)

func New(deps connector.Deps) *Connector {
	return &Connector{Base: connector.NewBase(deps, Type, DefaultRPM, DefaultURL, requiredCredentials)}
}

func (c *Connector) headers(creds channel.Credentials) map[string]string {
	return map[string]string{
		"Authorization": connector.BasicAuth(creds["username"], creds["password"]),
		"Content-Type":  "text/xml; charset=utf-8",
		"Accept":        "text/xml",
	}
}

// post sends one OTA message and checks the reply for <Errors>.
func (c *Connector) post(ctx context.Context, cfg channel.Configuration, creds channel.Credentials, message string, req *etree.Document) (*etree.Document, error) {
	body, err := req.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", message, err)
	}
	resp, err := c.Call(ctx, transport.Request{
		Endpoint: c.BaseURL(cfg) + "/" + message,
		Method:   http.MethodPost,
		Header:   c.headers(creds),
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	return parseOTA(resp.Body)
}

func (c *Connector) TestConnection(ctx context.Context, creds channel.Credentials, cfg channel.Configuration) (res syncresult.ConnectionTestResult) {
	defer c.RecoverTest(&res)
	if err := connector.ValidateCredentials(creds, requiredCredentials); err != nil {
		return syncresult.ConnectionTestResult{Success: false, Message: err.Error()}
	}

	q := url.Values{"hotel_id": {creds["hotel_id"]}}
	resp, err := c.Call(ctx, transport.Request{
		Endpoint: c.BaseURL(cfg) + "/OTA_HotelDescriptiveInfo?" + q.Encode(),
		Method:   http.MethodGet,
		Header:   c.headers(creds),
	})
	if err == nil {
		_, err = parseOTA(resp.Body)
	}
	if err != nil {
		return c.ConnectionFailed(err)
	}
	return syncresult.ConnectionTestResult{
		Success: true,
		Message: "connected to Booking.com",
		Details: map[string]any{"channel_type": Type, "hotel_id": creds["hotel_id"]},
	}
}

func (c *Connector) SyncInventory(ctx context.Context, req connector.InventoryRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Inventory, &res)
	bld, failed := c.Begin(req.Target, syncresult.Inventory)
	if failed != nil {
		return failed
	}

	hotelID := req.Credentials["hotel_id"]
	for _, room := range req.Rooms {
		unit := "room " + room.ID
		code, ok := connector.ResolveRoom(req.Mappings, room.ID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		_, err := c.post(ctx, req.Configuration, req.Credentials, "OTA_HotelProductNotif", productNotif(hotelID, code, room))
		c.Unit(bld, req.Target, unit, 1, err)
	}
	return c.Finish(bld)
}

func (c *Connector) SyncRates(ctx context.Context, req connector.RatesRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Rates, &res)
	bld, failed := c.Begin(req.Target, syncresult.Rates)
	if failed != nil {
		return failed
	}

	hotelID := req.Credentials["hotel_id"]
	horizon := connector.RateHorizon(c.Now())
	currency := connector.Currency(req.Configuration, req.Property)
	for _, room := range req.Rooms {
		unit := "room " + room.ID
		code, ok := connector.ResolveRoom(req.Mappings, room.ID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		plan := connector.RatePlanCode(req.Mappings, req.Configuration, room.ID, defaultRatePlan)
		body := rateAmountNotif(hotelID, code, plan, currency, room.BaseRate, horizon)
		_, err := c.post(ctx, req.Configuration, req.Credentials, "OTA_HotelRateAmountNotif", body)
		c.Unit(bld, req.Target, unit, 1, err)
	}
	return c.Finish(bld)
}

func (c *Connector) SyncAvailability(ctx context.Context, req connector.AvailabilityRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Availability, &res)
	bld, failed := c.Begin(req.Target, syncresult.Availability)
	if failed != nil {
		return failed
	}

	hotelID := req.Credentials["hotel_id"]
	currency := connector.Currency(req.Configuration, req.Property)
	rooms := connector.RoomIndex(req.Rooms)
	for _, batch := range connector.GroupByRoom(req.Availability) {
		unit := "room " + batch.RoomID
		code, ok := connector.ResolveRoom(req.Mappings, batch.RoomID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		days := make([]availDay, 0, len(batch.Records))
		for _, a := range batch.Records {
			days = append(days, availDay{
				Date:      a.Date,
				Available: a.Available,
				Rate:      connector.RoomRate(a, rooms),
				MinStay:   connector.MinStay(a, req.Configuration),
				Closed:    a.Closed,
			})
		}
		plan := connector.RatePlanCode(req.Mappings, req.Configuration, batch.RoomID, defaultRatePlan)
		_, err := c.post(ctx, req.Configuration, req.Credentials, "OTA_HotelAvailNotif", availNotif(hotelID, code, plan, currency, days))
		c.Unit(bld, req.Target, unit, len(days), err)
	}
	return c.Finish(bld)
}

func (c *Connector) GetBookings(ctx context.Context, creds channel.Credentials, cfg channel.Configuration, r property.DateRange) (out []booking.Booking) {
	defer c.RecoverBookings(&out)
	if err := connector.ValidateCredentials(creds, requiredCredentials); err != nil {
		return c.BookingsFailed(err)
	}

	doc, err := c.post(ctx, cfg, creds, "OTA_ReadRQ", readRQ(creds["hotel_id"], r))
	if err != nil {
		return c.BookingsFailed(err)
	}
	return parseReservations(doc)
}

func (c *Connector) UpdateBooking(ctx context.Context, req connector.BookingUpdateRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Booking, &res)
	if err := connector.ValidateCredentials(req.Credentials, requiredCredentials); err != nil {
		return c.BookingUpdated(req, err)
	}
	body := resModifyNotif(req.Credentials["hotel_id"], req.BookingID, req.Update)
	_, err := c.post(ctx, req.Configuration, req.Credentials, "OTA_HotelResModifyNotif", body)
	return c.BookingUpdated(req, err)
}
