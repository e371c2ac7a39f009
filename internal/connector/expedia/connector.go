// Package expedia syncs with the Expedia partner product and availability
// JSON APIs. Every room type must carry a rate plan before rates can land,
// so inventory sync creates both.
package expedia

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
	Type       = "expedia"
	DefaultRPM = 30
	DefaultURL = "https://services.expediapartnercentral.com"

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

func (c *Connector) propertyURL(cfg channel.Configuration, creds channel.Credentials) string {
	return c.BaseURL(cfg) + "/properties/" + url.PathEscape(creds["hotel_id"])
}

// call issues one JSON request and checks the reply body for errors.
func (c *Connector) call(ctx context.Context, creds channel.Credentials, method, endpoint string, body any) (*transport.Response, error) {
	req := transport.Request{
		Endpoint: endpoint,
		Method:   method,
		Header: map[string]string{
			"Authorization": connector.BasicAuth(creds["username"], creds["password"]),
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

	resp, err := c.call(ctx, creds, http.MethodGet, c.propertyURL(cfg, creds), nil)
	if err != nil {
		return c.ConnectionFailed(err)
	}
	details := map[string]any{"channel_type": Type, "hotel_id": creds["hotel_id"]}
	if name := resp.JSON().Get("name"); name.Exists() {
		details["property_name"] = name.String()
	}
	return syncresult.ConnectionTestResult{Success: true, Message: "connected to Expedia", Details: details}
}

type roomTypeBody struct {
	ResourceID   string `json:"resourceId"`
	PartnerCode  string `json:"partnerCode"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MaxOccupancy int    `json:"maxOccupancy"`
	Units        int    `json:"units"`
}

type ratePlanBody struct {
	ResourceID   string `json:"resourceId"`
	Name         string `json:"name"`
	PricingModel string `json:"pricingModel"`
	Status       string `json:"status"`
}

func (c *Connector) SyncInventory(ctx context.Context, req connector.InventoryRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Inventory, &res)
	bld, failed := c.Begin(req.Target, syncresult.Inventory)
	if failed != nil {
		return failed
	}

	base := c.propertyURL(req.Configuration, req.Credentials)
	for _, room := range req.Rooms {
		unit := "room " + room.ID
		code, ok := connector.ResolveRoom(req.Mappings, room.ID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}

		roomURL := base + "/roomTypes/" + url.PathEscape(code)
		_, err := c.call(ctx, req.Credentials, http.MethodPut, roomURL, roomTypeBody{
			ResourceID:   code,
			PartnerCode:  room.ID,
			Name:         room.Name,
			Description:  room.Description,
			MaxOccupancy: room.MaxOccupancy,
			Units:        room.Quantity,
		})
		if err == nil {
			plan := connector.RatePlanCode(req.Mappings, req.Configuration, room.ID, defaultRatePlan)
			_, err = c.call(ctx, req.Credentials, http.MethodPut, roomURL+"/ratePlans/"+url.PathEscape(plan), ratePlanBody{
				ResourceID:   plan,
				Name:         plan,
				PricingModel: "PerDayPricing",
				Status:       "Active",
			})
			if err != nil {
				err = fmt.Errorf("rate plan %s: %w", plan, err)
			}
		}
		c.Unit(bld, req.Target, unit, 1, err)
	}
	return c.Finish(bld)
}

type rateBody struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func (c *Connector) SyncRates(ctx context.Context, req connector.RatesRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Rates, &res)
	bld, failed := c.Begin(req.Target, syncresult.Rates)
	if failed != nil {
		return failed
	}

	base := c.propertyURL(req.Configuration, req.Credentials)
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
		endpoint := fmt.Sprintf("%s/roomTypes/%s/ratePlans/%s/rates", base, url.PathEscape(code), url.PathEscape(plan))
		_, err := c.call(ctx, req.Credentials, http.MethodPost, endpoint, rateBody{
			From:     horizon.Start.Format(property.DateLayout),
			To:       horizon.End.Format(property.DateLayout),
			Amount:   room.BaseRate,
			Currency: currency,
		})
		c.Unit(bld, req.Target, unit, 1, err)
	}
	return c.Finish(bld)
}

type availabilityDay struct {
	Date       string  `json:"date"`
	Inventory  int     `json:"totalInventoryAvailable"`
	Closed     bool    `json:"closed"`
	MinLOS     int     `json:"minLOS"`
	Rate       float64 `json:"rate"`
	Currency   string  `json:"currency"`
	RatePlanID string  `json:"ratePlanId"`
}

func (c *Connector) SyncAvailability(ctx context.Context, req connector.AvailabilityRequest) (res *syncresult.Result) {
	defer c.Recover(req.Target, syncresult.Availability, &res)
	bld, failed := c.Begin(req.Target, syncresult.Availability)
	if failed != nil {
		return failed
	}

	base := c.propertyURL(req.Configuration, req.Credentials)
	currency := connector.Currency(req.Configuration, req.Property)
	rooms := connector.RoomIndex(req.Rooms)
	for _, batch := range connector.GroupByRoom(req.Availability) {
		unit := "room " + batch.RoomID
		code, ok := connector.ResolveRoom(req.Mappings, batch.RoomID)
		if !ok {
			c.Skip(bld, req.Target, unit)
			continue
		}
		plan := connector.RatePlanCode(req.Mappings, req.Configuration, batch.RoomID, defaultRatePlan)
		days := make([]availabilityDay, 0, len(batch.Records))
		for _, a := range batch.Records {
			days = append(days, availabilityDay{
				Date:       a.Date.Format(property.DateLayout),
				Inventory:  a.Available,
				Closed:     a.Closed,
				MinLOS:     connector.MinStay(a, req.Configuration),
				Rate:       connector.RoomRate(a, rooms),
				Currency:   currency,
				RatePlanID: plan,
			})
		}
		_, err := c.call(ctx, req.Credentials, http.MethodPost, base+"/roomTypes/"+url.PathEscape(code)+"/availability", days)
		c.Unit(bld, req.Target, unit, len(days), err)
	}
	return c.Finish(bld)
}

func (c *Connector) GetBookings(ctx context.Context, creds channel.Credentials, cfg channel.Configuration, r property.DateRange) (out []booking.Booking) {
	defer c.RecoverBookings(&out)
	if err := connector.ValidateCredentials(creds, requiredCredentials); err != nil {
		return c.BookingsFailed(err)
	}

	q := url.Values{
		"from": {r.Start.Format(property.DateLayout)},
		"to":   {r.End.Format(property.DateLayout)},
	}
	resp, err := c.call(ctx, creds, http.MethodGet, c.propertyURL(cfg, creds)+"/reservations?"+q.Encode(), nil)
	if err != nil {
		return c.BookingsFailed(err)
	}
	if !resp.IsJSON() {
		return c.BookingsFailed(fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type")))
	}

	out = []booking.Booking{}
	resp.JSON().Get("reservations").ForEach(func(_, v gjson.Result) bool {
		id := v.Get("id").String()
		if id == "" {
			return true
		}
		out = append(out, booking.Booking{
			ID:               booking.NewID(Type, id),
			ChannelBookingID: id,
			ChannelType:      Type,
			GuestName:        joinName(v.Get("primaryGuest.firstName").String(), v.Get("primaryGuest.lastName").String()),
			GuestEmail:       v.Get("primaryGuest.email").String(),
			CheckIn:          parseDay(v.Get("checkInDate").String()),
			CheckOut:         parseDay(v.Get("checkOutDate").String()),
			RoomID:           v.Get("roomTypeId").String(),
			Status:           v.Get("status").String(),
			TotalAmount:      v.Get("totalAmount.value").Float(),
			Currency:         v.Get("totalAmount.currency").String(),
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
	endpoint := c.propertyURL(req.Configuration, req.Credentials) + "/reservations/" + url.PathEscape(req.BookingID)
	_, err := c.call(ctx, req.Credentials, http.MethodPatch, endpoint, req.Update)
	return c.BookingUpdated(req, err)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

func parseDay(s string) time.Time {
	t, _ := time.Parse(property.DateLayout, s)
	return t
}
