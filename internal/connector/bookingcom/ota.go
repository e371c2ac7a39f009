package bookingcom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/edirooss/chansync/internal/domain/booking"
	"github.com/edirooss/chansync/internal/domain/property"
)

const otaNS = "http://www.opentravel.org/OTA/2003/05"

// otaRequest starts an OTA request document with its root element.
func otaRequest(root string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	el := doc.CreateElement(root)
	el.CreateAttr("xmlns", otaNS)
	el.CreateAttr("Version", "1.0")
	return doc, el
}

// child appends a tag element to parent with attrs given as key, value pairs.
func child(parent *etree.Element, tag string, attrs ...string) *etree.Element {
	el := parent.CreateElement(tag)
	for i := 0; i+1 < len(attrs); i += 2 {
		el.CreateAttr(attrs[i], attrs[i+1])
	}
	return el
}

func productNotif(hotelID, roomCode string, room property.Room) *etree.Document {
	doc, root := otaRequest("OTA_HotelProductNotifRQ")
	products := child(root, "HotelProducts", "HotelCode", hotelID)
	types := child(child(products, "HotelProduct"), "RoomTypes")
	rt := child(types, "RoomType",
		"RoomTypeCode", roomCode,
		"MaxOccupancy", strconv.Itoa(room.MaxOccupancy),
		"NumberOfUnits", strconv.Itoa(room.Quantity),
	)
	desc := child(rt, "RoomDescription", "Name", room.Name)
	child(desc, "Text").SetText(room.Description)
	return doc
}

func rateAmountNotif(hotelID, roomCode, ratePlan, currency string, amount float64, r property.DateRange) *etree.Document {
	doc, root := otaRequest("OTA_HotelRateAmountNotifRQ")
	msg := child(child(root, "RateAmountMessages", "HotelCode", hotelID), "RateAmountMessage")
	child(msg, "StatusApplicationControl",
		"Start", r.Start.Format(property.DateLayout),
		"End", r.End.Format(property.DateLayout),
		"InvTypeCode", roomCode,
		"RatePlanCode", ratePlan,
	)
	amts := child(child(child(msg, "Rates"), "Rate"), "BaseByGuestAmts")
	child(amts, "BaseByGuestAmt", "AmountAfterTax", formatAmount(amount), "CurrencyCode", currency)
	return doc
}

type availDay struct {
	Date      time.Time
	Available int
	Rate      float64
	MinStay   int
	Closed    bool
}

func availNotif(hotelID, roomCode, ratePlan, currency string, days []availDay) *etree.Document {
	doc, root := otaRequest("OTA_HotelAvailNotifRQ")
	msgs := child(root, "AvailStatusMessages", "HotelCode", hotelID)
	for _, d := range days {
		day := d.Date.Format(property.DateLayout)
		restriction := "Open"
		if d.Closed {
			restriction = "Close"
		}
		msg := child(msgs, "AvailStatusMessage", "BookingLimit", strconv.Itoa(d.Available))
		child(msg, "StatusApplicationControl", "Start", day, "End", day, "InvTypeCode", roomCode, "RatePlanCode", ratePlan)
		child(child(msg, "LengthsOfStay"), "LengthOfStay", "MinMaxMessageType", "SetMinLOS", "Time", strconv.Itoa(d.MinStay))
		child(msg, "RestrictionStatus", "Status", restriction)
		child(child(msg, "BestAvailableRates"), "BestAvailableRate", "AmountAfterTax", formatAmount(d.Rate), "CurrencyCode", currency)
	}
	return doc
}

func readRQ(hotelID string, r property.DateRange) *etree.Document {
	doc, root := otaRequest("OTA_ReadRQ")
	read := child(child(root, "ReadRequests"), "HotelReadRequest", "HotelCode", hotelID)
	child(read, "SelectionCriteria",
		"Start", r.Start.Format(property.DateLayout),
		"End", r.End.Format(property.DateLayout),
		"DateType", "ArrivalDate",
	)
	return doc
}

func resModifyNotif(hotelID, bookingID string, u booking.Update) *etree.Document {
	doc, root := otaRequest("OTA_HotelResModifyNotifRQ")
	mod := child(child(root, "HotelResModifies"), "HotelResModify", "ResStatus", u.Status)
	child(mod, "UniqueID", "Type", "14", "ID", bookingID)
	child(mod, "BasicPropertyInfo", "HotelCode", hotelID)
	if u.Notes != "" {
		child(child(child(mod, "Comments"), "Comment"), "Text").SetText(u.Notes)
	}
	return doc
}

func formatAmount(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// parseOTA reads an OTA reply and surfaces its <Errors> block as an error.
// An empty body is accepted.
func parseOTA(body []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if len(strings.TrimSpace(string(body))) == 0 {
		return doc, nil
	}
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("malformed xml response: %w", err)
	}
	if doc.Root() == nil {
		return nil, errors.New("malformed xml response: no root element")
	}

	var msgs []string
	for _, e := range doc.FindElements("//Errors/Error") {
		msg := e.SelectAttrValue("ShortText", "")
		if msg == "" {
			msg = strings.TrimSpace(e.Text())
		}
		if code := e.SelectAttrValue("Code", ""); code != "" {
			msg = fmt.Sprintf("[%s] %s", code, msg)
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) > 0 {
		return nil, fmt.Errorf("channel rejected request: %s", strings.Join(msgs, "; "))
	}
	return doc, nil
}

// parseReservations reads HotelReservation elements from an OTA_ReadRS or
// OTA_ResRetrieveRS document.
func parseReservations(doc *etree.Document) []booking.Booking {
	out := []booking.Booking{}
	for _, res := range doc.FindElements("//HotelReservation") {
		b := booking.Booking{
			ChannelType: Type,
			Status:      strings.ToLower(res.SelectAttrValue("ResStatus", "")),
		}
		if id := res.FindElement("./UniqueID"); id != nil {
			b.ChannelBookingID = id.SelectAttrValue("ID", "")
		}
		if b.ChannelBookingID == "" {
			continue
		}
		b.ID = booking.NewID(Type, b.ChannelBookingID)

		if given := res.FindElement(".//PersonName/GivenName"); given != nil {
			b.GuestName = strings.TrimSpace(given.Text())
		}
		if sur := res.FindElement(".//PersonName/Surname"); sur != nil {
			b.GuestName = strings.TrimSpace(b.GuestName + " " + strings.TrimSpace(sur.Text()))
		}
		if email := res.FindElement(".//Email"); email != nil {
			b.GuestEmail = strings.TrimSpace(email.Text())
		}
		if span := res.FindElement(".//RoomStay/TimeSpan"); span != nil {
			b.CheckIn, _ = time.Parse(property.DateLayout, span.SelectAttrValue("Start", ""))
			b.CheckOut, _ = time.Parse(property.DateLayout, span.SelectAttrValue("End", ""))
		}
		if rt := res.FindElement(".//RoomType"); rt != nil {
			b.RoomID = rt.SelectAttrValue("RoomTypeCode", "")
		}
		if total := res.FindElement(".//Total"); total != nil {
			b.TotalAmount, _ = strconv.ParseFloat(total.SelectAttrValue("AmountAfterTax", "0"), 64)
			b.Currency = total.SelectAttrValue("CurrencyCode", "")
		}
		if c := res.FindElement(".//Comment/Text"); c != nil {
			b.Notes = strings.TrimSpace(c.Text())
		}
		out = append(out, b)
	}
	return out
}
