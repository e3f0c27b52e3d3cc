package httpapi

import (
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
)

type stayRequest struct {
	CheckIn         string   `json:"check_in" binding:"required"`
	CheckOut        string   `json:"check_out" binding:"required"`
	RoomIDs         []string `json:"room_ids"`
	SpecialRequests string   `json:"special_requests"`
	Adults          int      `json:"adults"`
	Children        int      `json:"children"`
}

type createBookingRequest struct {
	HotelID string `json:"hotel_id" binding:"required"`
	stayRequest
}

type roomRequest struct {
	RoomID string `json:"room_id" binding:"required"`
}

type checkoutRequest struct {
	HotelID string `json:"hotel_id" binding:"required"`
}

type initializeRoomRequest struct {
	RoomID      string `json:"room_id" binding:"required"`
	HotelID     string `json:"hotel_id" binding:"required"`
	BasePrice   string `json:"base_price" binding:"required"`
	HorizonDays int    `json:"horizon_days"`
}

type extendHorizonRequest struct {
	Days  int    `json:"days" binding:"required"`
	Price string `json:"price"`
}

type priceRequest struct {
	Price string `json:"price" binding:"required"`
}

type bookingPayload struct {
	BookingID          string               `json:"booking_id"`
	UserID             string               `json:"user_id"`
	HotelID            string               `json:"hotel_id"`
	CheckIn            string               `json:"check_in"`
	CheckOut           string               `json:"check_out"`
	Nights             int                  `json:"nights"`
	TotalPrice         string               `json:"total_price"`
	SpecialRequests    string               `json:"special_requests"`
	BookedAt           string               `json:"booked_at"`
	Paid               bool                 `json:"paid"`
	ConfirmationNumber int64                `json:"confirmation_number"`
	Adults             int                  `json:"adults"`
	Children           int                  `json:"children"`
	Rooms              []bookingRoomPayload `json:"rooms"`
}

type bookingRoomPayload struct {
	LinkID string `json:"link_id"`
	RoomID string `json:"room_id"`
}

type cartPayload struct {
	CartID          string   `json:"cart_id"`
	UserID          string   `json:"user_id"`
	CheckIn         string   `json:"check_in"`
	CheckOut        string   `json:"check_out"`
	SpecialRequests string   `json:"special_requests"`
	Adults          int      `json:"adults"`
	Children        int      `json:"children"`
	CreatedAt       string   `json:"created_at"`
	RoomIDs         []string `json:"room_ids"`
}

type roomPayload struct {
	RoomID     string `json:"room_id"`
	HotelID    string `json:"hotel_id"`
	BasePrice  string `json:"base_price"`
	LatestDate string `json:"latest_date,omitempty"`
}

type entryPayload struct {
	Date      string `json:"date"`
	Price     string `json:"price"`
	Available bool   `json:"available"`
}

func newBookingPayload(record booking.Booking) bookingPayload {
	rooms := make([]bookingRoomPayload, 0, len(record.Rooms))
	for _, link := range record.Rooms {
		rooms = append(rooms, bookingRoomPayload{LinkID: link.ID.String(), RoomID: link.RoomID.String()})
	}
	return bookingPayload{
		BookingID:          record.ID.String(),
		UserID:             record.UserID.String(),
		HotelID:            record.HotelID.String(),
		CheckIn:            record.Stay.CheckIn().String(),
		CheckOut:           record.Stay.CheckOut().String(),
		Nights:             record.Stay.Nights(),
		TotalPrice:         record.TotalPrice.String(),
		SpecialRequests:    record.SpecialRequests,
		BookedAt:           record.BookedAt.UTC().Format(time.RFC3339),
		Paid:               record.Paid,
		ConfirmationNumber: record.ConfirmationNumber.Int64(),
		Adults:             record.Guests.Adults(),
		Children:           record.Guests.Children(),
		Rooms:              rooms,
	}
}

func newCartPayload(cart booking.CartBooking) cartPayload {
	roomIDs := make([]string, 0, len(cart.Rooms))
	for _, roomID := range cart.RoomIDs() {
		roomIDs = append(roomIDs, roomID.String())
	}
	return cartPayload{
		CartID:          cart.ID.String(),
		UserID:          cart.UserID.String(),
		CheckIn:         cart.Stay.CheckIn().String(),
		CheckOut:        cart.Stay.CheckOut().String(),
		SpecialRequests: cart.SpecialRequests,
		Adults:          cart.Guests.Adults(),
		Children:        cart.Guests.Children(),
		CreatedAt:       cart.CreatedAt.UTC().Format(time.RFC3339),
		RoomIDs:         roomIDs,
	}
}

func newEntryPayloads(entries []booking.LedgerEntry) []entryPayload {
	payloads := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		payloads = append(payloads, entryPayload{
			Date:      entry.Date.String(),
			Price:     entry.Price.String(),
			Available: entry.Available,
		})
	}
	return payloads
}

func parseStay(checkIn string, checkOut string) (booking.StayRange, error) {
	in, err := booking.ParseDate(checkIn)
	if err != nil {
		return booking.StayRange{}, err
	}
	out, err := booking.ParseDate(checkOut)
	if err != nil {
		return booking.StayRange{}, err
	}
	return booking.NewStayRange(in, out)
}

func parseRoomIDs(raw []string) ([]booking.RoomID, error) {
	roomIDs := make([]booking.RoomID, 0, len(raw))
	for _, value := range raw {
		roomID, err := booking.NewRoomID(value)
		if err != nil {
			return nil, err
		}
		roomIDs = append(roomIDs, roomID)
	}
	return roomIDs, nil
}
