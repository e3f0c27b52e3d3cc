package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UserID identifies the guest that owns bookings and carts.
type UserID struct {
	value string
}

// HotelID identifies a hotel.
type HotelID struct {
	value string
}

// RoomID identifies a room.
type RoomID struct {
	value string
}

// BookingID identifies a booking.
type BookingID struct {
	value string
}

// BookingRoomID identifies a booking-room link.
type BookingRoomID struct {
	value string
}

// CartID identifies a cart booking.
type CartID struct {
	value string
}

// ConfirmationNumber is the 9-digit reference handed to guests.
type ConfirmationNumber int64

// Price is a non-negative amount in the hotel currency.
type Price struct {
	value decimal.Decimal
}

// NewUserID validates and normalizes a user id.
func NewUserID(raw string) (UserID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidUserID)
	if err != nil {
		return UserID{}, err
	}
	return UserID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id UserID) String() string {
	return id.value
}

// NewHotelID validates and normalizes a hotel id.
func NewHotelID(raw string) (HotelID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidHotelID)
	if err != nil {
		return HotelID{}, err
	}
	return HotelID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id HotelID) String() string {
	return id.value
}

// NewRoomID validates and normalizes a room id.
func NewRoomID(raw string) (RoomID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidRoomID)
	if err != nil {
		return RoomID{}, err
	}
	return RoomID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id RoomID) String() string {
	return id.value
}

// NewBookingID validates and normalizes a booking id.
func NewBookingID(raw string) (BookingID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidBookingID)
	if err != nil {
		return BookingID{}, err
	}
	return BookingID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BookingID) String() string {
	return id.value
}

// NewBookingRoomID validates and normalizes a booking-room link id.
func NewBookingRoomID(raw string) (BookingRoomID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidBookingRoomID)
	if err != nil {
		return BookingRoomID{}, err
	}
	return BookingRoomID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id BookingRoomID) String() string {
	return id.value
}

// NewCartID validates and normalizes a cart id.
func NewCartID(raw string) (CartID, error) {
	trimmed, err := normalizeIdentifier(raw, ErrInvalidCartID)
	if err != nil {
		return CartID{}, err
	}
	return CartID{value: trimmed}, nil
}

// String returns the normalized identifier.
func (id CartID) String() string {
	return id.value
}

func normalizeIdentifier(raw string, sentinel error) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty value", sentinel)
	}
	return trimmed, nil
}

// NewConfirmationNumber validates a confirmation number.
func NewConfirmationNumber(raw int64) (ConfirmationNumber, error) {
	if raw < minConfirmationNumber || raw > maxConfirmationNumber {
		return 0, fmt.Errorf("%w: %d out of range", ErrInvalidConfirmationNumber, raw)
	}
	return ConfirmationNumber(raw), nil
}

// Int64 exposes the raw value.
func (number ConfirmationNumber) Int64() int64 {
	return int64(number)
}

// NewPrice validates a non-negative amount.
func NewPrice(amount decimal.Decimal) (Price, error) {
	if amount.IsNegative() {
		return Price{}, fmt.Errorf("%w: %s", ErrInvalidPrice, amount.String())
	}
	return Price{value: amount}, nil
}

// ParsePrice parses a decimal string such as "100.50".
func ParsePrice(raw string) (Price, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Price{}, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return NewPrice(amount)
}

// ZeroPrice returns a zero amount.
func ZeroPrice() Price {
	return Price{value: decimal.Zero}
}

// Decimal exposes the underlying amount.
func (price Price) Decimal() decimal.Decimal {
	return price.value
}

// String returns the fixed two-decimal representation.
func (price Price) String() string {
	return price.value.StringFixed(2)
}

// Add returns the sum of both prices.
func (price Price) Add(other Price) Price {
	return Price{value: price.value.Add(other.value)}
}

// Sub subtracts other and clamps at zero.
func (price Price) Sub(other Price) Price {
	result := price.value.Sub(other.value)
	if result.IsNegative() {
		return ZeroPrice()
	}
	return Price{value: result}
}

// Equal reports whether both prices hold the same amount.
func (price Price) Equal(other Price) bool {
	return price.value.Equal(other.value)
}

// GuestCount holds the adult and child headcount of a stay.
type GuestCount struct {
	adults   int
	children int
}

// NewGuestCount validates non-negative headcounts.
func NewGuestCount(adults int, children int) (GuestCount, error) {
	if adults < 0 || children < 0 {
		return GuestCount{}, fmt.Errorf("%w: adults=%d children=%d", ErrInvalidGuestCount, adults, children)
	}
	return GuestCount{adults: adults, children: children}, nil
}

// Adults returns the number of adults.
func (count GuestCount) Adults() int {
	return count.adults
}

// Children returns the number of children.
func (count GuestCount) Children() int {
	return count.children
}

// Room is the registry record the ledger hangs off.
type Room struct {
	ID        RoomID
	HotelID   HotelID
	BasePrice Price
}

// LedgerEntry is one (room, calendar day) fact with price and availability.
type LedgerEntry struct {
	ID        string
	RoomID    RoomID
	Date      Date
	Price     Price
	Available bool
}

// Booking is the confirmed reservation aggregate.
type Booking struct {
	ID                 BookingID
	UserID             UserID
	HotelID            HotelID
	Stay               StayRange
	TotalPrice         Price
	SpecialRequests    string
	BookedAt           time.Time
	Paid               bool
	ConfirmationNumber ConfirmationNumber
	Guests             GuestCount
	Rooms              []BookingRoom
}

// RoomIDs returns the linked room ids in link order.
func (booking Booking) RoomIDs() []RoomID {
	roomIDs := make([]RoomID, 0, len(booking.Rooms))
	for _, link := range booking.Rooms {
		roomIDs = append(roomIDs, link.RoomID)
	}
	return roomIDs
}

// BookingRoom links a room to a booking.
type BookingRoom struct {
	ID        BookingRoomID
	BookingID BookingID
	RoomID    RoomID
}

// CartBooking is an unconfirmed booking intent.
type CartBooking struct {
	ID              CartID
	UserID          UserID
	Stay            StayRange
	SpecialRequests string
	Guests          GuestCount
	CreatedAt       time.Time
	Rooms           []CartRoom
}

// RoomIDs returns the carted room ids in link order.
func (cart CartBooking) RoomIDs() []RoomID {
	roomIDs := make([]RoomID, 0, len(cart.Rooms))
	for _, link := range cart.Rooms {
		roomIDs = append(roomIDs, link.RoomID)
	}
	return roomIDs
}

// CartRoom links a room to a cart booking.
type CartRoom struct {
	ID     string
	CartID CartID
	RoomID RoomID
}
