package booking

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

// BookingRequest is a validated request to book a set of rooms for one stay.
type BookingRequest struct {
	userID          UserID
	hotelID         HotelID
	stay            StayRange
	roomIDs         []RoomID
	specialRequests string
	guests          GuestCount
}

// NewBookingRequest validates the room set and free-text fields of a booking request.
func NewBookingRequest(userID UserID, hotelID HotelID, stay StayRange, roomIDs []RoomID, specialRequests string, guests GuestCount) (BookingRequest, error) {
	if userID.String() == "" {
		return BookingRequest{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if hotelID.String() == "" {
		return BookingRequest{}, fmt.Errorf("%w: empty value", ErrInvalidHotelID)
	}
	if stay.CheckIn().IsZero() {
		return BookingRequest{}, fmt.Errorf("%w: missing stay", ErrInvalidDateRange)
	}
	sortedRoomIDs, err := normalizeRoomSet(roomIDs)
	if err != nil {
		return BookingRequest{}, err
	}
	if err := validateSpecialRequests(specialRequests); err != nil {
		return BookingRequest{}, err
	}
	return BookingRequest{
		userID:          userID,
		hotelID:         hotelID,
		stay:            stay,
		roomIDs:         sortedRoomIDs,
		specialRequests: specialRequests,
		guests:          guests,
	}, nil
}

// UserID returns the requesting user.
func (request BookingRequest) UserID() UserID {
	return request.userID
}

// HotelID returns the hotel every room must belong to.
func (request BookingRequest) HotelID() HotelID {
	return request.hotelID
}

// Stay returns the requested nights.
func (request BookingRequest) Stay() StayRange {
	return request.stay
}

// RoomIDs returns the requested rooms sorted by id.
func (request BookingRequest) RoomIDs() []RoomID {
	return append([]RoomID(nil), request.roomIDs...)
}

// SpecialRequests returns the guest's free-text notes.
func (request BookingRequest) SpecialRequests() string {
	return request.specialRequests
}

// Guests returns the headcount.
func (request BookingRequest) Guests() GuestCount {
	return request.guests
}

// CartRequest is a validated request to stage a cart booking.
type CartRequest struct {
	userID          UserID
	stay            StayRange
	roomIDs         []RoomID
	specialRequests string
	guests          GuestCount
}

// NewCartRequest validates a cart request. An empty room set is allowed; rooms may be added later.
func NewCartRequest(userID UserID, stay StayRange, roomIDs []RoomID, specialRequests string, guests GuestCount) (CartRequest, error) {
	if userID.String() == "" {
		return CartRequest{}, fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if stay.CheckIn().IsZero() {
		return CartRequest{}, fmt.Errorf("%w: missing stay", ErrInvalidDateRange)
	}
	var sortedRoomIDs []RoomID
	if len(roomIDs) > 0 {
		normalized, err := normalizeRoomSet(roomIDs)
		if err != nil {
			return CartRequest{}, err
		}
		sortedRoomIDs = normalized
	}
	if err := validateSpecialRequests(specialRequests); err != nil {
		return CartRequest{}, err
	}
	return CartRequest{
		userID:          userID,
		stay:            stay,
		roomIDs:         sortedRoomIDs,
		specialRequests: specialRequests,
		guests:          guests,
	}, nil
}

// UserID returns the cart owner.
func (request CartRequest) UserID() UserID {
	return request.userID
}

// Stay returns the intended nights.
func (request CartRequest) Stay() StayRange {
	return request.stay
}

// RoomIDs returns the carted rooms sorted by id.
func (request CartRequest) RoomIDs() []RoomID {
	return append([]RoomID(nil), request.roomIDs...)
}

// SpecialRequests returns the guest's free-text notes.
func (request CartRequest) SpecialRequests() string {
	return request.specialRequests
}

// Guests returns the headcount.
func (request CartRequest) Guests() GuestCount {
	return request.guests
}

func normalizeRoomSet(roomIDs []RoomID) ([]RoomID, error) {
	if len(roomIDs) == 0 {
		return nil, ErrEmptyRoomSet
	}
	sorted := make([]RoomID, 0, len(roomIDs))
	for _, roomID := range roomIDs {
		if roomID.String() == "" {
			return nil, fmt.Errorf("%w: empty value", ErrInvalidRoomID)
		}
		sorted = append(sorted, roomID)
	}
	sortRoomIDs(sorted)
	for index := 1; index < len(sorted); index++ {
		if sorted[index] == sorted[index-1] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoom, sorted[index])
		}
	}
	return sorted, nil
}

func sortRoomIDs(roomIDs []RoomID) {
	sort.Slice(roomIDs, func(left, right int) bool {
		return roomIDs[left].String() < roomIDs[right].String()
	})
}

func validateSpecialRequests(specialRequests string) error {
	if utf8.RuneCountInString(specialRequests) > MaxSpecialRequestsLength {
		return fmt.Errorf("%w: limit is %d characters", ErrSpecialRequestsTooLong, MaxSpecialRequestsLength)
	}
	return nil
}

// BookingTimeFilter selects bookings relative to today.
type BookingTimeFilter string

const (
	BookingsAll      BookingTimeFilter = "all"
	BookingsPrevious BookingTimeFilter = "previous"
	BookingsUpcoming BookingTimeFilter = "upcoming"
)

// ParseBookingTimeFilter parses a filter name; empty means all.
func ParseBookingTimeFilter(raw string) (BookingTimeFilter, error) {
	switch BookingTimeFilter(raw) {
	case "", BookingsAll:
		return BookingsAll, nil
	case BookingsPrevious:
		return BookingsPrevious, nil
	case BookingsUpcoming:
		return BookingsUpcoming, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBookingFilter, raw)
	}
}

// Page addresses one page of a listing.
type Page struct {
	number int
	size   int
}

// NewPage applies default and maximum sizes; numbers below one select the first page.
func NewPage(number int, size int) Page {
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{number: number, size: size}
}

// Number returns the one-based page number.
func (page Page) Number() int {
	if page.number < 1 {
		return 1
	}
	return page.number
}

// Size returns the page size.
func (page Page) Size() int {
	if page.size <= 0 {
		return DefaultPageSize
	}
	return page.size
}

// Offset returns the number of rows to skip.
func (page Page) Offset() int {
	return (page.Number() - 1) * page.Size()
}

// BookingQuery is what a store needs to list a user's bookings.
type BookingQuery struct {
	UserID UserID
	Filter BookingTimeFilter
	Today  Date
	Page   Page
}
