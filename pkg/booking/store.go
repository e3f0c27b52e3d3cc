package booking

import "context"

// RoomStore persists the room registry.
type RoomStore interface {
	CreateRoom(ctx context.Context, room Room) error
	GetRoom(ctx context.Context, roomID RoomID) (Room, error)
	LockRoom(ctx context.Context, roomID RoomID) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	DeleteRoom(ctx context.Context, roomID RoomID) error
	CountRoomBookings(ctx context.Context, roomID RoomID) (int64, error)
}

// LedgerStore persists day-ledger entries. Ranges are half-open [start, end).
type LedgerStore interface {
	InsertLedgerEntries(ctx context.Context, entries []LedgerEntry) error
	GetLedgerEntry(ctx context.Context, roomID RoomID, date Date) (LedgerEntry, error)
	ListLedgerRange(ctx context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, error)
	// LockLedgerRange returns the range ordered by date and holds row locks until the transaction ends.
	LockLedgerRange(ctx context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, error)
	// SetLedgerAvailability flips entries currently at from to to and returns how many rows changed.
	SetLedgerAvailability(ctx context.Context, roomID RoomID, start Date, end Date, from bool, to bool) (int64, error)
	SumLedgerPrice(ctx context.Context, roomID RoomID, start Date, end Date) (Price, error)
	// UpdateLedgerPrice re-prices an available entry and returns how many rows changed.
	UpdateLedgerPrice(ctx context.Context, roomID RoomID, date Date, price Price) (int64, error)
	LatestLedgerDate(ctx context.Context, roomID RoomID) (Date, bool, error)
	DeleteLedgerEntries(ctx context.Context, roomID RoomID) error
}

// BookingStore persists bookings and their room links.
type BookingStore interface {
	ConfirmationNumberExists(ctx context.Context, number ConfirmationNumber) (bool, error)
	// InsertBooking stores the booking with its room links and returns it with ids assigned.
	InsertBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, bookingID BookingID) (Booking, error)
	LockBooking(ctx context.Context, bookingID BookingID) (Booking, error)
	DeleteBooking(ctx context.Context, bookingID BookingID) error
	InsertBookingRoom(ctx context.Context, link BookingRoom) (BookingRoom, error)
	GetBookingRoom(ctx context.Context, linkID BookingRoomID) (BookingRoom, error)
	DeleteBookingRoom(ctx context.Context, linkID BookingRoomID) error
	UpdateBookingTotal(ctx context.Context, bookingID BookingID, total Price) error
	MarkBookingPaid(ctx context.Context, bookingID BookingID) error
	ListUserBookings(ctx context.Context, query BookingQuery) ([]Booking, error)
}

// CartStore persists cart bookings and their room links.
type CartStore interface {
	// LockUserCarts serializes cart creation for one user until the transaction ends.
	LockUserCarts(ctx context.Context, userID UserID) error
	CountCarts(ctx context.Context, userID UserID) (int64, error)
	InsertCart(ctx context.Context, cart CartBooking) (CartBooking, error)
	GetCart(ctx context.Context, cartID CartID) (CartBooking, error)
	ListCarts(ctx context.Context, userID UserID) ([]CartBooking, error)
	DeleteCart(ctx context.Context, cartID CartID) error
	InsertCartRoom(ctx context.Context, link CartRoom) (CartRoom, error)
	DeleteCartRoom(ctx context.Context, cartID CartID, roomID RoomID) error
	DeleteCartRoomsForRoom(ctx context.Context, roomID RoomID) error
}

// Store is the persistence boundary of the booking engine.
type Store interface {
	RoomStore
	LedgerStore
	BookingStore
	CartStore
	// WithTx runs fn in one transaction; the store passed to fn is bound to it.
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
}
