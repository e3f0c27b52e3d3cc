package gormstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Room represents the rooms table.
type Room struct {
	RoomID    string          `gorm:"size:64;primaryKey"`
	HotelID   string          `gorm:"size:64;not null;index:idx_rooms_hotel"`
	BasePrice decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (Room) TableName() string { return "rooms" }

// LedgerEntry mirrors the ledger_entries table: one row per room and calendar day.
type LedgerEntry struct {
	EntryID   string          `gorm:"size:36;primaryKey"`
	RoomID    string          `gorm:"size:64;not null;uniqueIndex:uniq_ledger_room_date,priority:1"`
	Date      datatypes.Date  `gorm:"not null;uniqueIndex:uniq_ledger_room_date,priority:2"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Available bool            `gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }

func (entry *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if entry.EntryID == "" {
		entry.EntryID = uuid.NewString()
	}
	return nil
}

// Booking mirrors the bookings table.
type Booking struct {
	BookingID          string          `gorm:"size:36;primaryKey"`
	UserID             string          `gorm:"size:64;not null;index:idx_bookings_user_check_in,priority:1"`
	HotelID            string          `gorm:"size:64;not null"`
	CheckIn            datatypes.Date  `gorm:"not null;index:idx_bookings_user_check_in,priority:2"`
	CheckOut           datatypes.Date  `gorm:"not null"`
	TotalPrice         decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	SpecialRequests    string          `gorm:"size:1000;not null"`
	BookedAt           time.Time       `gorm:"not null"`
	Paid               bool            `gorm:"not null"`
	ConfirmationNumber int64           `gorm:"not null;uniqueIndex:uniq_bookings_confirmation_number"`
	Adults             int             `gorm:"not null"`
	Children           int             `gorm:"not null"`
}

func (Booking) TableName() string { return "bookings" }

func (booking *Booking) BeforeCreate(tx *gorm.DB) error {
	if booking.BookingID == "" {
		booking.BookingID = uuid.NewString()
	}
	return nil
}

// BookingRoom mirrors the booking_rooms link table.
type BookingRoom struct {
	LinkID    string `gorm:"size:36;primaryKey"`
	BookingID string `gorm:"size:36;not null;uniqueIndex:uniq_booking_rooms_booking_room,priority:1"`
	RoomID    string `gorm:"size:64;not null;uniqueIndex:uniq_booking_rooms_booking_room,priority:2;index:idx_booking_rooms_room"`
}

func (BookingRoom) TableName() string { return "booking_rooms" }

func (link *BookingRoom) BeforeCreate(tx *gorm.DB) error {
	if link.LinkID == "" {
		link.LinkID = uuid.NewString()
	}
	return nil
}

// CartBooking mirrors the cart_bookings table.
type CartBooking struct {
	CartID          string         `gorm:"size:36;primaryKey"`
	UserID          string         `gorm:"size:64;not null;index:idx_cart_bookings_user"`
	CheckIn         datatypes.Date `gorm:"not null"`
	CheckOut        datatypes.Date `gorm:"not null"`
	SpecialRequests string         `gorm:"size:1000;not null"`
	Adults          int            `gorm:"not null"`
	Children        int            `gorm:"not null"`
	CreatedAt       time.Time      `gorm:"not null"`
}

func (CartBooking) TableName() string { return "cart_bookings" }

func (cart *CartBooking) BeforeCreate(tx *gorm.DB) error {
	if cart.CartID == "" {
		cart.CartID = uuid.NewString()
	}
	return nil
}

// CartRoom mirrors the cart_rooms link table.
type CartRoom struct {
	CartRoomID string `gorm:"size:36;primaryKey"`
	CartID     string `gorm:"size:36;not null;uniqueIndex:uniq_cart_rooms_cart_room,priority:1"`
	RoomID     string `gorm:"size:64;not null;uniqueIndex:uniq_cart_rooms_cart_room,priority:2;index:idx_cart_rooms_room"`
}

func (CartRoom) TableName() string { return "cart_rooms" }

func (link *CartRoom) BeforeCreate(tx *gorm.DB) error {
	if link.CartRoomID == "" {
		link.CartRoomID = uuid.NewString()
	}
	return nil
}

// CartOwner holds one row per user; locking it serializes cart creation for that user.
type CartOwner struct {
	UserID string `gorm:"size:64;primaryKey"`
}

func (CartOwner) TableName() string { return "cart_owners" }

// Models lists every table the store needs, in dependency order.
func Models() []any {
	return []any{&Room{}, &LedgerEntry{}, &Booking{}, &BookingRoom{}, &CartBooking{}, &CartRoom{}, &CartOwner{}}
}
