package booking

import (
	"context"
	"time"
)

// EventType names a booking lifecycle event.
type EventType string

const (
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingUpdated   EventType = "booking.updated"
	EventBookingCanceled  EventType = "booking.canceled"
)

// Event describes a committed booking change.
type Event struct {
	Type               EventType
	BookingID          BookingID
	UserID             UserID
	HotelID            HotelID
	RoomIDs            []RoomID
	Stay               StayRange
	TotalPrice         Price
	ConfirmationNumber ConfirmationNumber
	OccurredAt         time.Time
}

// EventPublisher receives events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// CacheGeneration identifies one state of a room's cached calendar. Invalidate advances it, so a range
// read under an older generation is never served. Negative generations are not stored.
type CacheGeneration int64

// CalendarCache is a read-through cache of ledger ranges.
// Implementations swallow their own failures; a miss always falls through to the store.
// On a miss GetRange reports the generation the caller passes back to StoreRange.
type CalendarCache interface {
	GetRange(ctx context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, CacheGeneration, bool)
	StoreRange(ctx context.Context, roomID RoomID, start Date, end Date, generation CacheGeneration, entries []LedgerEntry)
	Invalidate(ctx context.Context, roomIDs ...RoomID)
}

func newBookingEvent(eventType EventType, booking Booking, occurredAt time.Time) Event {
	return Event{
		Type:               eventType,
		BookingID:          booking.ID,
		UserID:             booking.UserID,
		HotelID:            booking.HotelID,
		RoomIDs:            booking.RoomIDs(),
		Stay:               booking.Stay,
		TotalPrice:         booking.TotalPrice,
		ConfirmationNumber: booking.ConfirmationNumber,
		OccurredAt:         occurredAt,
	}
}

func (service *Service) afterCommit(ctx context.Context, event *Event, touchedRooms []RoomID) {
	if service.calendar != nil && len(touchedRooms) > 0 {
		service.calendar.Invalidate(ctx, touchedRooms...)
	}
	if service.publisher == nil || event == nil {
		return
	}
	if err := service.publisher.Publish(ctx, *event); err != nil {
		service.logOperation(ctx, OperationLog{
			Operation: operationPublishEvent,
			UserID:    event.UserID,
			BookingID: event.BookingID,
			RoomIDs:   event.RoomIDs,
			Stay:      event.Stay,
			Error:     err,
		})
	}
}
