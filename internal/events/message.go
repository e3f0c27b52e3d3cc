package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
)

// ErrUnknownEventType reports an event type with no configured queue.
var ErrUnknownEventType = errors.New("unknown event type")

// BookingMessage is the JSON payload published for every booking lifecycle event.
type BookingMessage struct {
	Type               string   `json:"type"`
	BookingID          string   `json:"booking_id"`
	UserID             string   `json:"user_id"`
	HotelID            string   `json:"hotel_id"`
	RoomIDs            []string `json:"room_ids"`
	CheckIn            string   `json:"check_in"`
	CheckOut           string   `json:"check_out"`
	Nights             int      `json:"nights"`
	TotalPrice         string   `json:"total_price"`
	ConfirmationNumber int64    `json:"confirmation_number"`
	OccurredAt         string   `json:"occurred_at"`
}

// NewBookingMessage flattens a domain event into its wire form.
func NewBookingMessage(event booking.Event) BookingMessage {
	roomIDs := make([]string, 0, len(event.RoomIDs))
	for _, roomID := range event.RoomIDs {
		roomIDs = append(roomIDs, roomID.String())
	}
	return BookingMessage{
		Type:               string(event.Type),
		BookingID:          event.BookingID.String(),
		UserID:             event.UserID.String(),
		HotelID:            event.HotelID.String(),
		RoomIDs:            roomIDs,
		CheckIn:            event.Stay.CheckIn().String(),
		CheckOut:           event.Stay.CheckOut().String(),
		Nights:             event.Stay.Nights(),
		TotalPrice:         event.TotalPrice.String(),
		ConfirmationNumber: event.ConfirmationNumber.Int64(),
		OccurredAt:         event.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// Queues names the durable queue of each event type.
type Queues struct {
	Confirmed string
	Updated   string
	Canceled  string
}

// DefaultQueues names each queue after its event type.
func DefaultQueues() Queues {
	return Queues{
		Confirmed: string(booking.EventBookingConfirmed),
		Updated:   string(booking.EventBookingUpdated),
		Canceled:  string(booking.EventBookingCanceled),
	}
}

// For returns the queue that carries eventType.
func (queues Queues) For(eventType booking.EventType) (string, error) {
	var name string
	switch eventType {
	case booking.EventBookingConfirmed:
		name = queues.Confirmed
	case booking.EventBookingUpdated:
		name = queues.Updated
	case booking.EventBookingCanceled:
		name = queues.Canceled
	}
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	return name, nil
}

// All returns every configured queue name once.
func (queues Queues) All() []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, name := range []string{queues.Confirmed, queues.Updated, queues.Canceled} {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
