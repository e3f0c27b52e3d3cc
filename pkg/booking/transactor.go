package booking

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// roomHold is one room's locked nights inside a booking transaction.
// missing lists the nights with no ledger entry, which only CoverageTreatMissingAsFree admits.
type roomHold struct {
	roomID  RoomID
	entries []LedgerEntry
	missing []Date
}

// CreateBooking validates every requested room, holds their nights, and persists the booking atomically.
func (service *Service) CreateBooking(ctx context.Context, request BookingRequest) (Booking, error) {
	startedAt := service.nowFn()
	stage := StageValidating
	var created Booking
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		booking, err := service.reserveAndPersist(ctx, txStore, request, &stage)
		if err != nil {
			return err
		}
		created = booking
		return nil
	})
	service.logOperation(ctx, transactorLog(operationCreateBooking, request, created, stage, operationError, service.elapsedSince(startedAt)))
	if operationError != nil {
		return Booking{}, operationError
	}
	event := newBookingEvent(EventBookingConfirmed, created, service.nowFn().UTC())
	service.afterCommit(ctx, &event, created.RoomIDs())
	return created, nil
}

// reserveAndPersist runs the validating, reserving, and persisting stages inside txStore.
// All rooms are checked before any ledger row changes.
func (service *Service) reserveAndPersist(ctx context.Context, txStore Store, request BookingRequest, stage *Stage) (Booking, error) {
	*stage = StageValidating
	stay := request.Stay()
	holds := make([]roomHold, 0, len(request.RoomIDs()))
	for _, roomID := range request.RoomIDs() {
		hold, err := service.lockBookableRoom(ctx, txStore, roomID, request.HotelID(), stay)
		if err != nil {
			return Booking{}, err
		}
		holds = append(holds, hold)
	}

	*stage = StageReserving
	for _, hold := range holds {
		if err := holdNights(ctx, txStore, hold, stay); err != nil {
			return Booking{}, err
		}
	}

	*stage = StagePersisting
	total := ZeroPrice()
	links := make([]BookingRoom, 0, len(holds))
	for _, hold := range holds {
		total = total.Add(sumEntries(hold.entries))
		links = append(links, BookingRoom{RoomID: hold.roomID})
	}
	confirmationNumber, err := service.drawConfirmationNumber(ctx, txStore)
	if err != nil {
		return Booking{}, err
	}
	booking, err := txStore.InsertBooking(ctx, Booking{
		UserID:             request.UserID(),
		HotelID:            request.HotelID(),
		Stay:               stay,
		TotalPrice:         total,
		SpecialRequests:    request.SpecialRequests(),
		BookedAt:           service.nowFn().UTC(),
		ConfirmationNumber: confirmationNumber,
		Guests:             request.Guests(),
		Rooms:              links,
	})
	if err != nil {
		return Booking{}, err
	}
	return booking, nil
}

// lockBookableRoom locks the room and its nights across stay, and checks them.
// The room lock orders bookings against PurgeRoom and ExtendHorizon.
func (service *Service) lockBookableRoom(ctx context.Context, txStore Store, roomID RoomID, hotelID HotelID, stay StayRange) (roomHold, error) {
	room, err := txStore.LockRoom(ctx, roomID)
	if err != nil {
		return roomHold{}, err
	}
	if room.HotelID != hotelID {
		return roomHold{}, fmt.Errorf("%w: room %s belongs to hotel %s, not %s", ErrRoomHotelMismatch, roomID, room.HotelID, hotelID)
	}
	entries, err := txStore.LockLedgerRange(ctx, roomID, stay.CheckIn(), stay.CheckOut())
	if err != nil {
		return roomHold{}, err
	}
	if err := evaluateRange(roomID, stay, entries, service.coverage); err != nil {
		return roomHold{}, err
	}
	return roomHold{roomID: roomID, entries: entries, missing: missingNights(stay, entries)}, nil
}

// holdNights flips the locked nights to unavailable; any row that was no longer free aborts the transaction.
// Missing nights are written as held entries priced at zero, so a later release frees only this stay.
func holdNights(ctx context.Context, txStore Store, hold roomHold, stay StayRange) error {
	flipped, err := txStore.SetLedgerAvailability(ctx, hold.roomID, stay.CheckIn(), stay.CheckOut(), true, false)
	if err != nil {
		return err
	}
	if flipped != int64(len(hold.entries)) {
		return fmt.Errorf("%w: room %s changed while reserving %s", ErrRoomUnavailable, hold.roomID, stay)
	}
	if len(hold.missing) == 0 {
		return nil
	}
	held := make([]LedgerEntry, 0, len(hold.missing))
	for _, night := range hold.missing {
		held = append(held, LedgerEntry{RoomID: hold.roomID, Date: night, Price: ZeroPrice(), Available: false})
	}
	if err := txStore.InsertLedgerEntries(ctx, held); err != nil {
		if errors.Is(err, ErrDuplicateLedgerEntry) {
			return fmt.Errorf("%w: room %s changed while reserving %s", ErrRoomUnavailable, hold.roomID, stay)
		}
		return err
	}
	return nil
}

func missingNights(stay StayRange, entries []LedgerEntry) []Date {
	if len(entries) == stay.Nights() {
		return nil
	}
	covered := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		covered[entry.Date.String()] = struct{}{}
	}
	var missing []Date
	for _, night := range stay.Dates() {
		if _, ok := covered[night.String()]; !ok {
			missing = append(missing, night)
		}
	}
	return missing
}

// releaseNights locks a held range and returns it to the available pool, reporting the released price.
func releaseNights(ctx context.Context, txStore Store, roomID RoomID, stay StayRange) (Price, error) {
	entries, err := txStore.LockLedgerRange(ctx, roomID, stay.CheckIn(), stay.CheckOut())
	if err != nil {
		return Price{}, err
	}
	if _, err := txStore.SetLedgerAvailability(ctx, roomID, stay.CheckIn(), stay.CheckOut(), false, true); err != nil {
		return Price{}, err
	}
	return sumEntries(entries), nil
}

// CancelBooking releases every held night of the booking and deletes it with its room links.
func (service *Service) CancelBooking(ctx context.Context, bookingID BookingID) error {
	startedAt := service.nowFn()
	var canceled Booking
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		booking, err := txStore.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		roomIDs := booking.RoomIDs()
		sortRoomIDs(roomIDs)
		for _, roomID := range roomIDs {
			if _, err := releaseNights(ctx, txStore, roomID, booking.Stay); err != nil {
				return err
			}
		}
		if err := txStore.DeleteBooking(ctx, bookingID); err != nil {
			return err
		}
		canceled = booking
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationCancelBooking,
		UserID:     canceled.UserID,
		BookingID:  bookingID,
		RoomIDs:    canceled.RoomIDs(),
		Stay:       canceled.Stay,
		TotalPrice: canceled.TotalPrice,
		Error:      operationError,
		Duration:   service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return operationError
	}
	event := newBookingEvent(EventBookingCanceled, canceled, service.nowFn().UTC())
	service.afterCommit(ctx, &event, canceled.RoomIDs())
	return nil
}

// AddRoomToBooking holds one more room across the booking's stored stay and adds its price to the total.
func (service *Service) AddRoomToBooking(ctx context.Context, bookingID BookingID, roomID RoomID) (BookingRoom, error) {
	startedAt := service.nowFn()
	stage := StageValidating
	var (
		updated Booking
		link    BookingRoom
	)
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		booking, err := txStore.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		for _, existing := range booking.Rooms {
			if existing.RoomID == roomID {
				return fmt.Errorf("%w: room %s", ErrRoomAlreadyInBooking, roomID)
			}
		}
		hold, err := service.lockBookableRoom(ctx, txStore, roomID, booking.HotelID, booking.Stay)
		if err != nil {
			return err
		}
		stage = StageReserving
		if err := holdNights(ctx, txStore, hold, booking.Stay); err != nil {
			return err
		}
		stage = StagePersisting
		link, err = txStore.InsertBookingRoom(ctx, BookingRoom{BookingID: bookingID, RoomID: roomID})
		if err != nil {
			return err
		}
		booking.TotalPrice = booking.TotalPrice.Add(sumEntries(hold.entries))
		if err := txStore.UpdateBookingTotal(ctx, bookingID, booking.TotalPrice); err != nil {
			return err
		}
		booking.Rooms = append(booking.Rooms, link)
		updated = booking
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:   operationAddBookingRoom,
		UserID:      updated.UserID,
		BookingID:   bookingID,
		RoomIDs:     []RoomID{roomID},
		Stay:        updated.Stay,
		TotalPrice:  updated.TotalPrice,
		Stage:       finalStage(operationError),
		FailedStage: failedStage(stage, operationError),
		Error:       operationError,
		Duration:    service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return BookingRoom{}, operationError
	}
	event := newBookingEvent(EventBookingUpdated, updated, service.nowFn().UTC())
	service.afterCommit(ctx, &event, []RoomID{roomID})
	return link, nil
}

// RemoveRoomFromBooking releases one linked room across the booking's stored stay and deducts its price.
func (service *Service) RemoveRoomFromBooking(ctx context.Context, linkID BookingRoomID) error {
	startedAt := service.nowFn()
	var (
		updated Booking
		roomID  RoomID
	)
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		link, err := txStore.GetBookingRoom(ctx, linkID)
		if err != nil {
			return err
		}
		roomID = link.RoomID
		booking, err := txStore.LockBooking(ctx, link.BookingID)
		if err != nil {
			return err
		}
		if len(booking.Rooms) <= 1 {
			return fmt.Errorf("%w: booking %s", ErrLastBookingRoom, booking.ID)
		}
		released, err := releaseNights(ctx, txStore, link.RoomID, booking.Stay)
		if err != nil {
			return err
		}
		if err := txStore.DeleteBookingRoom(ctx, linkID); err != nil {
			return err
		}
		booking.TotalPrice = booking.TotalPrice.Sub(released)
		if err := txStore.UpdateBookingTotal(ctx, booking.ID, booking.TotalPrice); err != nil {
			return err
		}
		booking.Rooms = withoutLink(booking.Rooms, linkID)
		updated = booking
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationRemoveBookingRoom,
		UserID:     updated.UserID,
		BookingID:  updated.ID,
		RoomIDs:    []RoomID{roomID},
		Stay:       updated.Stay,
		TotalPrice: updated.TotalPrice,
		Error:      operationError,
		Duration:   service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return operationError
	}
	event := newBookingEvent(EventBookingUpdated, updated, service.nowFn().UTC())
	service.afterCommit(ctx, &event, []RoomID{roomID})
	return nil
}

func withoutLink(links []BookingRoom, linkID BookingRoomID) []BookingRoom {
	remaining := make([]BookingRoom, 0, len(links))
	for _, link := range links {
		if link.ID != linkID {
			remaining = append(remaining, link)
		}
	}
	return remaining
}

func transactorLog(operation string, request BookingRequest, created Booking, stage Stage, operationError error, elapsed time.Duration) OperationLog {
	return OperationLog{
		Operation:   operation,
		UserID:      request.UserID(),
		BookingID:   created.ID,
		RoomIDs:     request.RoomIDs(),
		Stay:        request.Stay(),
		TotalPrice:  created.TotalPrice,
		Stage:       finalStage(operationError),
		FailedStage: failedStage(stage, operationError),
		Error:       operationError,
		Duration:    elapsed,
	}
}

func finalStage(operationError error) Stage {
	if operationError != nil {
		return StageAborted
	}
	return StageCommitted
}

func failedStage(stage Stage, operationError error) Stage {
	if operationError != nil {
		return stage
	}
	return ""
}
