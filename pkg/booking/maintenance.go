package booking

import (
	"context"
	"fmt"
)

// InitializeRoom registers a room and creates horizonDays available entries from today at its base price.
func (service *Service) InitializeRoom(ctx context.Context, room Room, horizonDays int) error {
	startedAt := service.nowFn()
	if err := validateHorizon(horizonDays); err != nil {
		return err
	}
	if room.ID.String() == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidRoomID)
	}
	if room.HotelID.String() == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidHotelID)
	}
	entries := buildLedgerEntries(room.ID, service.Today(), horizonDays, room.BasePrice)
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		if err := txStore.CreateRoom(ctx, room); err != nil {
			return err
		}
		return txStore.InsertLedgerEntries(ctx, entries)
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationInitializeRoom,
		RoomIDs:    []RoomID{room.ID},
		TotalPrice: room.BasePrice,
		Error:      operationError,
		Duration:   service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return operationError
	}
	service.afterCommit(ctx, nil, []RoomID{room.ID})
	return nil
}

// ExtendHorizon appends numDays available entries priced at price, starting the day after the room's latest
// entry or today when the room has none. It returns the new latest date.
func (service *Service) ExtendHorizon(ctx context.Context, roomID RoomID, numDays int, price Price) (Date, error) {
	startedAt := service.nowFn()
	if err := validateHorizon(numDays); err != nil {
		return Date{}, err
	}
	var latest Date
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.LockRoom(ctx, roomID); err != nil {
			return err
		}
		current, ok, err := txStore.LatestLedgerDate(ctx, roomID)
		if err != nil {
			return err
		}
		start := service.Today()
		if ok {
			start = current.AddDays(1)
		}
		entries := buildLedgerEntries(roomID, start, numDays, price)
		if err := txStore.InsertLedgerEntries(ctx, entries); err != nil {
			return err
		}
		latest = entries[len(entries)-1].Date
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationExtendHorizon,
		RoomIDs:    []RoomID{roomID},
		TotalPrice: price,
		Error:      operationError,
		Duration:   service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return Date{}, operationError
	}
	service.afterCommit(ctx, nil, []RoomID{roomID})
	return latest, nil
}

// PurgeRoom deletes a room, its ledger entries, and its cart links. Rooms still linked to bookings are kept.
func (service *Service) PurgeRoom(ctx context.Context, roomID RoomID) error {
	startedAt := service.nowFn()
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.LockRoom(ctx, roomID); err != nil {
			return err
		}
		linked, err := txStore.CountRoomBookings(ctx, roomID)
		if err != nil {
			return err
		}
		if linked > 0 {
			return fmt.Errorf("%w: room %s is linked to %d bookings", ErrRoomInUse, roomID, linked)
		}
		if err := txStore.DeleteCartRoomsForRoom(ctx, roomID); err != nil {
			return err
		}
		if err := txStore.DeleteLedgerEntries(ctx, roomID); err != nil {
			return err
		}
		return txStore.DeleteRoom(ctx, roomID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationPurgeRoom,
		RoomIDs:   []RoomID{roomID},
		Error:     operationError,
		Duration:  service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return operationError
	}
	service.afterCommit(ctx, nil, []RoomID{roomID})
	return nil
}

// GetRoom returns the registry record of a room.
func (service *Service) GetRoom(ctx context.Context, roomID RoomID) (Room, error) {
	return service.store.GetRoom(ctx, roomID)
}

// ListRooms returns every registered room.
func (service *Service) ListRooms(ctx context.Context) ([]Room, error) {
	return service.store.ListRooms(ctx)
}

func validateHorizon(days int) error {
	if days < 1 || days > MaxHorizonDays {
		return fmt.Errorf("%w: %d days, expected 1..%d", ErrInvalidHorizon, days, MaxHorizonDays)
	}
	return nil
}

func buildLedgerEntries(roomID RoomID, start Date, days int, price Price) []LedgerEntry {
	entries := make([]LedgerEntry, 0, days)
	for offset := 0; offset < days; offset++ {
		entries = append(entries, LedgerEntry{
			RoomID:    roomID,
			Date:      start.AddDays(offset),
			Price:     price,
			Available: true,
		})
	}
	return entries
}
