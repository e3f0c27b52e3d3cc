package booking

import (
	"context"
	"fmt"
)

// GetEntry returns the ledger entry of roomID on date.
func (service *Service) GetEntry(ctx context.Context, roomID RoomID, date Date) (LedgerEntry, error) {
	return service.store.GetLedgerEntry(ctx, roomID, date)
}

// GetRange returns the entries of roomID in [start, end), ordered by date.
func (service *Service) GetRange(ctx context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidDateRange, end, start)
	}
	generation := CacheGeneration(-1)
	if service.calendar != nil {
		cached, current, ok := service.calendar.GetRange(ctx, roomID, start, end)
		if ok {
			return cached, nil
		}
		generation = current
	}
	entries, err := service.store.ListLedgerRange(ctx, roomID, start, end)
	if err != nil {
		return nil, err
	}
	if service.calendar != nil {
		service.calendar.StoreRange(ctx, roomID, start, end, generation, entries)
	}
	return entries, nil
}

// SumPrice returns the price of roomID across [start, end). Missing nights contribute zero.
func (service *Service) SumPrice(ctx context.Context, roomID RoomID, start Date, end Date) (Price, error) {
	if !end.After(start) {
		return ZeroPrice(), nil
	}
	return service.store.SumLedgerPrice(ctx, roomID, start, end)
}

// LatestDate returns the last ledger day of roomID; ok is false when the room has no entries.
func (service *Service) LatestDate(ctx context.Context, roomID RoomID) (Date, bool, error) {
	return service.store.LatestLedgerDate(ctx, roomID)
}

// UpdateEntryPrice re-prices one available night. Held nights keep the price their booking was charged.
func (service *Service) UpdateEntryPrice(ctx context.Context, roomID RoomID, date Date, price Price) error {
	startedAt := service.nowFn()
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		if _, err := txStore.GetLedgerEntry(ctx, roomID, date); err != nil {
			return err
		}
		updated, err := txStore.UpdateLedgerPrice(ctx, roomID, date, price)
		if err != nil {
			return err
		}
		if updated == 0 {
			return fmt.Errorf("%w: room %s on %s", ErrLedgerEntryHeld, roomID, date)
		}
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationUpdateEntryPrice,
		RoomIDs:    []RoomID{roomID},
		TotalPrice: price,
		Error:      operationError,
		Duration:   service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return operationError
	}
	service.afterCommit(ctx, nil, []RoomID{roomID})
	return nil
}
