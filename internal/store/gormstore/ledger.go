package gormstore

import (
	"context"
	"errors"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (store *Store) InsertLedgerEntries(ctx context.Context, entries []booking.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]LedgerEntry, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, LedgerEntry{
			RoomID:    entry.RoomID.String(),
			Date:      dateValue(entry.Date),
			Price:     entry.Price.Decimal(),
			Available: entry.Available,
		})
	}
	err := store.db.WithContext(ctx).CreateInBatches(&rows, insertBatchSize).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectLedger, errorCodeDuplicate, booking.ErrDuplicateLedgerEntry)
	}
	if err != nil {
		return storeFailure(errorSubjectLedger, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetLedgerEntry(ctx context.Context, roomID booking.RoomID, date booking.Date) (booking.LedgerEntry, error) {
	var row LedgerEntry
	err := store.db.WithContext(ctx).
		Where("room_id = ? AND date = ?", roomID.String(), dateValue(date)).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.LedgerEntry{}, wrapStoreError(errorSubjectLedger, errorCodeGet, booking.ErrLedgerEntryNotFound)
	}
	if err != nil {
		return booking.LedgerEntry{}, storeFailure(errorSubjectLedger, errorCodeGet, err)
	}
	entry, err := mapLedgerEntry(row)
	if err != nil {
		return booking.LedgerEntry{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	return entry, nil
}

func (store *Store) ListLedgerRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) ([]booking.LedgerEntry, error) {
	return store.findLedgerRange(store.db.WithContext(ctx), roomID, start, end, errorCodeList)
}

// LockLedgerRange takes row locks in date order; callers lock rooms in ascending id order.
func (store *Store) LockLedgerRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) ([]booking.LedgerEntry, error) {
	return store.findLedgerRange(store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), roomID, start, end, errorCodeLock)
}

func (store *Store) findLedgerRange(query *gorm.DB, roomID booking.RoomID, start booking.Date, end booking.Date, code string) ([]booking.LedgerEntry, error) {
	var rows []LedgerEntry
	err := query.
		Where("room_id = ? AND date >= ? AND date < ?", roomID.String(), dateValue(start), dateValue(end)).
		Order("date").
		Find(&rows).Error
	if err != nil {
		return nil, storeFailure(errorSubjectLedger, code, err)
	}
	entries := make([]booking.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := mapLedgerEntry(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (store *Store) SetLedgerAvailability(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date, from bool, to bool) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("room_id = ? AND date >= ? AND date < ? AND available = ?", roomID.String(), dateValue(start), dateValue(end), from).
		Update("available", to)
	if result.Error != nil {
		return 0, storeFailure(errorSubjectLedger, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) SumLedgerPrice(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) (booking.Price, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Select("coalesce(sum(price),0) as total").
		Where("room_id = ? AND date >= ? AND date < ?", roomID.String(), dateValue(start), dateValue(end)).
		Scan(&sum).Error
	if err != nil {
		return booking.Price{}, storeFailure(errorSubjectLedger, errorCodeSum, err)
	}
	total, err := booking.NewPrice(sum.Total)
	if err != nil {
		return booking.Price{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	return total, nil
}

func (store *Store) UpdateLedgerPrice(ctx context.Context, roomID booking.RoomID, date booking.Date, price booking.Price) (int64, error) {
	result := store.db.WithContext(ctx).
		Model(&LedgerEntry{}).
		Where("room_id = ? AND date = ? AND available = ?", roomID.String(), dateValue(date), true).
		Update("price", price.Decimal())
	if result.Error != nil {
		return 0, storeFailure(errorSubjectLedger, errorCodeUpdate, result.Error)
	}
	return result.RowsAffected, nil
}

func (store *Store) LatestLedgerDate(ctx context.Context, roomID booking.RoomID) (booking.Date, bool, error) {
	var row LedgerEntry
	err := store.db.WithContext(ctx).
		Where("room_id = ?", roomID.String()).
		Order("date DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Date{}, false, nil
	}
	if err != nil {
		return booking.Date{}, false, storeFailure(errorSubjectLedger, errorCodeGet, err)
	}
	return fromDateValue(row.Date), true, nil
}

func (store *Store) DeleteLedgerEntries(ctx context.Context, roomID booking.RoomID) error {
	err := store.db.WithContext(ctx).Where("room_id = ?", roomID.String()).Delete(&LedgerEntry{}).Error
	if err != nil {
		return storeFailure(errorSubjectLedger, errorCodeDelete, err)
	}
	return nil
}

func mapLedgerEntry(row LedgerEntry) (booking.LedgerEntry, error) {
	roomID, err := booking.NewRoomID(row.RoomID)
	if err != nil {
		return booking.LedgerEntry{}, err
	}
	price, err := booking.NewPrice(row.Price)
	if err != nil {
		return booking.LedgerEntry{}, err
	}
	return booking.LedgerEntry{
		ID:        row.EntryID,
		RoomID:    roomID,
		Date:      fromDateValue(row.Date),
		Price:     price,
		Available: row.Available,
	}, nil
}
