package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	sqlInsertLedgerEntries = `
		insert into ledger_entries(entry_id, room_id, date, price, available)
		select entry_id, room_id, day, price::numeric, available
		from unnest($1::text[], $2::text[], $3::date[], $4::text[], $5::bool[]) as t(entry_id, room_id, day, price, available)
	`

	sqlSelectLedgerEntry = `
		select entry_id, room_id, date, price::text, available
		from ledger_entries
		where room_id = $1 and date = $2
	`

	sqlSelectLedgerRange = `
		select entry_id, room_id, date, price::text, available
		from ledger_entries
		where room_id = $1 and date >= $2 and date < $3
		order by date
	`

	sqlSelectLedgerRangeForUpdate = sqlSelectLedgerRange + ` for update`

	sqlSetLedgerAvailability = `
		update ledger_entries
		set available = $5
		where room_id = $1 and date >= $2 and date < $3 and available = $4
	`

	sqlSumLedgerPrice = `
		select coalesce(sum(price),0)::text
		from ledger_entries
		where room_id = $1 and date >= $2 and date < $3
	`

	sqlUpdateLedgerPrice = `
		update ledger_entries
		set price = $3::numeric
		where room_id = $1 and date = $2 and available
	`

	sqlLatestLedgerDate = `select max(date) from ledger_entries where room_id = $1`

	sqlDeleteLedgerEntries = `delete from ledger_entries where room_id = $1`
)

func (store *Store) InsertLedgerEntries(ctx context.Context, entries []booking.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	entryIDs := make([]string, 0, len(entries))
	roomIDs := make([]string, 0, len(entries))
	days := make([]time.Time, 0, len(entries))
	prices := make([]string, 0, len(entries))
	available := make([]bool, 0, len(entries))
	for _, entry := range entries {
		entryIDs = append(entryIDs, uuid.NewString())
		roomIDs = append(roomIDs, entry.RoomID.String())
		days = append(days, dateValue(entry.Date))
		prices = append(prices, entry.Price.String())
		available = append(available, entry.Available)
	}
	_, err := store.db.Exec(ctx, sqlInsertLedgerEntries, entryIDs, roomIDs, days, prices, available)
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectLedger, errorCodeDuplicate, booking.ErrDuplicateLedgerEntry)
	}
	if err != nil {
		return storeFailure(errorSubjectLedger, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) GetLedgerEntry(ctx context.Context, roomID booking.RoomID, date booking.Date) (booking.LedgerEntry, error) {
	entry, err := scanLedgerEntry(store.db.QueryRow(ctx, sqlSelectLedgerEntry, roomID.String(), dateValue(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.LedgerEntry{}, wrapStoreError(errorSubjectLedger, errorCodeGet, booking.ErrLedgerEntryNotFound)
	}
	if err != nil {
		return booking.LedgerEntry{}, storeFailure(errorSubjectLedger, errorCodeGet, err)
	}
	return entry, nil
}

func (store *Store) ListLedgerRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) ([]booking.LedgerEntry, error) {
	return store.queryLedgerRange(ctx, sqlSelectLedgerRange, roomID, start, end, errorCodeList)
}

// LockLedgerRange takes row locks in date order; callers lock rooms in ascending id order.
func (store *Store) LockLedgerRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) ([]booking.LedgerEntry, error) {
	return store.queryLedgerRange(ctx, sqlSelectLedgerRangeForUpdate, roomID, start, end, errorCodeLock)
}

func (store *Store) queryLedgerRange(ctx context.Context, query string, roomID booking.RoomID, start booking.Date, end booking.Date, code string) ([]booking.LedgerEntry, error) {
	rows, err := store.db.Query(ctx, query, roomID.String(), dateValue(start), dateValue(end))
	if err != nil {
		return nil, storeFailure(errorSubjectLedger, code, err)
	}
	defer rows.Close()
	entries := []booking.LedgerEntry{}
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure(errorSubjectLedger, code, err)
	}
	return entries, nil
}

func (store *Store) SetLedgerAvailability(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date, from bool, to bool) (int64, error) {
	tag, err := store.db.Exec(ctx, sqlSetLedgerAvailability, roomID.String(), dateValue(start), dateValue(end), from, to)
	if err != nil {
		return 0, storeFailure(errorSubjectLedger, errorCodeUpdate, err)
	}
	return tag.RowsAffected(), nil
}

func (store *Store) SumLedgerPrice(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) (booking.Price, error) {
	var totalValue string
	if err := store.db.QueryRow(ctx, sqlSumLedgerPrice, roomID.String(), dateValue(start), dateValue(end)).Scan(&totalValue); err != nil {
		return booking.Price{}, storeFailure(errorSubjectLedger, errorCodeSum, err)
	}
	total, err := parsePrice(totalValue)
	if err != nil {
		return booking.Price{}, wrapStoreError(errorSubjectLedger, errorCodeInvalid, err)
	}
	return total, nil
}

func (store *Store) UpdateLedgerPrice(ctx context.Context, roomID booking.RoomID, date booking.Date, price booking.Price) (int64, error) {
	tag, err := store.db.Exec(ctx, sqlUpdateLedgerPrice, roomID.String(), dateValue(date), price.String())
	if err != nil {
		return 0, storeFailure(errorSubjectLedger, errorCodeUpdate, err)
	}
	return tag.RowsAffected(), nil
}

func (store *Store) LatestLedgerDate(ctx context.Context, roomID booking.RoomID) (booking.Date, bool, error) {
	var latest *time.Time
	if err := store.db.QueryRow(ctx, sqlLatestLedgerDate, roomID.String()).Scan(&latest); err != nil {
		return booking.Date{}, false, storeFailure(errorSubjectLedger, errorCodeGet, err)
	}
	if latest == nil {
		return booking.Date{}, false, nil
	}
	return fromDateValue(*latest), true, nil
}

func (store *Store) DeleteLedgerEntries(ctx context.Context, roomID booking.RoomID) error {
	if _, err := store.db.Exec(ctx, sqlDeleteLedgerEntries, roomID.String()); err != nil {
		return storeFailure(errorSubjectLedger, errorCodeDelete, err)
	}
	return nil
}

func scanLedgerEntry(row pgx.Row) (booking.LedgerEntry, error) {
	var (
		entryID    string
		roomIDText string
		day        time.Time
		priceText  string
		available  bool
	)
	if err := row.Scan(&entryID, &roomIDText, &day, &priceText, &available); err != nil {
		return booking.LedgerEntry{}, err
	}
	roomID, err := booking.NewRoomID(roomIDText)
	if err != nil {
		return booking.LedgerEntry{}, err
	}
	price, err := parsePrice(priceText)
	if err != nil {
		return booking.LedgerEntry{}, err
	}
	return booking.LedgerEntry{
		ID:        entryID,
		RoomID:    roomID,
		Date:      fromDateValue(day),
		Price:     price,
		Available: available,
	}, nil
}
