package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	errorOperationStore        = "store"
	errorSubjectBooking        = "booking"
	errorSubjectBookingRoom    = "booking_room"
	errorSubjectCart           = "cart"
	errorSubjectCartRoom       = "cart_room"
	errorSubjectLedger         = "ledger"
	errorSubjectRoom           = "room"
	errorSubjectSchema         = "schema"
	errorSubjectTransaction    = "transaction"
	errorCodeBegin             = "begin"
	errorCodeCommit            = "commit"
	errorCodeCount             = "count"
	errorCodeCreate            = "create"
	errorCodeDelete            = "delete"
	errorCodeDuplicate         = "duplicate"
	errorCodeGet               = "get"
	errorCodeInsert            = "insert"
	errorCodeInvalid           = "invalid"
	errorCodeList              = "list"
	errorCodeLock              = "lock"
	errorCodeMigrate           = "migrate"
	errorCodeSum               = "sum"
	errorCodeUpdate            = "update"

	sqlInsertRoom = `
		insert into rooms(room_id, hotel_id, base_price, created_at)
		values($1, $2, $3::numeric, now())
	`

	sqlSelectRoom = `
		select room_id, hotel_id, base_price::text
		from rooms
		where room_id = $1
	`

	sqlSelectRoomForUpdate = sqlSelectRoom + ` for update`

	sqlListRooms = `
		select room_id, hotel_id, base_price::text
		from rooms
		order by room_id
	`

	sqlDeleteRoom = `delete from rooms where room_id = $1`

	sqlCountRoomBookings = `select count(*) from booking_rooms where room_id = $1`
)

//go:embed schema.sql
var schemaSQL string

// querier is the subset shared by the pool and an open transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements booking.Store using a pgx connection pool, or an open transaction when pool is nil.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return wrapStoreError(errorSubjectSchema, errorCodeMigrate, err)
	}
	return nil
}

// WithTx runs fn in a read-committed transaction. Mutual exclusion comes from row locks taken by fn.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	if store.pool == nil {
		return fn(ctx, store)
	}
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return storeFailure(errorSubjectTransaction, errorCodeBegin, err)
	}
	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		if isTransient(err) && !errors.Is(err, booking.ErrTransientConflict) {
			return storeFailure(errorSubjectTransaction, errorCodeCommit, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return storeFailure(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *Store) CreateRoom(ctx context.Context, room booking.Room) error {
	_, err := store.db.Exec(ctx, sqlInsertRoom, room.ID.String(), room.HotelID.String(), room.BasePrice.String())
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectRoom, errorCodeDuplicate, booking.ErrRoomExists)
	}
	if err != nil {
		return storeFailure(errorSubjectRoom, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetRoom(ctx context.Context, roomID booking.RoomID) (booking.Room, error) {
	return store.findRoom(ctx, sqlSelectRoom, roomID)
}

func (store *Store) LockRoom(ctx context.Context, roomID booking.RoomID) (booking.Room, error) {
	return store.findRoom(ctx, sqlSelectRoomForUpdate, roomID)
}

func (store *Store) findRoom(ctx context.Context, query string, roomID booking.RoomID) (booking.Room, error) {
	room, err := scanRoom(store.db.QueryRow(ctx, query, roomID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, booking.ErrRoomNotFound)
	}
	if err != nil {
		return booking.Room{}, storeFailure(errorSubjectRoom, errorCodeGet, err)
	}
	return room, nil
}

func (store *Store) ListRooms(ctx context.Context) ([]booking.Room, error) {
	rows, err := store.db.Query(ctx, sqlListRooms)
	if err != nil {
		return nil, storeFailure(errorSubjectRoom, errorCodeList, err)
	}
	defer rows.Close()
	rooms := []booking.Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure(errorSubjectRoom, errorCodeList, err)
	}
	return rooms, nil
}

func (store *Store) DeleteRoom(ctx context.Context, roomID booking.RoomID) error {
	tag, err := store.db.Exec(ctx, sqlDeleteRoom, roomID.String())
	if err != nil {
		return storeFailure(errorSubjectRoom, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectRoom, errorCodeDelete, booking.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) CountRoomBookings(ctx context.Context, roomID booking.RoomID) (int64, error) {
	var count int64
	if err := store.db.QueryRow(ctx, sqlCountRoomBookings, roomID.String()).Scan(&count); err != nil {
		return 0, storeFailure(errorSubjectBookingRoom, errorCodeCount, err)
	}
	return count, nil
}

func scanRoom(row pgx.Row) (booking.Room, error) {
	var roomIDValue, hotelIDValue, basePriceValue string
	if err := row.Scan(&roomIDValue, &hotelIDValue, &basePriceValue); err != nil {
		return booking.Room{}, err
	}
	roomID, err := booking.NewRoomID(roomIDValue)
	if err != nil {
		return booking.Room{}, err
	}
	hotelID, err := booking.NewHotelID(hotelIDValue)
	if err != nil {
		return booking.Room{}, err
	}
	basePrice, err := parsePrice(basePriceValue)
	if err != nil {
		return booking.Room{}, err
	}
	return booking.Room{ID: roomID, HotelID: hotelID, BasePrice: basePrice}, nil
}

func parsePrice(raw string) (booking.Price, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return booking.Price{}, fmt.Errorf("%w: %v", booking.ErrInvalidPrice, err)
	}
	return booking.NewPrice(amount)
}

func dateValue(date booking.Date) time.Time {
	return date.Time()
}

func fromDateValue(value time.Time) booking.Date {
	return booking.DateOf(value.UTC())
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

// storeFailure wraps a driver error, marking serialization and deadlock failures as transient.
func storeFailure(subject string, code string, err error) error {
	if isTransient(err) {
		return wrapStoreError(subject, code, fmt.Errorf("%w: %w", booking.ErrTransientConflict, err))
	}
	return wrapStoreError(subject, code, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	return false
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailureCode || pgErr.Code == pgDeadlockDetectedCode
	}
	return false
}
