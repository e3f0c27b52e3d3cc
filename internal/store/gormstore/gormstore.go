package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode      = "23505"
	pgSerializationFailureCode = "40001"
	pgDeadlockDetectedCode     = "40P01"
	mysqlDuplicateEntryCode    = 1062
	mysqlLockWaitTimeoutCode   = 1205
	mysqlDeadlockCode          = 1213
	sqliteBusyCode             = 5
	sqliteLockedCode           = 6
	sqliteConstraintCode       = 19
	insertBatchSize            = 200
	errorOperationStore        = "store"
	errorSubjectBooking        = "booking"
	errorSubjectBookingRoom    = "booking_room"
	errorSubjectCart           = "cart"
	errorSubjectCartRoom       = "cart_room"
	errorSubjectLedger         = "ledger"
	errorSubjectRoom           = "room"
	errorSubjectTx             = "tx"
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
	errorCodeSum               = "sum"
	errorCodeUpdate            = "update"
)

// Store implements booking.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates every table the store uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore booking.Store) error) error {
	err := store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
	if err != nil && isTransient(err) && !errors.Is(err, booking.ErrTransientConflict) {
		return storeFailure(errorSubjectTx, errorCodeCommit, err)
	}
	return err
}

func (store *Store) CreateRoom(ctx context.Context, room booking.Room) error {
	model := Room{
		RoomID:    room.ID.String(),
		HotelID:   room.HotelID.String(),
		BasePrice: room.BasePrice.Decimal(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return wrapStoreError(errorSubjectRoom, errorCodeDuplicate, booking.ErrRoomExists)
	}
	if err != nil {
		return storeFailure(errorSubjectRoom, errorCodeCreate, err)
	}
	return nil
}

func (store *Store) GetRoom(ctx context.Context, roomID booking.RoomID) (booking.Room, error) {
	return store.findRoom(store.db.WithContext(ctx), roomID)
}

func (store *Store) LockRoom(ctx context.Context, roomID booking.RoomID) (booking.Room, error) {
	return store.findRoom(store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), roomID)
}

func (store *Store) findRoom(query *gorm.DB, roomID booking.RoomID) (booking.Room, error) {
	var model Room
	err := query.Where("room_id = ?", roomID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeGet, booking.ErrRoomNotFound)
	}
	if err != nil {
		return booking.Room{}, storeFailure(errorSubjectRoom, errorCodeGet, err)
	}
	room, err := mapRoom(model)
	if err != nil {
		return booking.Room{}, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
	}
	return room, nil
}

func (store *Store) ListRooms(ctx context.Context) ([]booking.Room, error) {
	var rows []Room
	if err := store.db.WithContext(ctx).Order("room_id").Find(&rows).Error; err != nil {
		return nil, storeFailure(errorSubjectRoom, errorCodeList, err)
	}
	rooms := make([]booking.Room, 0, len(rows))
	for _, row := range rows {
		room, err := mapRoom(row)
		if err != nil {
			return nil, wrapStoreError(errorSubjectRoom, errorCodeInvalid, err)
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (store *Store) DeleteRoom(ctx context.Context, roomID booking.RoomID) error {
	result := store.db.WithContext(ctx).Where("room_id = ?", roomID.String()).Delete(&Room{})
	if result.Error != nil {
		return storeFailure(errorSubjectRoom, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectRoom, errorCodeDelete, booking.ErrRoomNotFound)
	}
	return nil
}

func (store *Store) CountRoomBookings(ctx context.Context, roomID booking.RoomID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&BookingRoom{}).Where("room_id = ?", roomID.String()).Count(&count).Error
	if err != nil {
		return 0, storeFailure(errorSubjectBookingRoom, errorCodeCount, err)
	}
	return count, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return booking.WrapError(errorOperationStore, subject, code, err)
}

// storeFailure wraps a driver error, marking serialization, deadlock, and busy failures as transient.
func storeFailure(subject string, code string, err error) error {
	if isTransient(err) {
		return wrapStoreError(subject, code, fmt.Errorf("%w: %w", booking.ErrTransientConflict, err))
	}
	return wrapStoreError(subject, code, err)
}

type sqlSum struct {
	Total decimal.Decimal
}

func dateValue(date booking.Date) datatypes.Date {
	return datatypes.Date(date.Time())
}

func fromDateValue(value datatypes.Date) booking.Date {
	return booking.DateOf(time.Time(value).UTC())
}

func mapRoom(row Room) (booking.Room, error) {
	roomID, err := booking.NewRoomID(row.RoomID)
	if err != nil {
		return booking.Room{}, err
	}
	hotelID, err := booking.NewHotelID(row.HotelID)
	if err != nil {
		return booking.Room{}, err
	}
	basePrice, err := booking.NewPrice(row.BasePrice)
	if err != nil {
		return booking.Room{}, err
	}
	return booking.Room{ID: roomID, HotelID: hotelID, BasePrice: basePrice}, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDuplicateEntryCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailureCode || pgErr.Code == pgDeadlockDetectedCode
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlDeadlockCode || mysqlErr.Number == mysqlLockWaitTimeoutCode
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		primary := sqliteErr.Code() & 0xFF
		return primary == sqliteBusyCode || primary == sqliteLockedCode
	}
	return false
}
