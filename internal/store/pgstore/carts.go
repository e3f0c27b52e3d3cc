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
	sqlLockUserCarts = `select pg_advisory_xact_lock(hashtext($1))`

	sqlCountCarts = `select count(*) from cart_bookings where user_id = $1`

	sqlInsertCart = `
		insert into cart_bookings(cart_id, user_id, check_in, check_out, special_requests, adults, children, created_at)
		values($1, $2, $3, $4, $5, $6, $7, $8)
	`

	sqlInsertCartRoom = `insert into cart_rooms(cart_room_id, cart_id, room_id) values($1, $2, $3)`

	cartColumns = `cart_id, user_id, check_in, check_out, special_requests, adults, children, created_at`

	sqlSelectCart = `select ` + cartColumns + ` from cart_bookings where cart_id = $1`

	sqlListCarts = `select ` + cartColumns + ` from cart_bookings where user_id = $1 order by created_at, cart_id`

	sqlSelectCartLinks = `
		select cart_room_id, cart_id, room_id
		from cart_rooms
		where cart_id = any($1)
		order by room_id
	`

	sqlDeleteCartLinks = `delete from cart_rooms where cart_id = $1`

	sqlDeleteCart = `delete from cart_bookings where cart_id = $1`

	sqlDeleteCartRoom = `delete from cart_rooms where cart_id = $1 and room_id = $2`

	sqlDeleteCartRoomsForRoom = `delete from cart_rooms where room_id = $1`
)

// LockUserCarts takes a transaction-scoped advisory lock keyed by the user id.
func (store *Store) LockUserCarts(ctx context.Context, userID booking.UserID) error {
	if _, err := store.db.Exec(ctx, sqlLockUserCarts, userID.String()); err != nil {
		return storeFailure(errorSubjectCart, errorCodeLock, err)
	}
	return nil
}

func (store *Store) CountCarts(ctx context.Context, userID booking.UserID) (int64, error) {
	var count int64
	if err := store.db.QueryRow(ctx, sqlCountCarts, userID.String()).Scan(&count); err != nil {
		return 0, storeFailure(errorSubjectCart, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) InsertCart(ctx context.Context, input booking.CartBooking) (booking.CartBooking, error) {
	cartIDValue := uuid.NewString()
	createdAt := input.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := store.db.Exec(ctx, sqlInsertCart,
		cartIDValue,
		input.UserID.String(),
		dateValue(input.Stay.CheckIn()),
		dateValue(input.Stay.CheckOut()),
		input.SpecialRequests,
		input.Guests.Adults(),
		input.Guests.Children(),
		createdAt,
	)
	if err != nil {
		return booking.CartBooking{}, storeFailure(errorSubjectCart, errorCodeInsert, err)
	}
	cartID, err := booking.NewCartID(cartIDValue)
	if err != nil {
		return booking.CartBooking{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	created := input
	created.ID = cartID
	created.CreatedAt = createdAt
	created.Rooms = make([]booking.CartRoom, 0, len(input.Rooms))
	for _, link := range input.Rooms {
		link.CartID = cartID
		inserted, err := store.InsertCartRoom(ctx, link)
		if err != nil {
			return booking.CartBooking{}, err
		}
		created.Rooms = append(created.Rooms, inserted)
	}
	return created, nil
}

func (store *Store) GetCart(ctx context.Context, cartID booking.CartID) (booking.CartBooking, error) {
	cart, err := scanCart(store.db.QueryRow(ctx, sqlSelectCart, cartID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.CartBooking{}, wrapStoreError(errorSubjectCart, errorCodeGet, booking.ErrCartNotFound)
	}
	if err != nil {
		return booking.CartBooking{}, storeFailure(errorSubjectCart, errorCodeGet, err)
	}
	links, err := store.cartLinks(ctx, []string{cart.ID.String()})
	if err != nil {
		return booking.CartBooking{}, err
	}
	cart.Rooms = links[cart.ID]
	return cart, nil
}

func (store *Store) ListCarts(ctx context.Context, userID booking.UserID) ([]booking.CartBooking, error) {
	rows, err := store.db.Query(ctx, sqlListCarts, userID.String())
	if err != nil {
		return nil, storeFailure(errorSubjectCart, errorCodeList, err)
	}
	carts := []booking.CartBooking{}
	for rows.Next() {
		cart, err := scanCart(rows)
		if err != nil {
			rows.Close()
			return nil, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
		}
		carts = append(carts, cart)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeFailure(errorSubjectCart, errorCodeList, err)
	}
	if len(carts) == 0 {
		return carts, nil
	}
	cartIDs := make([]string, 0, len(carts))
	for _, cart := range carts {
		cartIDs = append(cartIDs, cart.ID.String())
	}
	links, err := store.cartLinks(ctx, cartIDs)
	if err != nil {
		return nil, err
	}
	for index := range carts {
		carts[index].Rooms = links[carts[index].ID]
	}
	return carts, nil
}

func (store *Store) cartLinks(ctx context.Context, cartIDs []string) (map[booking.CartID][]booking.CartRoom, error) {
	rows, err := store.db.Query(ctx, sqlSelectCartLinks, cartIDs)
	if err != nil {
		return nil, storeFailure(errorSubjectCartRoom, errorCodeList, err)
	}
	defer rows.Close()
	grouped := make(map[booking.CartID][]booking.CartRoom, len(cartIDs))
	for rows.Next() {
		link, err := scanCartRoom(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectCartRoom, errorCodeInvalid, err)
		}
		grouped[link.CartID] = append(grouped[link.CartID], link)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure(errorSubjectCartRoom, errorCodeList, err)
	}
	return grouped, nil
}

func (store *Store) DeleteCart(ctx context.Context, cartID booking.CartID) error {
	if _, err := store.db.Exec(ctx, sqlDeleteCartLinks, cartID.String()); err != nil {
		return storeFailure(errorSubjectCartRoom, errorCodeDelete, err)
	}
	tag, err := store.db.Exec(ctx, sqlDeleteCart, cartID.String())
	if err != nil {
		return storeFailure(errorSubjectCart, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, booking.ErrCartNotFound)
	}
	return nil
}

func (store *Store) InsertCartRoom(ctx context.Context, link booking.CartRoom) (booking.CartRoom, error) {
	link.ID = uuid.NewString()
	_, err := store.db.Exec(ctx, sqlInsertCartRoom, link.ID, link.CartID.String(), link.RoomID.String())
	if isUniqueViolation(err) {
		return booking.CartRoom{}, wrapStoreError(errorSubjectCartRoom, errorCodeDuplicate, booking.ErrRoomAlreadyInCart)
	}
	if err != nil {
		return booking.CartRoom{}, storeFailure(errorSubjectCartRoom, errorCodeInsert, err)
	}
	return link, nil
}

func (store *Store) DeleteCartRoom(ctx context.Context, cartID booking.CartID, roomID booking.RoomID) error {
	tag, err := store.db.Exec(ctx, sqlDeleteCartRoom, cartID.String(), roomID.String())
	if err != nil {
		return storeFailure(errorSubjectCartRoom, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCartRoom, errorCodeDelete, booking.ErrCartRoomNotFound)
	}
	return nil
}

func (store *Store) DeleteCartRoomsForRoom(ctx context.Context, roomID booking.RoomID) error {
	if _, err := store.db.Exec(ctx, sqlDeleteCartRoomsForRoom, roomID.String()); err != nil {
		return storeFailure(errorSubjectCartRoom, errorCodeDelete, err)
	}
	return nil
}

func scanCart(row pgx.Row) (booking.CartBooking, error) {
	var (
		cartIDValue     string
		userIDValue     string
		checkIn         time.Time
		checkOut        time.Time
		specialRequests string
		adults          int
		children        int
		createdAt       time.Time
	)
	if err := row.Scan(&cartIDValue, &userIDValue, &checkIn, &checkOut, &specialRequests, &adults, &children, &createdAt); err != nil {
		return booking.CartBooking{}, err
	}
	cartID, err := booking.NewCartID(cartIDValue)
	if err != nil {
		return booking.CartBooking{}, err
	}
	userID, err := booking.NewUserID(userIDValue)
	if err != nil {
		return booking.CartBooking{}, err
	}
	stay, err := booking.NewStayRange(fromDateValue(checkIn), fromDateValue(checkOut))
	if err != nil {
		return booking.CartBooking{}, err
	}
	guests, err := booking.NewGuestCount(adults, children)
	if err != nil {
		return booking.CartBooking{}, err
	}
	return booking.CartBooking{
		ID:              cartID,
		UserID:          userID,
		Stay:            stay,
		SpecialRequests: specialRequests,
		Guests:          guests,
		CreatedAt:       createdAt.UTC(),
		Rooms:           []booking.CartRoom{},
	}, nil
}

func scanCartRoom(row pgx.Row) (booking.CartRoom, error) {
	var linkID, cartIDValue, roomIDValue string
	if err := row.Scan(&linkID, &cartIDValue, &roomIDValue); err != nil {
		return booking.CartRoom{}, err
	}
	cartID, err := booking.NewCartID(cartIDValue)
	if err != nil {
		return booking.CartRoom{}, err
	}
	roomID, err := booking.NewRoomID(roomIDValue)
	if err != nil {
		return booking.CartRoom{}, err
	}
	return booking.CartRoom{ID: linkID, CartID: cartID, RoomID: roomID}, nil
}
