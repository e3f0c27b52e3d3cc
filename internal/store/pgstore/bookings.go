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
	sqlConfirmationNumberExists = `select exists(select 1 from bookings where confirmation_number = $1)`

	sqlInsertBooking = `
		insert into bookings(
			booking_id, user_id, hotel_id, check_in, check_out, total_price,
			special_requests, booked_at, paid, confirmation_number, adults, children
		)
		values($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12)
	`

	sqlInsertBookingRoom = `insert into booking_rooms(link_id, booking_id, room_id) values($1, $2, $3)`

	bookingColumns = `
		booking_id, user_id, hotel_id, check_in, check_out, total_price::text,
		special_requests, booked_at, paid, confirmation_number, adults, children
	`

	sqlSelectBooking = `select ` + bookingColumns + ` from bookings where booking_id = $1`

	sqlSelectBookingForUpdate = sqlSelectBooking + ` for update`

	sqlSelectBookingLinks = `
		select link_id, booking_id, room_id
		from booking_rooms
		where booking_id = any($1)
		order by room_id
	`

	sqlSelectBookingRoom = `select link_id, booking_id, room_id from booking_rooms where link_id = $1`

	sqlDeleteBookingLinks = `delete from booking_rooms where booking_id = $1`

	sqlDeleteBooking = `delete from bookings where booking_id = $1`

	sqlDeleteBookingRoom = `delete from booking_rooms where link_id = $1`

	sqlUpdateBookingTotal = `update bookings set total_price = $2::numeric where booking_id = $1`

	sqlMarkBookingPaid = `update bookings set paid = true where booking_id = $1`

	sqlListUserBookings = `select ` + bookingColumns + `
		from bookings
		where user_id = $1
		and (
			$2::text = 'all'
			or ($2::text = 'previous' and check_in <= $3)
			or ($2::text = 'upcoming' and check_in > $3)
		)
		order by check_in desc, booking_id
		limit $4 offset $5
	`
)

func (store *Store) ConfirmationNumberExists(ctx context.Context, number booking.ConfirmationNumber) (bool, error) {
	var exists bool
	if err := store.db.QueryRow(ctx, sqlConfirmationNumberExists, number.Int64()).Scan(&exists); err != nil {
		return false, storeFailure(errorSubjectBooking, errorCodeGet, err)
	}
	return exists, nil
}

func (store *Store) InsertBooking(ctx context.Context, input booking.Booking) (booking.Booking, error) {
	bookingIDValue := uuid.NewString()
	bookedAt := input.BookedAt.UTC()
	if bookedAt.IsZero() {
		bookedAt = time.Now().UTC()
	}
	_, err := store.db.Exec(ctx, sqlInsertBooking,
		bookingIDValue,
		input.UserID.String(),
		input.HotelID.String(),
		dateValue(input.Stay.CheckIn()),
		dateValue(input.Stay.CheckOut()),
		input.TotalPrice.String(),
		input.SpecialRequests,
		bookedAt,
		input.Paid,
		input.ConfirmationNumber.Int64(),
		input.Guests.Adults(),
		input.Guests.Children(),
	)
	if isUniqueViolation(err) {
		// A concurrent booking claimed the same confirmation number.
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeDuplicate, booking.ErrTransientConflict)
	}
	if err != nil {
		return booking.Booking{}, storeFailure(errorSubjectBooking, errorCodeInsert, err)
	}
	bookingID, err := booking.NewBookingID(bookingIDValue)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	created := input
	created.ID = bookingID
	created.BookedAt = bookedAt
	created.Rooms = make([]booking.BookingRoom, 0, len(input.Rooms))
	for _, link := range input.Rooms {
		link.BookingID = bookingID
		inserted, err := store.InsertBookingRoom(ctx, link)
		if errors.Is(err, booking.ErrRoomAlreadyInBooking) {
			return booking.Booking{}, wrapStoreError(errorSubjectBookingRoom, errorCodeDuplicate, booking.ErrDuplicateRoom)
		}
		if err != nil {
			return booking.Booking{}, err
		}
		created.Rooms = append(created.Rooms, inserted)
	}
	return created, nil
}

func (store *Store) GetBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	return store.findBooking(ctx, sqlSelectBooking, bookingID)
}

func (store *Store) LockBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	return store.findBooking(ctx, sqlSelectBookingForUpdate, bookingID)
}

func (store *Store) findBooking(ctx context.Context, query string, bookingID booking.BookingID) (booking.Booking, error) {
	found, err := scanBooking(store.db.QueryRow(ctx, query, bookingID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrBookingNotFound)
	}
	if err != nil {
		return booking.Booking{}, storeFailure(errorSubjectBooking, errorCodeGet, err)
	}
	links, err := store.bookingLinks(ctx, []string{found.ID.String()})
	if err != nil {
		return booking.Booking{}, err
	}
	found.Rooms = links[found.ID]
	return found, nil
}

func (store *Store) bookingLinks(ctx context.Context, bookingIDs []string) (map[booking.BookingID][]booking.BookingRoom, error) {
	rows, err := store.db.Query(ctx, sqlSelectBookingLinks, bookingIDs)
	if err != nil {
		return nil, storeFailure(errorSubjectBookingRoom, errorCodeList, err)
	}
	defer rows.Close()
	grouped := make(map[booking.BookingID][]booking.BookingRoom, len(bookingIDs))
	for rows.Next() {
		link, err := scanBookingRoom(rows)
		if err != nil {
			return nil, wrapStoreError(errorSubjectBookingRoom, errorCodeInvalid, err)
		}
		grouped[link.BookingID] = append(grouped[link.BookingID], link)
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure(errorSubjectBookingRoom, errorCodeList, err)
	}
	return grouped, nil
}

func (store *Store) DeleteBooking(ctx context.Context, bookingID booking.BookingID) error {
	if _, err := store.db.Exec(ctx, sqlDeleteBookingLinks, bookingID.String()); err != nil {
		return storeFailure(errorSubjectBookingRoom, errorCodeDelete, err)
	}
	tag, err := store.db.Exec(ctx, sqlDeleteBooking, bookingID.String())
	if err != nil {
		return storeFailure(errorSubjectBooking, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeDelete, booking.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) InsertBookingRoom(ctx context.Context, link booking.BookingRoom) (booking.BookingRoom, error) {
	linkIDValue := uuid.NewString()
	_, err := store.db.Exec(ctx, sqlInsertBookingRoom, linkIDValue, link.BookingID.String(), link.RoomID.String())
	if isUniqueViolation(err) {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeDuplicate, booking.ErrRoomAlreadyInBooking)
	}
	if err != nil {
		return booking.BookingRoom{}, storeFailure(errorSubjectBookingRoom, errorCodeInsert, err)
	}
	linkID, err := booking.NewBookingRoomID(linkIDValue)
	if err != nil {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeInvalid, err)
	}
	link.ID = linkID
	return link, nil
}

func (store *Store) GetBookingRoom(ctx context.Context, linkID booking.BookingRoomID) (booking.BookingRoom, error) {
	link, err := scanBookingRoom(store.db.QueryRow(ctx, sqlSelectBookingRoom, linkID.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeGet, booking.ErrBookingRoomNotFound)
	}
	if err != nil {
		return booking.BookingRoom{}, storeFailure(errorSubjectBookingRoom, errorCodeGet, err)
	}
	return link, nil
}

func (store *Store) DeleteBookingRoom(ctx context.Context, linkID booking.BookingRoomID) error {
	tag, err := store.db.Exec(ctx, sqlDeleteBookingRoom, linkID.String())
	if err != nil {
		return storeFailure(errorSubjectBookingRoom, errorCodeDelete, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBookingRoom, errorCodeDelete, booking.ErrBookingRoomNotFound)
	}
	return nil
}

func (store *Store) UpdateBookingTotal(ctx context.Context, bookingID booking.BookingID, total booking.Price) error {
	return store.updateBooking(ctx, sqlUpdateBookingTotal, bookingID, total.String())
}

func (store *Store) MarkBookingPaid(ctx context.Context, bookingID booking.BookingID) error {
	return store.updateBooking(ctx, sqlMarkBookingPaid, bookingID)
}

func (store *Store) updateBooking(ctx context.Context, statement string, bookingID booking.BookingID, args ...any) error {
	tag, err := store.db.Exec(ctx, statement, append([]any{bookingID.String()}, args...)...)
	if err != nil {
		return storeFailure(errorSubjectBooking, errorCodeUpdate, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, booking.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) ListUserBookings(ctx context.Context, query booking.BookingQuery) ([]booking.Booking, error) {
	filter := query.Filter
	if filter == "" {
		filter = booking.BookingsAll
	}
	rows, err := store.db.Query(ctx, sqlListUserBookings,
		query.UserID.String(),
		string(filter),
		dateValue(query.Today),
		query.Page.Size(),
		query.Page.Offset(),
	)
	if err != nil {
		return nil, storeFailure(errorSubjectBooking, errorCodeList, err)
	}
	bookings := []booking.Booking{}
	for rows.Next() {
		item, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, item)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, storeFailure(errorSubjectBooking, errorCodeList, err)
	}
	if len(bookings) == 0 {
		return bookings, nil
	}
	bookingIDs := make([]string, 0, len(bookings))
	for _, item := range bookings {
		bookingIDs = append(bookingIDs, item.ID.String())
	}
	links, err := store.bookingLinks(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}
	for index := range bookings {
		bookings[index].Rooms = links[bookings[index].ID]
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (booking.Booking, error) {
	var (
		bookingIDValue     string
		userIDValue        string
		hotelIDValue       string
		checkIn            time.Time
		checkOut           time.Time
		totalValue         string
		specialRequests    string
		bookedAt           time.Time
		paid               bool
		confirmationNumber int64
		adults             int
		children           int
	)
	err := row.Scan(
		&bookingIDValue, &userIDValue, &hotelIDValue, &checkIn, &checkOut, &totalValue,
		&specialRequests, &bookedAt, &paid, &confirmationNumber, &adults, &children,
	)
	if err != nil {
		return booking.Booking{}, err
	}
	bookingID, err := booking.NewBookingID(bookingIDValue)
	if err != nil {
		return booking.Booking{}, err
	}
	userID, err := booking.NewUserID(userIDValue)
	if err != nil {
		return booking.Booking{}, err
	}
	hotelID, err := booking.NewHotelID(hotelIDValue)
	if err != nil {
		return booking.Booking{}, err
	}
	stay, err := booking.NewStayRange(fromDateValue(checkIn), fromDateValue(checkOut))
	if err != nil {
		return booking.Booking{}, err
	}
	total, err := parsePrice(totalValue)
	if err != nil {
		return booking.Booking{}, err
	}
	number, err := booking.NewConfirmationNumber(confirmationNumber)
	if err != nil {
		return booking.Booking{}, err
	}
	guests, err := booking.NewGuestCount(adults, children)
	if err != nil {
		return booking.Booking{}, err
	}
	return booking.Booking{
		ID:                 bookingID,
		UserID:             userID,
		HotelID:            hotelID,
		Stay:               stay,
		TotalPrice:         total,
		SpecialRequests:    specialRequests,
		BookedAt:           bookedAt.UTC(),
		Paid:               paid,
		ConfirmationNumber: number,
		Guests:             guests,
		Rooms:              []booking.BookingRoom{},
	}, nil
}

func scanBookingRoom(row pgx.Row) (booking.BookingRoom, error) {
	var linkIDValue, bookingIDValue, roomIDValue string
	if err := row.Scan(&linkIDValue, &bookingIDValue, &roomIDValue); err != nil {
		return booking.BookingRoom{}, err
	}
	linkID, err := booking.NewBookingRoomID(linkIDValue)
	if err != nil {
		return booking.BookingRoom{}, err
	}
	bookingID, err := booking.NewBookingID(bookingIDValue)
	if err != nil {
		return booking.BookingRoom{}, err
	}
	roomID, err := booking.NewRoomID(roomIDValue)
	if err != nil {
		return booking.BookingRoom{}, err
	}
	return booking.BookingRoom{ID: linkID, BookingID: bookingID, RoomID: roomID}, nil
}
