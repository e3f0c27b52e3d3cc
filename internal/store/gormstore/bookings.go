package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (store *Store) ConfirmationNumberExists(ctx context.Context, number booking.ConfirmationNumber) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("confirmation_number = ?", number.Int64()).
		Count(&count).Error
	if err != nil {
		return false, storeFailure(errorSubjectBooking, errorCodeCount, err)
	}
	return count > 0, nil
}

func (store *Store) InsertBooking(ctx context.Context, input booking.Booking) (booking.Booking, error) {
	model := Booking{
		UserID:             input.UserID.String(),
		HotelID:            input.HotelID.String(),
		CheckIn:            dateValue(input.Stay.CheckIn()),
		CheckOut:           dateValue(input.Stay.CheckOut()),
		TotalPrice:         input.TotalPrice.Decimal(),
		SpecialRequests:    input.SpecialRequests,
		BookedAt:           input.BookedAt.UTC(),
		Paid:               input.Paid,
		ConfirmationNumber: input.ConfirmationNumber.Int64(),
		Adults:             input.Guests.Adults(),
		Children:           input.Guests.Children(),
	}
	if model.BookedAt.IsZero() {
		model.BookedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		// A concurrent booking claimed the same confirmation number.
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeDuplicate, booking.ErrTransientConflict)
	}
	if err != nil {
		return booking.Booking{}, storeFailure(errorSubjectBooking, errorCodeInsert, err)
	}
	links := make([]BookingRoom, 0, len(input.Rooms))
	for _, link := range input.Rooms {
		links = append(links, BookingRoom{BookingID: model.BookingID, RoomID: link.RoomID.String()})
	}
	if len(links) > 0 {
		err = store.db.WithContext(ctx).Create(&links).Error
		if isUniqueViolation(err) {
			return booking.Booking{}, wrapStoreError(errorSubjectBookingRoom, errorCodeDuplicate, booking.ErrDuplicateRoom)
		}
		if err != nil {
			return booking.Booking{}, storeFailure(errorSubjectBookingRoom, errorCodeInsert, err)
		}
	}
	created, err := mapBooking(model, links)
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return created, nil
}

func (store *Store) GetBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	return store.findBooking(ctx, store.db.WithContext(ctx), bookingID)
}

func (store *Store) LockBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error) {
	return store.findBooking(ctx, store.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), bookingID)
}

func (store *Store) findBooking(ctx context.Context, query *gorm.DB, bookingID booking.BookingID) (booking.Booking, error) {
	var model Booking
	err := query.Where("booking_id = ?", bookingID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeGet, booking.ErrBookingNotFound)
	}
	if err != nil {
		return booking.Booking{}, storeFailure(errorSubjectBooking, errorCodeGet, err)
	}
	links, err := store.bookingLinks(ctx, []string{model.BookingID})
	if err != nil {
		return booking.Booking{}, err
	}
	found, err := mapBooking(model, links[model.BookingID])
	if err != nil {
		return booking.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
	}
	return found, nil
}

func (store *Store) bookingLinks(ctx context.Context, bookingIDs []string) (map[string][]BookingRoom, error) {
	var rows []BookingRoom
	err := store.db.WithContext(ctx).
		Where("booking_id IN ?", bookingIDs).
		Order("room_id").
		Find(&rows).Error
	if err != nil {
		return nil, storeFailure(errorSubjectBookingRoom, errorCodeList, err)
	}
	grouped := make(map[string][]BookingRoom, len(bookingIDs))
	for _, row := range rows {
		grouped[row.BookingID] = append(grouped[row.BookingID], row)
	}
	return grouped, nil
}

func (store *Store) DeleteBooking(ctx context.Context, bookingID booking.BookingID) error {
	err := store.db.WithContext(ctx).Where("booking_id = ?", bookingID.String()).Delete(&BookingRoom{}).Error
	if err != nil {
		return storeFailure(errorSubjectBookingRoom, errorCodeDelete, err)
	}
	result := store.db.WithContext(ctx).Where("booking_id = ?", bookingID.String()).Delete(&Booking{})
	if result.Error != nil {
		return storeFailure(errorSubjectBooking, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeDelete, booking.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) InsertBookingRoom(ctx context.Context, link booking.BookingRoom) (booking.BookingRoom, error) {
	model := BookingRoom{BookingID: link.BookingID.String(), RoomID: link.RoomID.String()}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeDuplicate, booking.ErrRoomAlreadyInBooking)
	}
	if err != nil {
		return booking.BookingRoom{}, storeFailure(errorSubjectBookingRoom, errorCodeInsert, err)
	}
	created, err := mapBookingRoom(model)
	if err != nil {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeInvalid, err)
	}
	return created, nil
}

func (store *Store) GetBookingRoom(ctx context.Context, linkID booking.BookingRoomID) (booking.BookingRoom, error) {
	var model BookingRoom
	err := store.db.WithContext(ctx).Where("link_id = ?", linkID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeGet, booking.ErrBookingRoomNotFound)
	}
	if err != nil {
		return booking.BookingRoom{}, storeFailure(errorSubjectBookingRoom, errorCodeGet, err)
	}
	link, err := mapBookingRoom(model)
	if err != nil {
		return booking.BookingRoom{}, wrapStoreError(errorSubjectBookingRoom, errorCodeInvalid, err)
	}
	return link, nil
}

func (store *Store) DeleteBookingRoom(ctx context.Context, linkID booking.BookingRoomID) error {
	result := store.db.WithContext(ctx).Where("link_id = ?", linkID.String()).Delete(&BookingRoom{})
	if result.Error != nil {
		return storeFailure(errorSubjectBookingRoom, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBookingRoom, errorCodeDelete, booking.ErrBookingRoomNotFound)
	}
	return nil
}

func (store *Store) UpdateBookingTotal(ctx context.Context, bookingID booking.BookingID, total booking.Price) error {
	return store.updateBooking(ctx, bookingID, "total_price", total.Decimal())
}

func (store *Store) MarkBookingPaid(ctx context.Context, bookingID booking.BookingID) error {
	return store.updateBooking(ctx, bookingID, "paid", true)
}

func (store *Store) updateBooking(ctx context.Context, bookingID booking.BookingID, column string, value any) error {
	result := store.db.WithContext(ctx).
		Model(&Booking{}).
		Where("booking_id = ?", bookingID.String()).
		Update(column, value)
	if result.Error != nil {
		return storeFailure(errorSubjectBooking, errorCodeUpdate, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectBooking, errorCodeUpdate, booking.ErrBookingNotFound)
	}
	return nil
}

func (store *Store) ListUserBookings(ctx context.Context, query booking.BookingQuery) ([]booking.Booking, error) {
	statement := store.db.WithContext(ctx).Where("user_id = ?", query.UserID.String())
	switch query.Filter {
	case booking.BookingsPrevious:
		statement = statement.Where("check_in <= ?", dateValue(query.Today))
	case booking.BookingsUpcoming:
		statement = statement.Where("check_in > ?", dateValue(query.Today))
	}
	var rows []Booking
	err := statement.
		Order("check_in DESC").
		Order("booking_id").
		Offset(query.Page.Offset()).
		Limit(query.Page.Size()).
		Find(&rows).Error
	if err != nil {
		return nil, storeFailure(errorSubjectBooking, errorCodeList, err)
	}
	if len(rows) == 0 {
		return []booking.Booking{}, nil
	}
	bookingIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		bookingIDs = append(bookingIDs, row.BookingID)
	}
	links, err := store.bookingLinks(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for _, row := range rows {
		mapped, err := mapBooking(row, links[row.BookingID])
		if err != nil {
			return nil, wrapStoreError(errorSubjectBooking, errorCodeInvalid, err)
		}
		bookings = append(bookings, mapped)
	}
	return bookings, nil
}

func mapBooking(row Booking, links []BookingRoom) (booking.Booking, error) {
	bookingID, err := booking.NewBookingID(row.BookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	userID, err := booking.NewUserID(row.UserID)
	if err != nil {
		return booking.Booking{}, err
	}
	hotelID, err := booking.NewHotelID(row.HotelID)
	if err != nil {
		return booking.Booking{}, err
	}
	stay, err := booking.NewStayRange(fromDateValue(row.CheckIn), fromDateValue(row.CheckOut))
	if err != nil {
		return booking.Booking{}, err
	}
	total, err := booking.NewPrice(row.TotalPrice)
	if err != nil {
		return booking.Booking{}, err
	}
	confirmationNumber, err := booking.NewConfirmationNumber(row.ConfirmationNumber)
	if err != nil {
		return booking.Booking{}, err
	}
	guests, err := booking.NewGuestCount(row.Adults, row.Children)
	if err != nil {
		return booking.Booking{}, err
	}
	rooms := make([]booking.BookingRoom, 0, len(links))
	for _, link := range links {
		mapped, err := mapBookingRoom(link)
		if err != nil {
			return booking.Booking{}, err
		}
		rooms = append(rooms, mapped)
	}
	return booking.Booking{
		ID:                 bookingID,
		UserID:             userID,
		HotelID:            hotelID,
		Stay:               stay,
		TotalPrice:         total,
		SpecialRequests:    row.SpecialRequests,
		BookedAt:           row.BookedAt.UTC(),
		Paid:               row.Paid,
		ConfirmationNumber: confirmationNumber,
		Guests:             guests,
		Rooms:              rooms,
	}, nil
}

func mapBookingRoom(row BookingRoom) (booking.BookingRoom, error) {
	linkID, err := booking.NewBookingRoomID(row.LinkID)
	if err != nil {
		return booking.BookingRoom{}, err
	}
	bookingID, err := booking.NewBookingID(row.BookingID)
	if err != nil {
		return booking.BookingRoom{}, err
	}
	roomID, err := booking.NewRoomID(row.RoomID)
	if err != nil {
		return booking.BookingRoom{}, err
	}
	return booking.BookingRoom{ID: linkID, BookingID: bookingID, RoomID: roomID}, nil
}
