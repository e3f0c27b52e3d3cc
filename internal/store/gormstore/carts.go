package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockUserCarts upserts the user's cart_owners row and locks it until the transaction ends.
func (store *Store) LockUserCarts(ctx context.Context, userID booking.UserID) error {
	owner := CartOwner{UserID: userID.String()}
	err := store.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&owner).Error
	if err != nil {
		return storeFailure(errorSubjectCart, errorCodeLock, err)
	}
	err = store.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", owner.UserID).
		Take(&owner).Error
	if err != nil {
		return storeFailure(errorSubjectCart, errorCodeLock, err)
	}
	return nil
}

func (store *Store) CountCarts(ctx context.Context, userID booking.UserID) (int64, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&CartBooking{}).Where("user_id = ?", userID.String()).Count(&count).Error
	if err != nil {
		return 0, storeFailure(errorSubjectCart, errorCodeCount, err)
	}
	return count, nil
}

func (store *Store) InsertCart(ctx context.Context, input booking.CartBooking) (booking.CartBooking, error) {
	model := CartBooking{
		UserID:          input.UserID.String(),
		CheckIn:         dateValue(input.Stay.CheckIn()),
		CheckOut:        dateValue(input.Stay.CheckOut()),
		SpecialRequests: input.SpecialRequests,
		Adults:          input.Guests.Adults(),
		Children:        input.Guests.Children(),
		CreatedAt:       input.CreatedAt.UTC(),
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return booking.CartBooking{}, storeFailure(errorSubjectCart, errorCodeInsert, err)
	}
	links := make([]CartRoom, 0, len(input.Rooms))
	for _, link := range input.Rooms {
		links = append(links, CartRoom{CartID: model.CartID, RoomID: link.RoomID.String()})
	}
	if len(links) > 0 {
		err := store.db.WithContext(ctx).Create(&links).Error
		if isUniqueViolation(err) {
			return booking.CartBooking{}, wrapStoreError(errorSubjectCartRoom, errorCodeDuplicate, booking.ErrRoomAlreadyInCart)
		}
		if err != nil {
			return booking.CartBooking{}, storeFailure(errorSubjectCartRoom, errorCodeInsert, err)
		}
	}
	created, err := mapCart(model, links)
	if err != nil {
		return booking.CartBooking{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	return created, nil
}

func (store *Store) GetCart(ctx context.Context, cartID booking.CartID) (booking.CartBooking, error) {
	var model CartBooking
	err := store.db.WithContext(ctx).Where("cart_id = ?", cartID.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return booking.CartBooking{}, wrapStoreError(errorSubjectCart, errorCodeGet, booking.ErrCartNotFound)
	}
	if err != nil {
		return booking.CartBooking{}, storeFailure(errorSubjectCart, errorCodeGet, err)
	}
	links, err := store.cartLinks(ctx, []string{model.CartID})
	if err != nil {
		return booking.CartBooking{}, err
	}
	cart, err := mapCart(model, links[model.CartID])
	if err != nil {
		return booking.CartBooking{}, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
	}
	return cart, nil
}

func (store *Store) ListCarts(ctx context.Context, userID booking.UserID) ([]booking.CartBooking, error) {
	var rows []CartBooking
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("created_at").
		Order("cart_id").
		Find(&rows).Error
	if err != nil {
		return nil, storeFailure(errorSubjectCart, errorCodeList, err)
	}
	carts := make([]booking.CartBooking, 0, len(rows))
	if len(rows) == 0 {
		return carts, nil
	}
	cartIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		cartIDs = append(cartIDs, row.CartID)
	}
	links, err := store.cartLinks(ctx, cartIDs)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		cart, err := mapCart(row, links[row.CartID])
		if err != nil {
			return nil, wrapStoreError(errorSubjectCart, errorCodeInvalid, err)
		}
		carts = append(carts, cart)
	}
	return carts, nil
}

func (store *Store) cartLinks(ctx context.Context, cartIDs []string) (map[string][]CartRoom, error) {
	var rows []CartRoom
	err := store.db.WithContext(ctx).
		Where("cart_id IN ?", cartIDs).
		Order("room_id").
		Find(&rows).Error
	if err != nil {
		return nil, storeFailure(errorSubjectCartRoom, errorCodeList, err)
	}
	grouped := make(map[string][]CartRoom, len(cartIDs))
	for _, row := range rows {
		grouped[row.CartID] = append(grouped[row.CartID], row)
	}
	return grouped, nil
}

func (store *Store) DeleteCart(ctx context.Context, cartID booking.CartID) error {
	err := store.db.WithContext(ctx).Where("cart_id = ?", cartID.String()).Delete(&CartRoom{}).Error
	if err != nil {
		return storeFailure(errorSubjectCartRoom, errorCodeDelete, err)
	}
	result := store.db.WithContext(ctx).Where("cart_id = ?", cartID.String()).Delete(&CartBooking{})
	if result.Error != nil {
		return storeFailure(errorSubjectCart, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCart, errorCodeDelete, booking.ErrCartNotFound)
	}
	return nil
}

func (store *Store) InsertCartRoom(ctx context.Context, link booking.CartRoom) (booking.CartRoom, error) {
	model := CartRoom{CartID: link.CartID.String(), RoomID: link.RoomID.String()}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err) {
		return booking.CartRoom{}, wrapStoreError(errorSubjectCartRoom, errorCodeDuplicate, booking.ErrRoomAlreadyInCart)
	}
	if err != nil {
		return booking.CartRoom{}, storeFailure(errorSubjectCartRoom, errorCodeInsert, err)
	}
	created, err := mapCartRoom(model)
	if err != nil {
		return booking.CartRoom{}, wrapStoreError(errorSubjectCartRoom, errorCodeInvalid, err)
	}
	return created, nil
}

func (store *Store) DeleteCartRoom(ctx context.Context, cartID booking.CartID, roomID booking.RoomID) error {
	result := store.db.WithContext(ctx).
		Where("cart_id = ? AND room_id = ?", cartID.String(), roomID.String()).
		Delete(&CartRoom{})
	if result.Error != nil {
		return storeFailure(errorSubjectCartRoom, errorCodeDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCartRoom, errorCodeDelete, booking.ErrCartRoomNotFound)
	}
	return nil
}

func (store *Store) DeleteCartRoomsForRoom(ctx context.Context, roomID booking.RoomID) error {
	err := store.db.WithContext(ctx).Where("room_id = ?", roomID.String()).Delete(&CartRoom{}).Error
	if err != nil {
		return storeFailure(errorSubjectCartRoom, errorCodeDelete, err)
	}
	return nil
}

func mapCart(row CartBooking, links []CartRoom) (booking.CartBooking, error) {
	cartID, err := booking.NewCartID(row.CartID)
	if err != nil {
		return booking.CartBooking{}, err
	}
	userID, err := booking.NewUserID(row.UserID)
	if err != nil {
		return booking.CartBooking{}, err
	}
	stay, err := booking.NewStayRange(fromDateValue(row.CheckIn), fromDateValue(row.CheckOut))
	if err != nil {
		return booking.CartBooking{}, err
	}
	guests, err := booking.NewGuestCount(row.Adults, row.Children)
	if err != nil {
		return booking.CartBooking{}, err
	}
	rooms := make([]booking.CartRoom, 0, len(links))
	for _, link := range links {
		mapped, err := mapCartRoom(link)
		if err != nil {
			return booking.CartBooking{}, err
		}
		rooms = append(rooms, mapped)
	}
	return booking.CartBooking{
		ID:              cartID,
		UserID:          userID,
		Stay:            stay,
		SpecialRequests: row.SpecialRequests,
		Guests:          guests,
		CreatedAt:       row.CreatedAt.UTC(),
		Rooms:           rooms,
	}, nil
}

func mapCartRoom(row CartRoom) (booking.CartRoom, error) {
	cartID, err := booking.NewCartID(row.CartID)
	if err != nil {
		return booking.CartRoom{}, err
	}
	roomID, err := booking.NewRoomID(row.RoomID)
	if err != nil {
		return booking.CartRoom{}, err
	}
	return booking.CartRoom{ID: row.CartRoomID, CartID: cartID, RoomID: roomID}, nil
}
