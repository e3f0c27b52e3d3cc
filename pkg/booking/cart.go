package booking

import (
	"context"
	"fmt"
)

// AddCart stages a cart booking for the user. It never touches the ledger.
func (service *Service) AddCart(ctx context.Context, request CartRequest) (CartBooking, error) {
	startedAt := service.nowFn()
	var created CartBooking
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		if err := txStore.LockUserCarts(ctx, request.UserID()); err != nil {
			return err
		}
		count, err := txStore.CountCarts(ctx, request.UserID())
		if err != nil {
			return err
		}
		if count >= MaxCartBookings {
			return fmt.Errorf("%w: user %s holds %d carts", ErrCartLimitExceeded, request.UserID(), count)
		}
		links := make([]CartRoom, 0, len(request.RoomIDs()))
		for _, roomID := range request.RoomIDs() {
			if _, err := txStore.GetRoom(ctx, roomID); err != nil {
				return err
			}
			links = append(links, CartRoom{RoomID: roomID})
		}
		cart, err := txStore.InsertCart(ctx, CartBooking{
			UserID:          request.UserID(),
			Stay:            request.Stay(),
			SpecialRequests: request.SpecialRequests(),
			Guests:          request.Guests(),
			CreatedAt:       service.nowFn().UTC(),
			Rooms:           links,
		})
		if err != nil {
			return err
		}
		created = cart
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAddCart,
		UserID:    request.UserID(),
		CartID:    created.ID,
		RoomIDs:   request.RoomIDs(),
		Stay:      request.Stay(),
		Error:     operationError,
		Duration:  service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return CartBooking{}, operationError
	}
	return created, nil
}

// RemoveCart deletes a cart booking and its room links.
func (service *Service) RemoveCart(ctx context.Context, cartID CartID) error {
	startedAt := service.nowFn()
	var removed CartBooking
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		cart, err := txStore.GetCart(ctx, cartID)
		if err != nil {
			return err
		}
		if err := txStore.DeleteCart(ctx, cartID); err != nil {
			return err
		}
		removed = cart
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRemoveCart,
		UserID:    removed.UserID,
		CartID:    cartID,
		RoomIDs:   removed.RoomIDs(),
		Error:     operationError,
		Duration:  service.elapsedSince(startedAt),
	})
	return operationError
}

// GetCart returns one cart booking with its rooms.
func (service *Service) GetCart(ctx context.Context, cartID CartID) (CartBooking, error) {
	return service.store.GetCart(ctx, cartID)
}

// ListCarts returns the user's cart bookings, oldest first.
func (service *Service) ListCarts(ctx context.Context, userID UserID) ([]CartBooking, error) {
	return service.store.ListCarts(ctx, userID)
}

// AddRoomToCart adds a room to a staged cart.
func (service *Service) AddRoomToCart(ctx context.Context, cartID CartID, roomID RoomID) (CartRoom, error) {
	startedAt := service.nowFn()
	var (
		cart CartBooking
		link CartRoom
	)
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		existing, err := txStore.GetCart(ctx, cartID)
		if err != nil {
			return err
		}
		cart = existing
		for _, carted := range existing.Rooms {
			if carted.RoomID == roomID {
				return fmt.Errorf("%w: room %s", ErrRoomAlreadyInCart, roomID)
			}
		}
		if _, err := txStore.GetRoom(ctx, roomID); err != nil {
			return err
		}
		link, err = txStore.InsertCartRoom(ctx, CartRoom{CartID: cartID, RoomID: roomID})
		return err
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAddCartRoom,
		UserID:    cart.UserID,
		CartID:    cartID,
		RoomIDs:   []RoomID{roomID},
		Error:     operationError,
		Duration:  service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return CartRoom{}, operationError
	}
	return link, nil
}

// RemoveRoomFromCart drops a room from a staged cart.
func (service *Service) RemoveRoomFromCart(ctx context.Context, cartID CartID, roomID RoomID) error {
	startedAt := service.nowFn()
	var cart CartBooking
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		existing, err := txStore.GetCart(ctx, cartID)
		if err != nil {
			return err
		}
		cart = existing
		return txStore.DeleteCartRoom(ctx, cartID, roomID)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationRemoveCartRoom,
		UserID:    cart.UserID,
		CartID:    cartID,
		RoomIDs:   []RoomID{roomID},
		Error:     operationError,
		Duration:  service.elapsedSince(startedAt),
	})
	return operationError
}

// Checkout turns a cart into a confirmed booking at hotelID and removes the cart, in one transaction.
// A failed booking leaves the cart in place.
func (service *Service) Checkout(ctx context.Context, cartID CartID, hotelID HotelID) (Booking, error) {
	startedAt := service.nowFn()
	stage := StageValidating
	var (
		request BookingRequest
		created Booking
	)
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		cart, err := txStore.GetCart(ctx, cartID)
		if err != nil {
			return err
		}
		request, err = NewBookingRequest(cart.UserID, hotelID, cart.Stay, cart.RoomIDs(), cart.SpecialRequests, cart.Guests)
		if err != nil {
			return err
		}
		booking, err := service.reserveAndPersist(ctx, txStore, request, &stage)
		if err != nil {
			return err
		}
		if err := txStore.DeleteCart(ctx, cartID); err != nil {
			return err
		}
		created = booking
		return nil
	})
	entry := transactorLog(operationCheckout, request, created, stage, operationError, service.elapsedSince(startedAt))
	entry.CartID = cartID
	service.logOperation(ctx, entry)
	if operationError != nil {
		return Booking{}, operationError
	}
	event := newBookingEvent(EventBookingConfirmed, created, service.nowFn().UTC())
	service.afterCommit(ctx, &event, created.RoomIDs())
	return created, nil
}
