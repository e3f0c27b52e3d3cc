package booking

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustCartRequest(test *testing.T, user string, stay StayRange, rooms ...string) CartRequest {
	test.Helper()
	roomIDs := make([]RoomID, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, mustRoomID(test, room))
	}
	request, err := NewCartRequest(mustUserID(test, user), stay, roomIDs, "late arrival", mustGuests(test, 1, 1))
	if err != nil {
		test.Fatalf("NewCartRequest failed: %v", err)
	}
	return request
}

func TestAddCartEnforcesPerUserLimit(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	stay := mustStay(test, "2024-01-01", "2024-01-02")
	before := store.ledgerSnapshot()

	var carts []CartBooking
	for index := 0; index < MaxCartBookings; index++ {
		cart, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, stay, "room-a"))
		if err != nil {
			test.Fatalf("add cart %d failed: %v", index, err)
		}
		carts = append(carts, cart)
	}
	if _, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, stay, "room-a")); !errors.Is(err, ErrCartLimitExceeded) {
		test.Fatalf("expected ErrCartLimitExceeded, got %v", err)
	}
	if _, err := service.AddCart(context.Background(), mustCartRequest(test, "user-2", stay, "room-a")); err != nil {
		test.Fatalf("other user should not be limited: %v", err)
	}

	if err := service.RemoveCart(context.Background(), carts[0].ID); err != nil {
		test.Fatalf("remove cart failed: %v", err)
	}
	if _, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, stay, "room-a")); err != nil {
		test.Fatalf("expected one more cart after removal: %v", err)
	}
	if _, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, stay, "room-a")); !errors.Is(err, ErrCartLimitExceeded) {
		test.Fatalf("expected limit again, got %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("carts must not touch the ledger")
	}
}

func TestAddCartRejectsUnknownRoom(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	service := mustService(test, store, fixedClock(2023, time.December, 20))

	_, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-02"), "room-missing"))
	if !errors.Is(err, ErrRoomNotFound) {
		test.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
	if len(store.carts) != 0 {
		test.Fatalf("expected no carts, got %d", len(store.carts))
	}
}

func TestCartRoomEditing(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	roomB := seedRoom(test, store, "room-b", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	cart, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-02"), "room-a"))
	if err != nil {
		test.Fatalf("add cart failed: %v", err)
	}

	if _, err := service.AddRoomToCart(context.Background(), cart.ID, roomB); err != nil {
		test.Fatalf("add room to cart failed: %v", err)
	}
	if _, err := service.AddRoomToCart(context.Background(), cart.ID, roomB); !errors.Is(err, ErrRoomAlreadyInCart) {
		test.Fatalf("expected ErrRoomAlreadyInCart, got %v", err)
	}
	stored, err := service.GetCart(context.Background(), cart.ID)
	if err != nil {
		test.Fatalf("get cart failed: %v", err)
	}
	if len(stored.Rooms) != 2 {
		test.Fatalf("expected two cart rooms, got %d", len(stored.Rooms))
	}

	if err := service.RemoveRoomFromCart(context.Background(), cart.ID, roomB); err != nil {
		test.Fatalf("remove room from cart failed: %v", err)
	}
	if err := service.RemoveRoomFromCart(context.Background(), cart.ID, roomB); !errors.Is(err, ErrCartRoomNotFound) {
		test.Fatalf("expected ErrCartRoomNotFound, got %v", err)
	}
	if err := service.RemoveCart(context.Background(), CartID{value: "cart-missing"}); !errors.Is(err, ErrCartNotFound) {
		test.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCheckoutConvertsCartIntoBooking(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	seedRoom(test, store, "room-b", "2024-01-01", 5, 80)
	publisher := &recordingPublisher{}
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithEventPublisher(publisher))
	cart, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, mustStay(test, "2024-01-02", "2024-01-04"), "room-b", "room-a"))
	if err != nil {
		test.Fatalf("add cart failed: %v", err)
	}

	booking, err := service.Checkout(context.Background(), cart.ID, mustHotelID(test, testHotel))
	if err != nil {
		test.Fatalf("checkout failed: %v", err)
	}
	if !booking.TotalPrice.Equal(mustPrice(test, 360)) {
		test.Fatalf("expected total 360, got %s", booking.TotalPrice)
	}
	if booking.SpecialRequests != "late arrival" || booking.Guests.Children() != 1 {
		test.Fatalf("cart details not carried over: %+v", booking)
	}
	if _, err := service.GetCart(context.Background(), cart.ID); !errors.Is(err, ErrCartNotFound) {
		test.Fatalf("expected cart to be removed, got %v", err)
	}
	if len(publisher.events) != 1 || publisher.events[0].Type != EventBookingConfirmed {
		test.Fatalf("unexpected events: %+v", publisher.events)
	}
}

func TestCheckoutFailureKeepsCart(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	stay := mustStay(test, "2024-01-01", "2024-01-03")
	cart, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, stay, "room-a"))
	if err != nil {
		test.Fatalf("add cart failed: %v", err)
	}
	if _, err := service.CreateBooking(context.Background(), mustBookingRequest(test, "user-2", stay, "room-a")); err != nil {
		test.Fatalf("competing booking failed: %v", err)
	}

	if _, err := service.Checkout(context.Background(), cart.ID, mustHotelID(test, testHotel)); !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	if _, err := service.GetCart(context.Background(), cart.ID); err != nil {
		test.Fatalf("expected cart to survive, got %v", err)
	}
}

func TestCheckoutRejectsEmptyCart(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	cart, err := service.AddCart(context.Background(), mustCartRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-03")))
	if err != nil {
		test.Fatalf("add empty cart failed: %v", err)
	}
	if _, err := service.Checkout(context.Background(), cart.ID, mustHotelID(test, testHotel)); !errors.Is(err, ErrEmptyRoomSet) {
		test.Fatalf("expected ErrEmptyRoomSet, got %v", err)
	}
}
