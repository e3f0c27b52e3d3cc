package booking

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
)

// memoryState holds the rows of memoryStore. Every method assumes the caller serializes access.
type memoryState struct {
	rooms     map[RoomID]Room
	ledger    map[string]LedgerEntry
	bookings  map[BookingID]Booking
	links     map[BookingRoomID]BookingRoom
	carts     map[CartID]CartBooking
	cartRooms map[string]CartRoom
	nextID    int
}

type memoryStore struct {
	*memoryState
	txLock   *sync.Mutex
	failures map[string]error
}

func newMemoryStore(test *testing.T) *memoryStore {
	test.Helper()
	return &memoryStore{
		memoryState: &memoryState{
			rooms:     map[RoomID]Room{},
			ledger:    map[string]LedgerEntry{},
			bookings:  map[BookingID]Booking{},
			links:     map[BookingRoomID]BookingRoom{},
			carts:     map[CartID]CartBooking{},
			cartRooms: map[string]CartRoom{},
		},
		txLock:   &sync.Mutex{},
		failures: map[string]error{},
	}
}

func (store *memoryStore) failOn(method string, err error) {
	store.failures[method] = err
}

func (store *memoryStore) fail(method string) error {
	return store.failures[method]
}

func (store *memoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.txLock.Lock()
	defer store.txLock.Unlock()
	if err := store.fail("WithTx"); err != nil {
		return err
	}
	snapshot := store.memoryState.clone()
	if err := fn(ctx, store); err != nil {
		*store.memoryState = *snapshot
		return err
	}
	return nil
}

func (state *memoryState) clone() *memoryState {
	cloned := &memoryState{
		rooms:     make(map[RoomID]Room, len(state.rooms)),
		ledger:    make(map[string]LedgerEntry, len(state.ledger)),
		bookings:  make(map[BookingID]Booking, len(state.bookings)),
		links:     make(map[BookingRoomID]BookingRoom, len(state.links)),
		carts:     make(map[CartID]CartBooking, len(state.carts)),
		cartRooms: make(map[string]CartRoom, len(state.cartRooms)),
		nextID:    state.nextID,
	}
	for key, value := range state.rooms {
		cloned.rooms[key] = value
	}
	for key, value := range state.ledger {
		cloned.ledger[key] = value
	}
	for key, value := range state.bookings {
		cloned.bookings[key] = value
	}
	for key, value := range state.links {
		cloned.links[key] = value
	}
	for key, value := range state.carts {
		cloned.carts[key] = value
	}
	for key, value := range state.cartRooms {
		cloned.cartRooms[key] = value
	}
	return cloned
}

func (state *memoryState) newID(prefix string) string {
	state.nextID++
	return prefix + "-" + strconv.Itoa(state.nextID)
}

func ledgerKey(roomID RoomID, date Date) string {
	return roomID.String() + "|" + date.String()
}

func cartRoomKey(cartID CartID, roomID RoomID) string {
	return cartID.String() + "|" + roomID.String()
}

func (store *memoryStore) CreateRoom(_ context.Context, room Room) error {
	if err := store.fail("CreateRoom"); err != nil {
		return err
	}
	if _, exists := store.rooms[room.ID]; exists {
		return ErrRoomExists
	}
	store.rooms[room.ID] = room
	return nil
}

func (store *memoryStore) GetRoom(_ context.Context, roomID RoomID) (Room, error) {
	room, ok := store.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (store *memoryStore) LockRoom(ctx context.Context, roomID RoomID) (Room, error) {
	return store.GetRoom(ctx, roomID)
}

func (store *memoryStore) ListRooms(_ context.Context) ([]Room, error) {
	rooms := make([]Room, 0, len(store.rooms))
	for _, room := range store.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(left, right int) bool { return rooms[left].ID.String() < rooms[right].ID.String() })
	return rooms, nil
}

func (store *memoryStore) DeleteRoom(_ context.Context, roomID RoomID) error {
	if _, ok := store.rooms[roomID]; !ok {
		return ErrRoomNotFound
	}
	delete(store.rooms, roomID)
	return nil
}

func (store *memoryStore) CountRoomBookings(_ context.Context, roomID RoomID) (int64, error) {
	var count int64
	for _, link := range store.links {
		if link.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (store *memoryStore) InsertLedgerEntries(_ context.Context, entries []LedgerEntry) error {
	if err := store.fail("InsertLedgerEntries"); err != nil {
		return err
	}
	for _, entry := range entries {
		key := ledgerKey(entry.RoomID, entry.Date)
		if _, exists := store.ledger[key]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateLedgerEntry, key)
		}
		entry.ID = store.newID("entry")
		store.ledger[key] = entry
	}
	return nil
}

func (store *memoryStore) GetLedgerEntry(_ context.Context, roomID RoomID, date Date) (LedgerEntry, error) {
	entry, ok := store.ledger[ledgerKey(roomID, date)]
	if !ok {
		return LedgerEntry{}, ErrLedgerEntryNotFound
	}
	return entry, nil
}

func (store *memoryStore) ListLedgerRange(_ context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, error) {
	entries := []LedgerEntry{}
	for current := start; current.Before(end); current = current.AddDays(1) {
		if entry, ok := store.ledger[ledgerKey(roomID, current)]; ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (store *memoryStore) LockLedgerRange(ctx context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, error) {
	if err := store.fail("LockLedgerRange"); err != nil {
		return nil, err
	}
	return store.ListLedgerRange(ctx, roomID, start, end)
}

func (store *memoryStore) SetLedgerAvailability(_ context.Context, roomID RoomID, start Date, end Date, from bool, to bool) (int64, error) {
	if err := store.fail("SetLedgerAvailability"); err != nil {
		return 0, err
	}
	var flipped int64
	for current := start; current.Before(end); current = current.AddDays(1) {
		key := ledgerKey(roomID, current)
		entry, ok := store.ledger[key]
		if !ok || entry.Available != from {
			continue
		}
		entry.Available = to
		store.ledger[key] = entry
		flipped++
	}
	return flipped, nil
}

func (store *memoryStore) SumLedgerPrice(ctx context.Context, roomID RoomID, start Date, end Date) (Price, error) {
	entries, err := store.ListLedgerRange(ctx, roomID, start, end)
	if err != nil {
		return Price{}, err
	}
	return sumEntries(entries), nil
}

func (store *memoryStore) UpdateLedgerPrice(_ context.Context, roomID RoomID, date Date, price Price) (int64, error) {
	key := ledgerKey(roomID, date)
	entry, ok := store.ledger[key]
	if !ok || !entry.Available {
		return 0, nil
	}
	entry.Price = price
	store.ledger[key] = entry
	return 1, nil
}

func (store *memoryStore) LatestLedgerDate(_ context.Context, roomID RoomID) (Date, bool, error) {
	var (
		latest Date
		found  bool
	)
	for _, entry := range store.ledger {
		if entry.RoomID != roomID {
			continue
		}
		if !found || entry.Date.After(latest) {
			latest = entry.Date
			found = true
		}
	}
	return latest, found, nil
}

func (store *memoryStore) DeleteLedgerEntries(_ context.Context, roomID RoomID) error {
	for key, entry := range store.ledger {
		if entry.RoomID == roomID {
			delete(store.ledger, key)
		}
	}
	return nil
}

func (store *memoryStore) ConfirmationNumberExists(_ context.Context, number ConfirmationNumber) (bool, error) {
	for _, booking := range store.bookings {
		if booking.ConfirmationNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (store *memoryStore) InsertBooking(_ context.Context, booking Booking) (Booking, error) {
	if err := store.fail("InsertBooking"); err != nil {
		return Booking{}, err
	}
	booking.ID = BookingID{value: store.newID("booking")}
	links := make([]BookingRoom, 0, len(booking.Rooms))
	for _, link := range booking.Rooms {
		link.ID = BookingRoomID{value: store.newID("link")}
		link.BookingID = booking.ID
		store.links[link.ID] = link
		links = append(links, link)
	}
	booking.Rooms = nil
	store.bookings[booking.ID] = booking
	booking.Rooms = links
	return booking, nil
}

func (store *memoryStore) GetBooking(_ context.Context, bookingID BookingID) (Booking, error) {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	booking.Rooms = store.bookingLinks(bookingID)
	return booking, nil
}

func (store *memoryStore) bookingLinks(bookingID BookingID) []BookingRoom {
	links := []BookingRoom{}
	for _, link := range store.links {
		if link.BookingID == bookingID {
			links = append(links, link)
		}
	}
	sort.Slice(links, func(left, right int) bool { return links[left].RoomID.String() < links[right].RoomID.String() })
	return links
}

func (store *memoryStore) LockBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	return store.GetBooking(ctx, bookingID)
}

func (store *memoryStore) DeleteBooking(_ context.Context, bookingID BookingID) error {
	if err := store.fail("DeleteBooking"); err != nil {
		return err
	}
	if _, ok := store.bookings[bookingID]; !ok {
		return ErrBookingNotFound
	}
	for linkID, link := range store.links {
		if link.BookingID == bookingID {
			delete(store.links, linkID)
		}
	}
	delete(store.bookings, bookingID)
	return nil
}

func (store *memoryStore) InsertBookingRoom(_ context.Context, link BookingRoom) (BookingRoom, error) {
	link.ID = BookingRoomID{value: store.newID("link")}
	store.links[link.ID] = link
	return link, nil
}

func (store *memoryStore) GetBookingRoom(_ context.Context, linkID BookingRoomID) (BookingRoom, error) {
	link, ok := store.links[linkID]
	if !ok {
		return BookingRoom{}, ErrBookingRoomNotFound
	}
	return link, nil
}

func (store *memoryStore) DeleteBookingRoom(_ context.Context, linkID BookingRoomID) error {
	if _, ok := store.links[linkID]; !ok {
		return ErrBookingRoomNotFound
	}
	delete(store.links, linkID)
	return nil
}

func (store *memoryStore) UpdateBookingTotal(_ context.Context, bookingID BookingID, total Price) error {
	if err := store.fail("UpdateBookingTotal"); err != nil {
		return err
	}
	booking, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	booking.TotalPrice = total
	store.bookings[bookingID] = booking
	return nil
}

func (store *memoryStore) MarkBookingPaid(_ context.Context, bookingID BookingID) error {
	booking, ok := store.bookings[bookingID]
	if !ok {
		return ErrBookingNotFound
	}
	booking.Paid = true
	store.bookings[bookingID] = booking
	return nil
}

func (store *memoryStore) ListUserBookings(ctx context.Context, query BookingQuery) ([]Booking, error) {
	matches := []Booking{}
	for bookingID, booking := range store.bookings {
		if booking.UserID != query.UserID {
			continue
		}
		checkIn := booking.Stay.CheckIn()
		if query.Filter == BookingsPrevious && checkIn.After(query.Today) {
			continue
		}
		if query.Filter == BookingsUpcoming && !checkIn.After(query.Today) {
			continue
		}
		withLinks, err := store.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, withLinks)
	}
	sort.Slice(matches, func(left, right int) bool {
		return matches[left].Stay.CheckIn().After(matches[right].Stay.CheckIn())
	})
	offset := query.Page.Offset()
	if offset >= len(matches) {
		return []Booking{}, nil
	}
	end := offset + query.Page.Size()
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

func (store *memoryStore) LockUserCarts(_ context.Context, _ UserID) error {
	return nil
}

func (store *memoryStore) CountCarts(_ context.Context, userID UserID) (int64, error) {
	var count int64
	for _, cart := range store.carts {
		if cart.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (store *memoryStore) InsertCart(_ context.Context, cart CartBooking) (CartBooking, error) {
	cart.ID = CartID{value: store.newID("cart")}
	links := make([]CartRoom, 0, len(cart.Rooms))
	for _, link := range cart.Rooms {
		link.ID = store.newID("cart-room")
		link.CartID = cart.ID
		store.cartRooms[cartRoomKey(cart.ID, link.RoomID)] = link
		links = append(links, link)
	}
	cart.Rooms = nil
	store.carts[cart.ID] = cart
	cart.Rooms = links
	return cart, nil
}

func (store *memoryStore) GetCart(_ context.Context, cartID CartID) (CartBooking, error) {
	cart, ok := store.carts[cartID]
	if !ok {
		return CartBooking{}, ErrCartNotFound
	}
	cart.Rooms = []CartRoom{}
	for _, link := range store.cartRooms {
		if link.CartID == cartID {
			cart.Rooms = append(cart.Rooms, link)
		}
	}
	sort.Slice(cart.Rooms, func(left, right int) bool { return cart.Rooms[left].RoomID.String() < cart.Rooms[right].RoomID.String() })
	return cart, nil
}

func (store *memoryStore) ListCarts(ctx context.Context, userID UserID) ([]CartBooking, error) {
	carts := []CartBooking{}
	for cartID, cart := range store.carts {
		if cart.UserID != userID {
			continue
		}
		withRooms, err := store.GetCart(ctx, cartID)
		if err != nil {
			return nil, err
		}
		carts = append(carts, withRooms)
	}
	sort.Slice(carts, func(left, right int) bool { return carts[left].ID.String() < carts[right].ID.String() })
	return carts, nil
}

func (store *memoryStore) DeleteCart(_ context.Context, cartID CartID) error {
	if _, ok := store.carts[cartID]; !ok {
		return ErrCartNotFound
	}
	for key, link := range store.cartRooms {
		if link.CartID == cartID {
			delete(store.cartRooms, key)
		}
	}
	delete(store.carts, cartID)
	return nil
}

func (store *memoryStore) InsertCartRoom(_ context.Context, link CartRoom) (CartRoom, error) {
	link.ID = store.newID("cart-room")
	store.cartRooms[cartRoomKey(link.CartID, link.RoomID)] = link
	return link, nil
}

func (store *memoryStore) DeleteCartRoom(_ context.Context, cartID CartID, roomID RoomID) error {
	key := cartRoomKey(cartID, roomID)
	if _, ok := store.cartRooms[key]; !ok {
		return ErrCartRoomNotFound
	}
	delete(store.cartRooms, key)
	return nil
}

func (store *memoryStore) DeleteCartRoomsForRoom(_ context.Context, roomID RoomID) error {
	for key, link := range store.cartRooms {
		if link.RoomID == roomID {
			delete(store.cartRooms, key)
		}
	}
	return nil
}

// ledgerSnapshot renders the availability of every entry, keyed by room and date.
func (store *memoryStore) ledgerSnapshot() map[string]bool {
	snapshot := make(map[string]bool, len(store.ledger))
	for key, entry := range store.ledger {
		snapshot[key] = entry.Available
	}
	return snapshot
}

// ledgerRows copies every ledger entry, keyed by room and date.
func (store *memoryStore) ledgerRows() map[string]LedgerEntry {
	rows := make(map[string]LedgerEntry, len(store.ledger))
	for key, entry := range store.ledger {
		rows[key] = entry
	}
	return rows
}
