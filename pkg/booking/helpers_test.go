package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

const (
	testHotel = "hotel-1"
	testUser  = "user-1"
)

func fixedClock(year int, month time.Month, day int) func() time.Time {
	instant := time.Date(year, month, day, 9, 30, 0, 0, time.UTC)
	return func() time.Time { return instant }
}

func mustUserID(test *testing.T, raw string) UserID {
	test.Helper()
	id, err := NewUserID(raw)
	if err != nil {
		test.Fatalf("NewUserID(%q) failed: %v", raw, err)
	}
	return id
}

func mustHotelID(test *testing.T, raw string) HotelID {
	test.Helper()
	id, err := NewHotelID(raw)
	if err != nil {
		test.Fatalf("NewHotelID(%q) failed: %v", raw, err)
	}
	return id
}

func mustRoomID(test *testing.T, raw string) RoomID {
	test.Helper()
	id, err := NewRoomID(raw)
	if err != nil {
		test.Fatalf("NewRoomID(%q) failed: %v", raw, err)
	}
	return id
}

func mustPrice(test *testing.T, amount int64) Price {
	test.Helper()
	price, err := NewPrice(decimal.NewFromInt(amount))
	if err != nil {
		test.Fatalf("NewPrice(%d) failed: %v", amount, err)
	}
	return price
}

func mustDate(test *testing.T, raw string) Date {
	test.Helper()
	date, err := ParseDate(raw)
	if err != nil {
		test.Fatalf("ParseDate(%q) failed: %v", raw, err)
	}
	return date
}

func mustStay(test *testing.T, checkIn string, checkOut string) StayRange {
	test.Helper()
	stay, err := NewStayRange(mustDate(test, checkIn), mustDate(test, checkOut))
	if err != nil {
		test.Fatalf("NewStayRange(%s, %s) failed: %v", checkIn, checkOut, err)
	}
	return stay
}

func mustGuests(test *testing.T, adults int, children int) GuestCount {
	test.Helper()
	guests, err := NewGuestCount(adults, children)
	if err != nil {
		test.Fatalf("NewGuestCount failed: %v", err)
	}
	return guests
}

func mustBookingRequest(test *testing.T, user string, stay StayRange, rooms ...string) BookingRequest {
	test.Helper()
	roomIDs := make([]RoomID, 0, len(rooms))
	for _, room := range rooms {
		roomIDs = append(roomIDs, mustRoomID(test, room))
	}
	request, err := NewBookingRequest(mustUserID(test, user), mustHotelID(test, testHotel), stay, roomIDs, "", mustGuests(test, 2, 0))
	if err != nil {
		test.Fatalf("NewBookingRequest failed: %v", err)
	}
	return request
}

func mustService(test *testing.T, store Store, clock func() time.Time, options ...ServiceOption) *Service {
	test.Helper()
	options = append([]ServiceOption{WithConfirmationSource(sequentialConfirmations())}, options...)
	service, err := NewService(store, clock, options...)
	if err != nil {
		test.Fatalf("NewService failed: %v", err)
	}
	return service
}

// seedRoom registers a room in testHotel with days available entries starting at start.
func seedRoom(test *testing.T, store *memoryStore, room string, start string, days int, price int64) RoomID {
	test.Helper()
	roomID := mustRoomID(test, room)
	roomPrice := mustPrice(test, price)
	if err := store.CreateRoom(context.Background(), Room{ID: roomID, HotelID: mustHotelID(test, testHotel), BasePrice: roomPrice}); err != nil {
		test.Fatalf("CreateRoom failed: %v", err)
	}
	if err := store.InsertLedgerEntries(context.Background(), buildLedgerEntries(roomID, mustDate(test, start), days, roomPrice)); err != nil {
		test.Fatalf("InsertLedgerEntries failed: %v", err)
	}
	return roomID
}

func sequentialConfirmations() ConfirmationSource {
	var (
		mutex sync.Mutex
		next  = minConfirmationNumber
	)
	return func() (ConfirmationNumber, error) {
		mutex.Lock()
		defer mutex.Unlock()
		next++
		return ConfirmationNumber(next), nil
	}
}

type recorderLogger struct {
	mutex   sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.entries = append(logger.entries, entry)
}

func (logger *recorderLogger) last(test *testing.T) OperationLog {
	test.Helper()
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	if len(logger.entries) == 0 {
		test.Fatalf("expected at least one log entry")
	}
	return logger.entries[len(logger.entries)-1]
}

type recordingPublisher struct {
	mutex  sync.Mutex
	events []Event
	err    error
}

func (publisher *recordingPublisher) Publish(_ context.Context, event Event) error {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	publisher.events = append(publisher.events, event)
	return publisher.err
}

type recordingCache struct {
	mutex       sync.Mutex
	entries     map[string][]LedgerEntry
	generations map[RoomID]CacheGeneration
	invalidated []RoomID
	hits        int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string][]LedgerEntry{}, generations: map[RoomID]CacheGeneration{}}
}

func (cache *recordingCache) key(roomID RoomID, generation CacheGeneration, start Date, end Date) string {
	return fmt.Sprintf("%s|%d|%s|%s", roomID, generation, start, end)
}

func (cache *recordingCache) GetRange(_ context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, CacheGeneration, bool) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	generation := cache.generations[roomID]
	entries, ok := cache.entries[cache.key(roomID, generation, start, end)]
	if ok {
		cache.hits++
	}
	return entries, generation, ok
}

func (cache *recordingCache) StoreRange(_ context.Context, roomID RoomID, start Date, end Date, generation CacheGeneration, entries []LedgerEntry) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	if generation < 0 {
		return
	}
	cache.entries[cache.key(roomID, generation, start, end)] = entries
}

func (cache *recordingCache) Invalidate(_ context.Context, roomIDs ...RoomID) {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	cache.invalidated = append(cache.invalidated, roomIDs...)
	for _, roomID := range roomIDs {
		cache.generations[roomID]++
	}
}
