package booking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestCreateBookingReservesNightsAndPricesStay(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-x", "2024-01-01", 9, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))

	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-04"), "room-x"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	if !booking.TotalPrice.Equal(mustPrice(test, 300)) {
		test.Fatalf("expected total 300, got %s", booking.TotalPrice)
	}
	if len(booking.Rooms) != 1 || booking.Rooms[0].RoomID.String() != "room-x" {
		test.Fatalf("unexpected booking rooms: %+v", booking.Rooms)
	}
	if booking.ConfirmationNumber.Int64() < minConfirmationNumber || booking.ConfirmationNumber.Int64() > maxConfirmationNumber {
		test.Fatalf("confirmation number out of range: %d", booking.ConfirmationNumber)
	}
	for day := 1; day <= 9; day++ {
		key := fmt.Sprintf("room-x|2024-01-%02d", day)
		wantAvailable := day >= 4
		if store.ledger[key].Available != wantAvailable {
			test.Fatalf("%s: expected available=%t", key, wantAvailable)
		}
	}

	before := store.ledgerSnapshot()
	_, err = service.CreateBooking(context.Background(), mustBookingRequest(test, "user-2", mustStay(test, "2024-01-02", "2024-01-05"), "room-x"))
	if !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("ledger changed after rejected booking")
	}
	if len(store.bookings) != 1 {
		test.Fatalf("expected one booking, got %d", len(store.bookings))
	}
}

func TestCreateBookingChecksEveryRoomBeforeMutating(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	roomB := seedRoom(test, store, "room-b", "2024-01-01", 5, 100)
	if _, err := store.SetLedgerAvailability(context.Background(), roomB, mustDate(test, "2024-01-03"), mustDate(test, "2024-01-04"), true, false); err != nil {
		test.Fatalf("seed hold failed: %v", err)
	}
	logger := &recorderLogger{}
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithOperationLogger(logger))
	before := store.ledgerSnapshot()

	_, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-05"), "room-b", "room-a"))
	if !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("ledger changed after rejected booking")
	}
	entry := logger.last(test)
	if entry.Stage != StageAborted || entry.FailedStage != StageValidating || entry.Status != operationStatusError {
		test.Fatalf("unexpected log entry: %+v", entry)
	}
}

func TestCreateBookingRollsBackWhenPersistingFails(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	seedRoom(test, store, "room-b", "2024-01-01", 5, 100)
	storageFailure := errors.New("disk full")
	store.failOn("InsertBooking", storageFailure)
	logger := &recorderLogger{}
	publisher := &recordingPublisher{}
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithOperationLogger(logger), WithEventPublisher(publisher))
	before := store.ledgerSnapshot()

	_, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-03"), "room-a", "room-b"))
	if !errors.Is(err, storageFailure) {
		test.Fatalf("expected storage failure, got %v", err)
	}
	if Classify(err) != ClassUnexpected {
		test.Fatalf("expected unexpected class, got %s", Classify(err))
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("ledger changed after failed persist")
	}
	if entry := logger.last(test); entry.FailedStage != StagePersisting {
		test.Fatalf("expected failure in persisting stage, got %+v", entry)
	}
	if len(publisher.events) != 0 {
		test.Fatalf("expected no events for aborted booking, got %d", len(publisher.events))
	}
}

func TestCreateBookingRejections(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		request func(test *testing.T) BookingRequest
		wantErr error
	}{
		{
			name: "unknown room",
			request: func(test *testing.T) BookingRequest {
				return mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-02"), "room-missing")
			},
			wantErr: ErrRoomNotFound,
		},
		{
			name: "room of another hotel",
			request: func(test *testing.T) BookingRequest {
				request, err := NewBookingRequest(mustUserID(test, testUser), mustHotelID(test, "hotel-2"), mustStay(test, "2024-01-01", "2024-01-02"), []RoomID{mustRoomID(test, "room-a")}, "", mustGuests(test, 1, 0))
				if err != nil {
					test.Fatalf("request failed: %v", err)
				}
				return request
			},
			wantErr: ErrRoomHotelMismatch,
		},
		{
			name: "stay beyond ledger horizon",
			request: func(test *testing.T) BookingRequest {
				return mustBookingRequest(test, testUser, mustStay(test, "2024-01-04", "2024-01-07"), "room-a")
			},
			wantErr: ErrLedgerCoverageGap,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			store := newMemoryStore(test)
			seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
			service := mustService(test, store, fixedClock(2023, time.December, 20))
			before := store.ledgerSnapshot()
			_, err := service.CreateBooking(context.Background(), testCase.request(test))
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
			if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
				test.Fatalf("ledger changed after rejected booking")
			}
		})
	}
}

func TestCreateBookingTreatsMissingNightsAsFreeWhenConfigured(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 2, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithCoveragePolicy(CoverageTreatMissingAsFree))

	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-04"), "room-a"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	if !booking.TotalPrice.Equal(mustPrice(test, 200)) {
		test.Fatalf("expected missing night priced at zero, got %s", booking.TotalPrice)
	}
}

func TestConcurrentCreateBookingAdmitsExactlyOne(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 10, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))

	const contenders = 8
	results := make(chan error, contenders)
	var waitGroup sync.WaitGroup
	for index := 0; index < contenders; index++ {
		waitGroup.Add(1)
		go func(index int) {
			defer waitGroup.Done()
			request := mustBookingRequest(test, fmt.Sprintf("user-%d", index), mustStay(test, "2024-01-02", "2024-01-05"), "room-a")
			_, err := service.CreateBooking(context.Background(), request)
			results <- err
		}(index)
	}
	waitGroup.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrRoomUnavailable):
			rejected++
		default:
			test.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != contenders-1 {
		test.Fatalf("expected one winner, got succeeded=%d rejected=%d", succeeded, rejected)
	}
	held := 0
	for _, available := range store.ledgerSnapshot() {
		if !available {
			held++
		}
	}
	if held != 3 {
		test.Fatalf("expected three held nights, got %d", held)
	}
}

func TestCancelBookingReleasesEveryNight(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	seedRoom(test, store, "room-b", "2024-01-01", 5, 120)
	publisher := &recordingPublisher{}
	cache := newRecordingCache()
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithEventPublisher(publisher), WithCalendarCache(cache))
	before := store.ledgerSnapshot()

	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-02", "2024-01-04"), "room-a", "room-b"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	if !booking.TotalPrice.Equal(mustPrice(test, 440)) {
		test.Fatalf("expected total 440, got %s", booking.TotalPrice)
	}
	if err := service.CancelBooking(context.Background(), booking.ID); err != nil {
		test.Fatalf("cancel booking failed: %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("ledger not restored after cancellation")
	}
	if len(store.bookings) != 0 || len(store.links) != 0 {
		test.Fatalf("expected no bookings or links, got %d bookings %d links", len(store.bookings), len(store.links))
	}
	if len(publisher.events) != 2 || publisher.events[0].Type != EventBookingConfirmed || publisher.events[1].Type != EventBookingCanceled {
		test.Fatalf("unexpected events: %+v", publisher.events)
	}
	if len(cache.invalidated) != 4 {
		test.Fatalf("expected both rooms invalidated twice, got %v", cache.invalidated)
	}
	if err := service.CancelBooking(context.Background(), booking.ID); !errors.Is(err, ErrBookingNotFound) {
		test.Fatalf("expected ErrBookingNotFound on second cancel, got %v", err)
	}
}

func TestCancelBookingFailureKeepsBooking(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-03"), "room-a"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	held := store.ledgerSnapshot()
	store.failOn("DeleteBooking", errors.New("connection reset"))

	if err := service.CancelBooking(context.Background(), booking.ID); err == nil {
		test.Fatalf("expected cancellation failure")
	}
	if !reflect.DeepEqual(held, store.ledgerSnapshot()) {
		test.Fatalf("ledger changed after failed cancellation")
	}
	if _, err := service.GetBooking(context.Background(), booking.ID); err != nil {
		test.Fatalf("expected booking to survive, got %v", err)
	}
}

func TestAddAndRemoveRoomUseStoredStay(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	roomB := seedRoom(test, store, "room-b", "2024-01-01", 5, 150)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-03"), "room-a"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}

	link, err := service.AddRoomToBooking(context.Background(), booking.ID, roomB)
	if err != nil {
		test.Fatalf("add room failed: %v", err)
	}
	updated, err := service.GetBooking(context.Background(), booking.ID)
	if err != nil {
		test.Fatalf("get booking failed: %v", err)
	}
	if !updated.TotalPrice.Equal(mustPrice(test, 500)) || len(updated.Rooms) != 2 {
		test.Fatalf("unexpected booking after add: total=%s rooms=%d", updated.TotalPrice, len(updated.Rooms))
	}
	if store.ledger["room-b|2024-01-01"].Available || store.ledger["room-b|2024-01-02"].Available || !store.ledger["room-b|2024-01-03"].Available {
		test.Fatalf("room-b nights not held across stored stay")
	}
	assertTotalMatchesLedger(test, service, updated)

	if _, err := service.AddRoomToBooking(context.Background(), booking.ID, roomB); !errors.Is(err, ErrRoomAlreadyInBooking) {
		test.Fatalf("expected ErrRoomAlreadyInBooking, got %v", err)
	}

	if err := service.RemoveRoomFromBooking(context.Background(), link.ID); err != nil {
		test.Fatalf("remove room failed: %v", err)
	}
	reverted, err := service.GetBooking(context.Background(), booking.ID)
	if err != nil {
		test.Fatalf("get booking failed: %v", err)
	}
	if !reverted.TotalPrice.Equal(mustPrice(test, 200)) || len(reverted.Rooms) != 1 {
		test.Fatalf("unexpected booking after remove: total=%s rooms=%d", reverted.TotalPrice, len(reverted.Rooms))
	}
	if !store.ledger["room-b|2024-01-01"].Available || !store.ledger["room-b|2024-01-02"].Available {
		test.Fatalf("room-b nights not released")
	}
	assertTotalMatchesLedger(test, service, reverted)

	if err := service.RemoveRoomFromBooking(context.Background(), reverted.Rooms[0].ID); !errors.Is(err, ErrLastBookingRoom) {
		test.Fatalf("expected ErrLastBookingRoom, got %v", err)
	}
}

func TestAddRoomToBookingRejectsHeldRoom(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	roomB := seedRoom(test, store, "room-b", "2024-01-01", 5, 150)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	first, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-03"), "room-a"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	if _, err := service.CreateBooking(context.Background(), mustBookingRequest(test, "user-2", mustStay(test, "2024-01-02", "2024-01-04"), "room-b")); err != nil {
		test.Fatalf("create second booking failed: %v", err)
	}
	before := store.ledgerSnapshot()

	if _, err := service.AddRoomToBooking(context.Background(), first.ID, roomB); !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("ledger changed after rejected add")
	}
	unchanged, err := service.GetBooking(context.Background(), first.ID)
	if err != nil {
		test.Fatalf("get booking failed: %v", err)
	}
	if !unchanged.TotalPrice.Equal(mustPrice(test, 200)) {
		test.Fatalf("total changed after rejected add: %s", unchanged.TotalPrice)
	}
	if _, err := service.AddRoomToBooking(context.Background(), BookingID{value: "missing"}, roomB); !errors.Is(err, ErrBookingNotFound) {
		test.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestCreateBookingTimesOutAsTransientConflict(test *testing.T) {
	test.Parallel()
	store := &blockingStore{memoryStore: newMemoryStore(test)}
	seedRoom(test, store.memoryStore, "room-a", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithTransactionTimeout(10*time.Millisecond))

	_, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-02"), "room-a"))
	if !errors.Is(err, ErrTransientConflict) || !IsRetryable(err) {
		test.Fatalf("expected transient conflict, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		test.Fatalf("expected deadline cause to be preserved, got %v", err)
	}
}

func TestPublisherFailureDoesNotFailBooking(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	logger := &recorderLogger{}
	publisher := &recordingPublisher{err: errors.New("broker down")}
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithOperationLogger(logger), WithEventPublisher(publisher))

	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-02"), "room-a"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	if len(logger.entries) != 2 {
		test.Fatalf("expected booking and publish log entries, got %d", len(logger.entries))
	}
	created, published := logger.entries[0], logger.entries[1]
	if created.Operation != operationCreateBooking || created.Stage != StageCommitted || created.BookingID != booking.ID {
		test.Fatalf("unexpected booking log entry: %+v", created)
	}
	if published.Operation != operationPublishEvent || published.Status != operationStatusError {
		test.Fatalf("unexpected publish log entry: %+v", published)
	}
}

func TestMarkBookingPaidIsIdempotent(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))
	booking, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-02"), "room-a"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	before := store.ledgerSnapshot()
	for attempt := 0; attempt < 2; attempt++ {
		paid, err := service.MarkBookingPaid(context.Background(), booking.ID)
		if err != nil {
			test.Fatalf("mark paid failed: %v", err)
		}
		if !paid.Paid {
			test.Fatalf("expected booking to be paid")
		}
	}
	if !reflect.DeepEqual(before, store.ledgerSnapshot()) {
		test.Fatalf("payment touched the ledger")
	}
	if _, err := service.MarkBookingPaid(context.Background(), BookingID{value: "missing"}); !errors.Is(err, ErrBookingNotFound) {
		test.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestListUserBookingsFiltersRelativeToToday(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	seedRoom(test, store, "room-a", "2024-01-01", 60, 100)
	service := mustService(test, store, fixedClock(2024, time.January, 10))
	for _, stay := range [][2]string{{"2024-01-01", "2024-01-03"}, {"2024-01-10", "2024-01-12"}, {"2024-01-20", "2024-01-22"}} {
		if _, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, stay[0], stay[1]), "room-a")); err != nil {
			test.Fatalf("create booking failed: %v", err)
		}
	}
	user := mustUserID(test, testUser)

	testCases := []struct {
		name      string
		filter    BookingTimeFilter
		page      Page
		wantStays []string
	}{
		{name: "all", filter: BookingsAll, page: NewPage(1, 10), wantStays: []string{"2024-01-20", "2024-01-10", "2024-01-01"}},
		{name: "previous includes today", filter: BookingsPrevious, page: NewPage(1, 10), wantStays: []string{"2024-01-10", "2024-01-01"}},
		{name: "upcoming", filter: BookingsUpcoming, page: NewPage(1, 10), wantStays: []string{"2024-01-20"}},
		{name: "second page", filter: BookingsAll, page: NewPage(2, 1), wantStays: []string{"2024-01-10"}},
		{name: "past the end", filter: BookingsAll, page: NewPage(4, 1), wantStays: []string{}},
	}
	for _, testCase := range testCases {
		bookings, err := service.ListUserBookings(context.Background(), user, testCase.filter, testCase.page)
		if err != nil {
			test.Fatalf("%s: list failed: %v", testCase.name, err)
		}
		gotStays := make([]string, 0, len(bookings))
		for _, booking := range bookings {
			gotStays = append(gotStays, booking.Stay.CheckIn().String())
		}
		if !reflect.DeepEqual(gotStays, testCase.wantStays) {
			test.Fatalf("%s: expected %v, got %v", testCase.name, testCase.wantStays, gotStays)
		}
	}
}

type blockingStore struct {
	*memoryStore
}

func (store *blockingStore) WithTx(ctx context.Context, _ func(ctx context.Context, txStore Store) error) error {
	<-ctx.Done()
	return ctx.Err()
}

func assertTotalMatchesLedger(test *testing.T, service *Service, booking Booking) {
	test.Helper()
	expected := ZeroPrice()
	for _, link := range booking.Rooms {
		roomTotal, err := service.SumPrice(context.Background(), link.RoomID, booking.Stay.CheckIn(), booking.Stay.CheckOut())
		if err != nil {
			test.Fatalf("sum price failed: %v", err)
		}
		expected = expected.Add(roomTotal)
	}
	if !booking.TotalPrice.Equal(expected) {
		test.Fatalf("total %s does not match ledger sum %s", booking.TotalPrice, expected)
	}
}

func TestMissingNightsStayHeldByTheirBooking(test *testing.T) {
	test.Parallel()
	store := newMemoryStore(test)
	roomA := seedRoom(test, store, "room-a", "2024-01-01", 3, 100)
	seedRoom(test, store, "room-b", "2024-01-01", 10, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithCoveragePolicy(CoverageTreatMissingAsFree))

	first, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-02", "2024-01-06"), "room-a", "room-b"))
	if err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	if !first.TotalPrice.Equal(mustPrice(test, 600)) {
		test.Fatalf("expected total 600, got %s", first.TotalPrice)
	}
	for _, night := range []string{"2024-01-04", "2024-01-05"} {
		entry, ok := store.ledger["room-a|"+night]
		if !ok || entry.Available || !entry.Price.Equal(ZeroPrice()) {
			test.Fatalf("expected %s held at zero, got %+v (present=%t)", night, entry, ok)
		}
	}

	latest, err := service.ExtendHorizon(context.Background(), roomA, 5, mustPrice(test, 100))
	if err != nil {
		test.Fatalf("extend horizon failed: %v", err)
	}
	if latest.String() != "2024-01-10" {
		test.Fatalf("expected horizon to resume after the held nights, got %s", latest)
	}
	if _, err := service.CreateBooking(context.Background(), mustBookingRequest(test, "user-2", mustStay(test, "2024-01-04", "2024-01-07"), "room-a")); !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable over held missing nights, got %v", err)
	}
	second, err := service.CreateBooking(context.Background(), mustBookingRequest(test, "user-2", mustStay(test, "2024-01-06", "2024-01-08"), "room-a"))
	if err != nil {
		test.Fatalf("create second booking failed: %v", err)
	}

	var linkA BookingRoom
	for _, link := range first.Rooms {
		if link.RoomID == roomA {
			linkA = link
		}
	}
	if err := service.RemoveRoomFromBooking(context.Background(), linkA.ID); err != nil {
		test.Fatalf("remove room failed: %v", err)
	}
	reduced, err := service.GetBooking(context.Background(), first.ID)
	if err != nil {
		test.Fatalf("get booking failed: %v", err)
	}
	if !reduced.TotalPrice.Equal(mustPrice(test, 400)) {
		test.Fatalf("expected total 400 after removing room-a, got %s", reduced.TotalPrice)
	}
	assertTotalMatchesLedger(test, service, reduced)
	for _, night := range []string{"2024-01-06", "2024-01-07"} {
		if store.ledger["room-a|"+night].Available {
			test.Fatalf("%s of the second booking was released", night)
		}
	}
	kept, err := service.GetBooking(context.Background(), second.ID)
	if err != nil {
		test.Fatalf("get second booking failed: %v", err)
	}
	assertTotalMatchesLedger(test, service, kept)
}

func TestCreateBookingRejectsNightsTakenWhileReserving(test *testing.T) {
	test.Parallel()
	store := &interceptStore{memoryStore: newMemoryStore(test)}
	seedRoom(test, store.memoryStore, "room-a", "2024-01-01", 5, 100)
	roomB := seedRoom(test, store.memoryStore, "room-b", "2024-01-01", 5, 100)
	store.onSetAvailability = func(roomID RoomID, flipped int64, err error) (int64, error) {
		if roomID == roomB && err == nil {
			return flipped - 1, nil
		}
		return flipped, err
	}
	logger := &recorderLogger{}
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithOperationLogger(logger))
	before := store.ledgerRows()

	_, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-04"), "room-a", "room-b"))
	if !errors.Is(err, ErrRoomUnavailable) {
		test.Fatalf("expected ErrRoomUnavailable, got %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerRows()) {
		test.Fatalf("ledger changed after a lost reservation race")
	}
	if len(store.bookings) != 0 {
		test.Fatalf("expected no bookings, got %d", len(store.bookings))
	}
	if entry := logger.last(test); entry.FailedStage != StageReserving {
		test.Fatalf("expected failure in reserving stage, got %+v", entry)
	}
}

func TestCreateBookingRollsBackWhenReservingFails(test *testing.T) {
	test.Parallel()
	store := &interceptStore{memoryStore: newMemoryStore(test)}
	seedRoom(test, store.memoryStore, "room-a", "2024-01-01", 5, 100)
	roomB := seedRoom(test, store.memoryStore, "room-b", "2024-01-01", 5, 100)
	storageFailure := errors.New("connection reset")
	store.onSetAvailability = func(roomID RoomID, flipped int64, err error) (int64, error) {
		if roomID == roomB {
			return 0, storageFailure
		}
		return flipped, err
	}
	logger := &recorderLogger{}
	service := mustService(test, store, fixedClock(2023, time.December, 20), WithOperationLogger(logger))
	before := store.ledgerRows()

	_, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-02", "2024-01-05"), "room-a", "room-b"))
	if !errors.Is(err, storageFailure) {
		test.Fatalf("expected storage failure, got %v", err)
	}
	if !reflect.DeepEqual(before, store.ledgerRows()) {
		test.Fatalf("ledger changed after failed reservation")
	}
	if entry := logger.last(test); entry.FailedStage != StageReserving {
		test.Fatalf("expected failure in reserving stage, got %+v", entry)
	}
}

func TestCreateBookingLocksEachRoomBeforeItsNights(test *testing.T) {
	test.Parallel()
	store := &interceptStore{memoryStore: newMemoryStore(test)}
	seedRoom(test, store.memoryStore, "room-a", "2024-01-01", 5, 100)
	seedRoom(test, store.memoryStore, "room-b", "2024-01-01", 5, 100)
	service := mustService(test, store, fixedClock(2023, time.December, 20))

	if _, err := service.CreateBooking(context.Background(), mustBookingRequest(test, testUser, mustStay(test, "2024-01-01", "2024-01-03"), "room-b", "room-a")); err != nil {
		test.Fatalf("create booking failed: %v", err)
	}
	expected := []string{"LockRoom room-a", "LockLedgerRange room-a", "LockRoom room-b", "LockLedgerRange room-b"}
	if !reflect.DeepEqual(expected, store.calls) {
		test.Fatalf("expected lock order %v, got %v", expected, store.calls)
	}
	if err := service.PurgeRoom(context.Background(), mustRoomID(test, "room-a")); !errors.Is(err, ErrRoomInUse) {
		test.Fatalf("expected ErrRoomInUse, got %v", err)
	}
}

// interceptStore runs transactions against itself so its overrides apply inside WithTx.
type interceptStore struct {
	*memoryStore
	calls             []string
	onSetAvailability func(roomID RoomID, flipped int64, err error) (int64, error)
}

func (store *interceptStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return store.memoryStore.WithTx(ctx, func(ctx context.Context, _ Store) error {
		return fn(ctx, store)
	})
}

func (store *interceptStore) LockRoom(ctx context.Context, roomID RoomID) (Room, error) {
	store.calls = append(store.calls, "LockRoom "+roomID.String())
	return store.memoryStore.LockRoom(ctx, roomID)
}

func (store *interceptStore) LockLedgerRange(ctx context.Context, roomID RoomID, start Date, end Date) ([]LedgerEntry, error) {
	store.calls = append(store.calls, "LockLedgerRange "+roomID.String())
	return store.memoryStore.LockLedgerRange(ctx, roomID, start, end)
}

func (store *interceptStore) SetLedgerAvailability(ctx context.Context, roomID RoomID, start Date, end Date, from bool, to bool) (int64, error) {
	flipped, err := store.memoryStore.SetLedgerAvailability(ctx, roomID, start, end, from, to)
	if store.onSetAvailability != nil {
		return store.onSetAvailability(roomID, flipped, err)
	}
	return flipped, err
}
