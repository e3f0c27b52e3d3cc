package booking

import "context"

// GetBooking returns a booking with its room links.
func (service *Service) GetBooking(ctx context.Context, bookingID BookingID) (Booking, error) {
	return service.store.GetBooking(ctx, bookingID)
}

// ListUserBookings pages through the user's bookings, newest check-in first.
// Previous selects stays that checked in today or earlier; upcoming selects later stays.
func (service *Service) ListUserBookings(ctx context.Context, userID UserID, filter BookingTimeFilter, page Page) ([]Booking, error) {
	if _, err := ParseBookingTimeFilter(string(filter)); err != nil {
		return nil, err
	}
	if filter == "" {
		filter = BookingsAll
	}
	return service.store.ListUserBookings(ctx, BookingQuery{
		UserID: userID,
		Filter: filter,
		Today:  service.Today(),
		Page:   NewPage(page.Number(), page.Size()),
	})
}

// MarkBookingPaid records a successful payment. It is idempotent and never touches the ledger.
func (service *Service) MarkBookingPaid(ctx context.Context, bookingID BookingID) (Booking, error) {
	startedAt := service.nowFn()
	var paid Booking
	operationError := service.runInTx(ctx, func(ctx context.Context, txStore Store) error {
		booking, err := txStore.LockBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if !booking.Paid {
			if err := txStore.MarkBookingPaid(ctx, bookingID); err != nil {
				return err
			}
			booking.Paid = true
		}
		paid = booking
		return nil
	})
	service.logOperation(ctx, OperationLog{
		Operation:  operationMarkPaid,
		UserID:     paid.UserID,
		BookingID:  bookingID,
		TotalPrice: paid.TotalPrice,
		Error:      operationError,
		Duration:   service.elapsedSince(startedAt),
	})
	if operationError != nil {
		return Booking{}, operationError
	}
	return paid, nil
}
