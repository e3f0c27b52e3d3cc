package booking

import "time"

const (
	operationCreateBooking     = "create_booking"
	operationCancelBooking     = "cancel_booking"
	operationAddBookingRoom    = "add_booking_room"
	operationRemoveBookingRoom = "remove_booking_room"
	operationMarkPaid          = "mark_paid"
	operationAddCart           = "add_cart"
	operationRemoveCart        = "remove_cart"
	operationAddCartRoom       = "add_cart_room"
	operationRemoveCartRoom    = "remove_cart_room"
	operationCheckout          = "checkout"
	operationInitializeRoom    = "initialize_room"
	operationExtendHorizon     = "extend_horizon"
	operationPurgeRoom         = "purge_room"
	operationUpdateEntryPrice  = "update_entry_price"
	operationPublishEvent      = "publish_event"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationService = "service"
	errorSubjectTx        = "tx"
	errorCodeTimeout      = "timeout"

	// MaxCartBookings caps the carts a single user may hold at once.
	MaxCartBookings = 5
	// DefaultHorizonDays is the ledger horizon created for a new room.
	DefaultHorizonDays = 30
	// MaxHorizonDays bounds a single initialize or extend call.
	MaxHorizonDays = 730
	// MaxSpecialRequestsLength bounds the free-text special requests.
	MaxSpecialRequestsLength = 1000

	DefaultPageSize = 10
	MaxPageSize     = 100

	DefaultTransactionTimeout = 5 * time.Second

	minConfirmationNumber       int64 = 100000000
	maxConfirmationNumber       int64 = 999999999
	maxConfirmationNumberDraws        = 5
)
