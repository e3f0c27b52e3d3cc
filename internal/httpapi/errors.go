package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const retryAfterSeconds = "1"

var errorCodes = []struct {
	target error
	code   string
}{
	{booking.ErrBookingNotFound, "booking_not_found"},
	{booking.ErrBookingRoomNotFound, "booking_room_not_found"},
	{booking.ErrRoomNotFound, "room_not_found"},
	{booking.ErrCartNotFound, "cart_not_found"},
	{booking.ErrCartRoomNotFound, "cart_room_not_found"},
	{booking.ErrLedgerEntryNotFound, "ledger_entry_not_found"},
	{booking.ErrRoomUnavailable, "room_unavailable"},
	{booking.ErrCartLimitExceeded, "cart_limit_exceeded"},
	{booking.ErrLedgerCoverageGap, "ledger_coverage_gap"},
	{booking.ErrLedgerEntryHeld, "ledger_entry_held"},
	{booking.ErrDuplicateLedgerEntry, "duplicate_ledger_entry"},
	{booking.ErrRoomExists, "room_exists"},
	{booking.ErrRoomInUse, "room_in_use"},
	{booking.ErrRoomAlreadyInBooking, "room_already_in_booking"},
	{booking.ErrRoomAlreadyInCart, "room_already_in_cart"},
	{booking.ErrTransientConflict, "transient_conflict"},
	{booking.ErrInvalidDateRange, "invalid_date_range"},
	{booking.ErrInvalidDate, "invalid_date"},
	{booking.ErrInvalidPrice, "invalid_price"},
	{booking.ErrInvalidGuestCount, "invalid_guest_count"},
	{booking.ErrInvalidHorizon, "invalid_horizon"},
	{booking.ErrInvalidBookingFilter, "invalid_filter"},
	{booking.ErrEmptyRoomSet, "empty_room_set"},
	{booking.ErrDuplicateRoom, "duplicate_room"},
	{booking.ErrSpecialRequestsTooLong, "special_requests_too_long"},
	{booking.ErrRoomHotelMismatch, "room_hotel_mismatch"},
	{booking.ErrLastBookingRoom, "last_booking_room"},
}

// statusFor maps an error class to the HTTP status it answers with.
func statusFor(err error) int {
	switch booking.Classify(err) {
	case booking.ClassNotFound:
		return http.StatusNotFound
	case booking.ClassConflict:
		return http.StatusConflict
	case booking.ClassInvalidRequest:
		return http.StatusBadRequest
	case booking.ClassTransientConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// codeFor returns the stable code and message for err.
func codeFor(err error) (string, string) {
	for _, candidate := range errorCodes {
		if errors.Is(err, candidate.target) {
			return candidate.code, candidate.target.Error()
		}
	}
	if booking.Classify(err) == booking.ClassInvalidRequest {
		return "invalid_request", err.Error()
	}
	return "internal_error", "internal error"
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status := statusFor(err)
	code, message := codeFor(err)
	switch status {
	case http.StatusInternalServerError:
		handler.logger.Error("request failed", zap.String("route", ctx.FullPath()), zap.Error(err))
	case http.StatusServiceUnavailable:
		ctx.Header("Retry-After", retryAfterSeconds)
	}
	ctx.JSON(status, errorResponse(code, message))
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
