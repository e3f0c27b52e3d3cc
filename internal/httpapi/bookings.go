package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleCreateBooking(ctx *gin.Context) {
	var request createBookingRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with hotel_id, check_in and check_out"))
		return
	}
	hotelID, err := booking.NewHotelID(request.HotelID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	stay, err := parseStay(request.CheckIn, request.CheckOut)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	roomIDs, err := parseRoomIDs(request.RoomIDs)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	guests, err := booking.NewGuestCount(request.Adults, request.Children)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	bookingRequest, err := booking.NewBookingRequest(currentUser(ctx), hotelID, stay, roomIDs, request.SpecialRequests, guests)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	created, err := handler.service.CreateBooking(ctx.Request.Context(), bookingRequest)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking": newBookingPayload(created)})
}

func (handler *httpHandler) handleListBookings(ctx *gin.Context) {
	filter, err := booking.ParseBookingTimeFilter(ctx.Query("filter"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	pageNumber, err := queryInt(ctx, "page")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", err.Error()))
		return
	}
	pageSize, err := queryInt(ctx, "page_size")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", err.Error()))
		return
	}
	page := booking.NewPage(pageNumber, pageSize)
	records, err := handler.service.ListUserBookings(ctx.Request.Context(), currentUser(ctx), filter, page)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]bookingPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, newBookingPayload(record))
	}
	ctx.JSON(http.StatusOK, gin.H{
		"bookings":  payloads,
		"page":      page.Number(),
		"page_size": page.Size(),
	})
}

func (handler *httpHandler) handleGetBooking(ctx *gin.Context) {
	record, ok := handler.ownedBooking(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingPayload(record)})
}

func (handler *httpHandler) handleCancelBooking(ctx *gin.Context) {
	record, ok := handler.ownedBooking(ctx)
	if !ok {
		return
	}
	if err := handler.service.CancelBooking(ctx.Request.Context(), record.ID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleAddBookingRoom(ctx *gin.Context) {
	record, ok := handler.ownedBooking(ctx)
	if !ok {
		return
	}
	var request roomRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with room_id"))
		return
	}
	roomID, err := booking.NewRoomID(request.RoomID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if _, err := handler.service.AddRoomToBooking(ctx.Request.Context(), record.ID, roomID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithBooking(ctx, http.StatusCreated, record.ID)
}

func (handler *httpHandler) handleRemoveBookingRoom(ctx *gin.Context) {
	record, ok := handler.ownedBooking(ctx)
	if !ok {
		return
	}
	linkID, err := booking.NewBookingRoomID(ctx.Param("linkID"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	linked := false
	for _, link := range record.Rooms {
		if link.ID == linkID {
			linked = true
			break
		}
	}
	if !linked {
		handler.respondError(ctx, fmt.Errorf("%w: %s", booking.ErrBookingRoomNotFound, linkID))
		return
	}
	if err := handler.service.RemoveRoomFromBooking(ctx.Request.Context(), linkID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithBooking(ctx, http.StatusOK, record.ID)
}

func (handler *httpHandler) handlePayBooking(ctx *gin.Context) {
	record, ok := handler.ownedBooking(ctx)
	if !ok {
		return
	}
	paid, err := handler.service.MarkBookingPaid(ctx.Request.Context(), record.ID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"booking": newBookingPayload(paid)})
}

// ownedBooking loads the booking named in the path. Another user's booking answers as not found.
func (handler *httpHandler) ownedBooking(ctx *gin.Context) (booking.Booking, bool) {
	bookingID, err := booking.NewBookingID(ctx.Param("bookingID"))
	if err != nil {
		handler.respondError(ctx, err)
		return booking.Booking{}, false
	}
	record, err := handler.service.GetBooking(ctx.Request.Context(), bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return booking.Booking{}, false
	}
	if record.UserID != currentUser(ctx) {
		handler.respondError(ctx, fmt.Errorf("%w: %s", booking.ErrBookingNotFound, bookingID))
		return booking.Booking{}, false
	}
	return record, true
}

func (handler *httpHandler) respondWithBooking(ctx *gin.Context, status int, bookingID booking.BookingID) {
	record, err := handler.service.GetBooking(ctx.Request.Context(), bookingID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(status, gin.H{"booking": newBookingPayload(record)})
}

func queryInt(ctx *gin.Context, name string) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return value, nil
}
