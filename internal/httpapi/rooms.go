package httpapi

import (
	"net/http"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleInitializeRoom(ctx *gin.Context) {
	var request initializeRoomRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with room_id, hotel_id and base_price"))
		return
	}
	roomID, err := booking.NewRoomID(request.RoomID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	hotelID, err := booking.NewHotelID(request.HotelID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	basePrice, err := booking.ParsePrice(request.BasePrice)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	horizonDays := request.HorizonDays
	if horizonDays == 0 {
		horizonDays = handler.horizonDays
	}
	room := booking.Room{ID: roomID, HotelID: hotelID, BasePrice: basePrice}
	if err := handler.service.InitializeRoom(ctx.Request.Context(), room, horizonDays); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithRoom(ctx, http.StatusCreated, roomID)
}

func (handler *httpHandler) handleGetRoom(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	handler.respondWithRoom(ctx, http.StatusOK, roomID)
}

func (handler *httpHandler) handlePurgeRoom(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	if err := handler.service.PurgeRoom(ctx.Request.Context(), roomID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleExtendHorizon(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	var request extendHorizonRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with days"))
		return
	}
	var price booking.Price
	if request.Price == "" {
		room, err := handler.service.GetRoom(ctx.Request.Context(), roomID)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		price = room.BasePrice
	} else {
		parsed, err := booking.ParsePrice(request.Price)
		if err != nil {
			handler.respondError(ctx, err)
			return
		}
		price = parsed
	}
	latest, err := handler.service.ExtendHorizon(ctx.Request.Context(), roomID, request.Days, price)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room_id": roomID.String(), "latest_date": latest.String()})
}

func (handler *httpHandler) handleCalendar(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	start, err := booking.ParseDate(ctx.Query("start"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	end, err := booking.ParseDate(ctx.Query("end"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	entries, err := handler.service.GetRange(ctx.Request.Context(), roomID, start, end)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"room_id": roomID.String(),
		"start":   start.String(),
		"end":     end.String(),
		"entries": newEntryPayloads(entries),
	})
}

func (handler *httpHandler) handleGetEntry(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	date, err := booking.ParseDate(ctx.Param("date"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	entry, err := handler.service.GetEntry(ctx.Request.Context(), roomID, date)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room_id": roomID.String(), "entry": newEntryPayloads([]booking.LedgerEntry{entry})[0]})
}

func (handler *httpHandler) handleUpdateEntryPrice(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	date, err := booking.ParseDate(ctx.Param("date"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request priceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with price"))
		return
	}
	price, err := booking.ParsePrice(request.Price)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.service.UpdateEntryPrice(ctx.Request.Context(), roomID, date, price); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// handleQuote prices a stay for one room and reports whether every night is free.
func (handler *httpHandler) handleQuote(ctx *gin.Context) {
	roomID, ok := handler.pathRoomID(ctx)
	if !ok {
		return
	}
	stay, err := parseStay(ctx.Query("check_in"), ctx.Query("check_out"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	available, err := handler.service.IsRangeFree(ctx.Request.Context(), roomID, stay)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	total, err := handler.service.SumPrice(ctx.Request.Context(), roomID, stay.CheckIn(), stay.CheckOut())
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"room_id":     roomID.String(),
		"check_in":    stay.CheckIn().String(),
		"check_out":   stay.CheckOut().String(),
		"nights":      stay.Nights(),
		"available":   available,
		"total_price": total.String(),
	})
}

func (handler *httpHandler) handleAvailability(ctx *gin.Context) {
	roomIDs, err := parseRoomIDs(ctx.QueryArray("room_id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	stay, err := parseStay(ctx.Query("check_in"), ctx.Query("check_out"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	available, err := handler.service.AllFree(ctx.Request.Context(), roomIDs, stay)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"available": available})
}

func (handler *httpHandler) pathRoomID(ctx *gin.Context) (booking.RoomID, bool) {
	roomID, err := booking.NewRoomID(ctx.Param("roomID"))
	if err != nil {
		handler.respondError(ctx, err)
		return booking.RoomID{}, false
	}
	return roomID, true
}

func (handler *httpHandler) respondWithRoom(ctx *gin.Context, status int, roomID booking.RoomID) {
	room, err := handler.service.GetRoom(ctx.Request.Context(), roomID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payload := roomPayload{
		RoomID:    room.ID.String(),
		HotelID:   room.HotelID.String(),
		BasePrice: room.BasePrice.String(),
	}
	latest, found, err := handler.service.LatestDate(ctx.Request.Context(), roomID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if found {
		payload.LatestDate = latest.String()
	}
	ctx.JSON(status, gin.H{"room": payload})
}
