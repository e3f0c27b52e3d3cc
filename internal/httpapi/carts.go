package httpapi

import (
	"fmt"
	"net/http"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/gin-gonic/gin"
)

func (handler *httpHandler) handleAddCart(ctx *gin.Context) {
	var request stayRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with check_in and check_out"))
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
	cartRequest, err := booking.NewCartRequest(currentUser(ctx), stay, roomIDs, request.SpecialRequests, guests)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	cart, err := handler.service.AddCart(ctx.Request.Context(), cartRequest)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"cart": newCartPayload(cart)})
}

func (handler *httpHandler) handleListCarts(ctx *gin.Context) {
	carts, err := handler.service.ListCarts(ctx.Request.Context(), currentUser(ctx))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]cartPayload, 0, len(carts))
	for _, cart := range carts {
		payloads = append(payloads, newCartPayload(cart))
	}
	ctx.JSON(http.StatusOK, gin.H{"carts": payloads, "limit": booking.MaxCartBookings})
}

func (handler *httpHandler) handleGetCart(ctx *gin.Context) {
	cart, ok := handler.ownedCart(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"cart": newCartPayload(cart)})
}

func (handler *httpHandler) handleRemoveCart(ctx *gin.Context) {
	cart, ok := handler.ownedCart(ctx)
	if !ok {
		return
	}
	if err := handler.service.RemoveCart(ctx.Request.Context(), cart.ID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (handler *httpHandler) handleAddCartRoom(ctx *gin.Context) {
	cart, ok := handler.ownedCart(ctx)
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
	if _, err := handler.service.AddRoomToCart(ctx.Request.Context(), cart.ID, roomID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithCart(ctx, http.StatusCreated, cart.ID)
}

func (handler *httpHandler) handleRemoveCartRoom(ctx *gin.Context) {
	cart, ok := handler.ownedCart(ctx)
	if !ok {
		return
	}
	roomID, err := booking.NewRoomID(ctx.Param("roomID"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.service.RemoveRoomFromCart(ctx.Request.Context(), cart.ID, roomID); err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.respondWithCart(ctx, http.StatusOK, cart.ID)
}

func (handler *httpHandler) handleCheckout(ctx *gin.Context) {
	cart, ok := handler.ownedCart(ctx)
	if !ok {
		return
	}
	var request checkoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body with hotel_id"))
		return
	}
	hotelID, err := booking.NewHotelID(request.HotelID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	created, err := handler.service.Checkout(ctx.Request.Context(), cart.ID, hotelID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"booking": newBookingPayload(created)})
}

// ownedCart loads the cart named in the path. Another user's cart answers as not found.
func (handler *httpHandler) ownedCart(ctx *gin.Context) (booking.CartBooking, bool) {
	cartID, err := booking.NewCartID(ctx.Param("cartID"))
	if err != nil {
		handler.respondError(ctx, err)
		return booking.CartBooking{}, false
	}
	cart, err := handler.service.GetCart(ctx.Request.Context(), cartID)
	if err != nil {
		handler.respondError(ctx, err)
		return booking.CartBooking{}, false
	}
	if cart.UserID != currentUser(ctx) {
		handler.respondError(ctx, fmt.Errorf("%w: %s", booking.ErrCartNotFound, cartID))
		return booking.CartBooking{}, false
	}
	return cart, true
}

func (handler *httpHandler) respondWithCart(ctx *gin.Context, status int, cartID booking.CartID) {
	cart, err := handler.service.GetCart(ctx.Request.Context(), cartID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(status, gin.H{"cart": newCartPayload(cart)})
}
