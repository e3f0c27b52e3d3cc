package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userHeader      = "X-User-ID"
	userContextKey  = "staybook_user_id"
	shutdownTimeout = 5 * time.Second
)

// Service is the booking surface the HTTP facade exposes. *booking.Service satisfies it.
type Service interface {
	CreateBooking(ctx context.Context, request booking.BookingRequest) (booking.Booking, error)
	GetBooking(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error)
	CancelBooking(ctx context.Context, bookingID booking.BookingID) error
	ListUserBookings(ctx context.Context, userID booking.UserID, filter booking.BookingTimeFilter, page booking.Page) ([]booking.Booking, error)
	AddRoomToBooking(ctx context.Context, bookingID booking.BookingID, roomID booking.RoomID) (booking.BookingRoom, error)
	RemoveRoomFromBooking(ctx context.Context, linkID booking.BookingRoomID) error
	MarkBookingPaid(ctx context.Context, bookingID booking.BookingID) (booking.Booking, error)

	AddCart(ctx context.Context, request booking.CartRequest) (booking.CartBooking, error)
	GetCart(ctx context.Context, cartID booking.CartID) (booking.CartBooking, error)
	ListCarts(ctx context.Context, userID booking.UserID) ([]booking.CartBooking, error)
	RemoveCart(ctx context.Context, cartID booking.CartID) error
	AddRoomToCart(ctx context.Context, cartID booking.CartID, roomID booking.RoomID) (booking.CartRoom, error)
	RemoveRoomFromCart(ctx context.Context, cartID booking.CartID, roomID booking.RoomID) error
	Checkout(ctx context.Context, cartID booking.CartID, hotelID booking.HotelID) (booking.Booking, error)

	IsRangeFree(ctx context.Context, roomID booking.RoomID, stay booking.StayRange) (bool, error)
	AllFree(ctx context.Context, roomIDs []booking.RoomID, stay booking.StayRange) (bool, error)

	InitializeRoom(ctx context.Context, room booking.Room, horizonDays int) error
	ExtendHorizon(ctx context.Context, roomID booking.RoomID, numDays int, price booking.Price) (booking.Date, error)
	PurgeRoom(ctx context.Context, roomID booking.RoomID) error
	GetRoom(ctx context.Context, roomID booking.RoomID) (booking.Room, error)
	GetEntry(ctx context.Context, roomID booking.RoomID, date booking.Date) (booking.LedgerEntry, error)
	GetRange(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) ([]booking.LedgerEntry, error)
	SumPrice(ctx context.Context, roomID booking.RoomID, start booking.Date, end booking.Date) (booking.Price, error)
	LatestDate(ctx context.Context, roomID booking.RoomID) (booking.Date, bool, error)
	UpdateEntryPrice(ctx context.Context, roomID booking.RoomID, date booking.Date, price booking.Price) error
}

// RequestObserver records one served request.
type RequestObserver func(method string, route string, status int, elapsed time.Duration)

// Config aggregates router settings.
type Config struct {
	AllowedOrigins []string
	Observer       RequestObserver
	// HorizonDays is the ledger created for a room registered without an explicit horizon.
	HorizonDays int
}

type httpHandler struct {
	logger      *zap.Logger
	service     Service
	horizonDays int
}

// NewRouter wires the booking routes onto a gin engine.
func NewRouter(service Service, cfg Config, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	horizonDays := cfg.HorizonDays
	if horizonDays <= 0 {
		horizonDays = booking.DefaultHorizonDays
	}
	handler := &httpHandler{logger: logger, service: service, horizonDays: horizonDays}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Observer != nil {
		router.Use(observeRequests(cfg.Observer))
	}
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept", userHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/v1")
	api.GET("/availability", handler.handleAvailability)

	guest := api.Group("")
	guest.Use(requireUser())
	guest.POST("/bookings", handler.handleCreateBooking)
	guest.GET("/bookings", handler.handleListBookings)
	guest.GET("/bookings/:bookingID", handler.handleGetBooking)
	guest.DELETE("/bookings/:bookingID", handler.handleCancelBooking)
	guest.POST("/bookings/:bookingID/rooms", handler.handleAddBookingRoom)
	guest.DELETE("/bookings/:bookingID/rooms/:linkID", handler.handleRemoveBookingRoom)
	guest.POST("/bookings/:bookingID/payment", handler.handlePayBooking)

	guest.POST("/carts", handler.handleAddCart)
	guest.GET("/carts", handler.handleListCarts)
	guest.GET("/carts/:cartID", handler.handleGetCart)
	guest.DELETE("/carts/:cartID", handler.handleRemoveCart)
	guest.POST("/carts/:cartID/rooms", handler.handleAddCartRoom)
	guest.DELETE("/carts/:cartID/rooms/:roomID", handler.handleRemoveCartRoom)
	guest.POST("/carts/:cartID/checkout", handler.handleCheckout)

	api.POST("/rooms", handler.handleInitializeRoom)
	api.GET("/rooms/:roomID", handler.handleGetRoom)
	api.DELETE("/rooms/:roomID", handler.handlePurgeRoom)
	api.POST("/rooms/:roomID/horizon", handler.handleExtendHorizon)
	api.GET("/rooms/:roomID/calendar", handler.handleCalendar)
	api.GET("/rooms/:roomID/calendar/:date", handler.handleGetEntry)
	api.PUT("/rooms/:roomID/calendar/:date", handler.handleUpdateEntryPrice)
	api.GET("/rooms/:roomID/quote", handler.handleQuote)

	return router
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.String("addr", addr), zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
