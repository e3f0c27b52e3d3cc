package horizon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"go.uber.org/zap"
)

const (
	DefaultInterval   = time.Hour
	DefaultMinDays    = 14
	DefaultTargetDays = 30
)

// ErrInvalidKeeperConfig reports unusable keeper settings.
var ErrInvalidKeeperConfig = errors.New("invalid horizon keeper config")

// Ledger is the part of the booking service the keeper drives.
type Ledger interface {
	ListRooms(ctx context.Context) ([]booking.Room, error)
	LatestDate(ctx context.Context, roomID booking.RoomID) (booking.Date, bool, error)
	ExtendHorizon(ctx context.Context, roomID booking.RoomID, numDays int, price booking.Price) (booking.Date, error)
	Today() booking.Date
}

// Config tunes the keeper. A room is topped up to TargetDays ahead once fewer than MinDays remain.
type Config struct {
	Interval   time.Duration
	MinDays    int
	TargetDays int
}

// Summary counts the outcome of one pass.
type Summary struct {
	Extended int
	Skipped  int
	Failed   int
}

// Keeper periodically extends every room's ledger so bookable days stay ahead of today.
type Keeper struct {
	ledger Ledger
	config Config
	logger *zap.Logger
}

// NewKeeper validates config, filling zero fields with defaults.
func NewKeeper(ledger Ledger, config Config, logger *zap.Logger) (*Keeper, error) {
	if ledger == nil {
		return nil, fmt.Errorf("%w: ledger is nil", ErrInvalidKeeperConfig)
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MinDays <= 0 {
		config.MinDays = DefaultMinDays
	}
	if config.TargetDays <= 0 {
		config.TargetDays = DefaultTargetDays
	}
	if config.TargetDays < config.MinDays {
		return nil, fmt.Errorf("%w: target %d is below minimum %d", ErrInvalidKeeperConfig, config.TargetDays, config.MinDays)
	}
	if config.TargetDays > booking.MaxHorizonDays {
		return nil, fmt.Errorf("%w: target %d exceeds %d", ErrInvalidKeeperConfig, config.TargetDays, booking.MaxHorizonDays)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keeper{ledger: ledger, config: config, logger: logger}, nil
}

// Run passes once immediately and then on every tick until ctx is cancelled.
func (keeper *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(keeper.config.Interval)
	defer ticker.Stop()
	keeper.logger.Info("horizon keeper started",
		zap.Duration("interval", keeper.config.Interval),
		zap.Int("min_days", keeper.config.MinDays),
		zap.Int("target_days", keeper.config.TargetDays),
	)
	for {
		if _, err := keeper.RunOnce(ctx); err != nil && ctx.Err() == nil {
			keeper.logger.Error("horizon pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			keeper.logger.Info("horizon keeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce tops up every room that is short of the minimum horizon.
// A failure on one room is logged and does not stop the pass.
func (keeper *Keeper) RunOnce(ctx context.Context) (Summary, error) {
	rooms, err := keeper.ledger.ListRooms(ctx)
	if err != nil {
		return Summary{}, err
	}
	today := keeper.ledger.Today()
	summary := Summary{}
	for _, room := range rooms {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		days, err := keeper.missingDays(ctx, room.ID, today)
		if err != nil {
			summary.Failed++
			keeper.logger.Warn("horizon lookup failed", zap.String("room_id", room.ID.String()), zap.Error(err))
			continue
		}
		if days == 0 {
			summary.Skipped++
			continue
		}
		latest, err := keeper.ledger.ExtendHorizon(ctx, room.ID, days, room.BasePrice)
		if err != nil {
			summary.Failed++
			keeper.logger.Warn("horizon extension failed", zap.String("room_id", room.ID.String()), zap.Int("days", days), zap.Error(err))
			continue
		}
		summary.Extended++
		keeper.logger.Info("horizon extended",
			zap.String("room_id", room.ID.String()),
			zap.Int("days", days),
			zap.String("latest", latest.String()),
		)
	}
	return summary, nil
}

// missingDays returns how many days to append so the room reaches the target, or 0 when it is not short.
func (keeper *Keeper) missingDays(ctx context.Context, roomID booking.RoomID, today booking.Date) (int, error) {
	latest, ok, err := keeper.ledger.LatestDate(ctx, roomID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return keeper.config.TargetDays, nil
	}
	remaining := today.DaysUntil(latest) + 1
	if remaining >= keeper.config.MinDays {
		return 0, nil
	}
	target := today.AddDays(keeper.config.TargetDays - 1)
	days := latest.DaysUntil(target)
	if days > booking.MaxHorizonDays {
		days = booking.MaxHorizonDays
	}
	return days, nil
}
