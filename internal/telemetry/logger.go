package telemetry

import (
	"context"

	"github.com/MarkoPoloResearchLab/staybook/pkg/booking"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const operationLogMessage = "booking operation"

// ZapOperationLogger writes booking operation logs through zap.
type ZapOperationLogger struct {
	logger *zap.Logger
}

// NewZapOperationLogger wraps logger; a nil logger discards everything.
func NewZapOperationLogger(logger *zap.Logger) *ZapOperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapOperationLogger{logger: logger}
}

// LogOperation implements booking.OperationLogger.
// Business conflicts and rejected requests log at warn; unexpected failures at error.
func (operationLogger *ZapOperationLogger) LogOperation(_ context.Context, entry booking.OperationLog) {
	fields := operationFields(entry)
	switch booking.Classify(entry.Error) {
	case "":
		operationLogger.logger.Info(operationLogMessage, fields...)
	case booking.ClassUnexpected:
		operationLogger.logger.Error(operationLogMessage, fields...)
	default:
		operationLogger.logger.Warn(operationLogMessage, fields...)
	}
}

func operationFields(entry booking.OperationLog) []zapcore.Field {
	fields := []zapcore.Field{
		zap.String("operation", entry.Operation),
		zap.String("status", entry.Status),
		zap.Duration("duration", entry.Duration),
	}
	if entry.Stage != "" {
		fields = append(fields, zap.String("stage", string(entry.Stage)))
	}
	if entry.FailedStage != "" {
		fields = append(fields, zap.String("failed_stage", string(entry.FailedStage)))
	}
	if value := entry.UserID.String(); value != "" {
		fields = append(fields, zap.String("user_id", value))
	}
	if value := entry.BookingID.String(); value != "" {
		fields = append(fields, zap.String("booking_id", value))
	}
	if value := entry.CartID.String(); value != "" {
		fields = append(fields, zap.String("cart_id", value))
	}
	if len(entry.RoomIDs) > 0 {
		roomIDs := make([]string, 0, len(entry.RoomIDs))
		for _, roomID := range entry.RoomIDs {
			roomIDs = append(roomIDs, roomID.String())
		}
		fields = append(fields, zap.Strings("room_ids", roomIDs))
	}
	if entry.Stay.Nights() > 0 {
		fields = append(fields, zap.String("stay", entry.Stay.String()))
	}
	if !entry.TotalPrice.Decimal().IsZero() {
		fields = append(fields, zap.String("total_price", entry.TotalPrice.String()))
	}
	if entry.Error != nil {
		fields = append(fields,
			zap.String("error_class", string(booking.Classify(entry.Error))),
			zap.Error(entry.Error),
		)
	}
	return fields
}

// FanOut forwards every operation log to each logger in order.
type FanOut []booking.OperationLogger

// LogOperation implements booking.OperationLogger.
func (loggers FanOut) LogOperation(ctx context.Context, entry booking.OperationLog) {
	for _, logger := range loggers {
		if logger != nil {
			logger.LogOperation(ctx, entry)
		}
	}
}
