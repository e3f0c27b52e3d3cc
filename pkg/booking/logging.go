package booking

import (
	"context"
	"time"
)

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// Stage is the point a booking transaction reached.
type Stage string

const (
	StageValidating Stage = "validating"
	StageReserving  Stage = "reserving"
	StagePersisting Stage = "persisting"
	StageCommitted  Stage = "committed"
	StageAborted    Stage = "aborted"
)

// OperationLog describes a state-changing booking operation.
type OperationLog struct {
	Operation  string
	UserID     UserID
	BookingID  BookingID
	CartID     CartID
	RoomIDs    []RoomID
	Stay       StayRange
	TotalPrice Price
	Stage      Stage
	// FailedStage is the stage that was running when an aborted operation failed.
	FailedStage Stage
	Status      string
	Error       error
	Duration    time.Duration
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithEventPublisher wires a publisher notified after booking commits.
func WithEventPublisher(publisher EventPublisher) ServiceOption {
	return func(service *Service) {
		service.publisher = publisher
	}
}

// WithCalendarCache wires a read-through cache for ledger ranges.
func WithCalendarCache(cache CalendarCache) ServiceOption {
	return func(service *Service) {
		service.calendar = cache
	}
}

// WithCoveragePolicy selects how nights without ledger entries are treated.
func WithCoveragePolicy(policy CoveragePolicy) ServiceOption {
	return func(service *Service) {
		service.coverage = policy
	}
}

// WithTransactionTimeout bounds every store transaction.
func WithTransactionTimeout(timeout time.Duration) ServiceOption {
	return func(service *Service) {
		if timeout > 0 {
			service.txTimeout = timeout
		}
	}
}

// WithConfirmationSource replaces the random confirmation number generator.
func WithConfirmationSource(source ConfirmationSource) ServiceOption {
	return func(service *Service) {
		if source != nil {
			service.confirmations = source
		}
	}
}
