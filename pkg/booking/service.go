package booking

import (
	"context"
	"fmt"
	"time"
)

// Service contains the booking engine over a Store.
type Service struct {
	store         Store
	nowFn         func() time.Time
	logger        OperationLogger
	publisher     EventPublisher
	calendar      CalendarCache
	confirmations ConfirmationSource
	coverage      CoveragePolicy
	txTimeout     time.Duration
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:         store,
		nowFn:         now,
		confirmations: RandomConfirmationNumber,
		coverage:      CoverageRequireFull,
		txTimeout:     DefaultTransactionTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	if _, err := ParseCoveragePolicy(string(service.coverage)); err != nil {
		return nil, err
	}
	return service, nil
}

// CoveragePolicy returns the policy applied to nights without ledger entries.
func (service *Service) CoveragePolicy() CoveragePolicy {
	return service.coverage
}

// Today returns the current calendar day in UTC.
func (service *Service) Today() Date {
	return DateOf(service.nowFn().UTC())
}

// runInTx executes fn in one store transaction bounded by the configured timeout.
// A failure caused by the deadline surfaces as ErrTransientConflict.
func (service *Service) runInTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	txCtx, cancel := context.WithTimeout(ctx, service.txTimeout)
	defer cancel()
	err := service.store.WithTx(txCtx, fn)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && txCtx.Err() != nil && Classify(err) == ClassUnexpected {
		return WrapError(errorOperationService, errorSubjectTx, errorCodeTimeout, fmt.Errorf("%w: %w", ErrTransientConflict, err))
	}
	return err
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

func (service *Service) elapsedSince(start time.Time) time.Duration {
	elapsed := service.nowFn().Sub(start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
