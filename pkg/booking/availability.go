package booking

import (
	"context"
	"fmt"
)

// CoveragePolicy decides what a night without a ledger entry means.
type CoveragePolicy string

const (
	// CoverageRequireFull rejects any stay that touches a night with no ledger entry.
	CoverageRequireFull CoveragePolicy = "require_full"
	// CoverageTreatMissingAsFree books missing nights as free of charge.
	CoverageTreatMissingAsFree CoveragePolicy = "treat_missing_as_free"
)

// ParseCoveragePolicy parses a policy name; empty selects CoverageRequireFull.
func ParseCoveragePolicy(raw string) (CoveragePolicy, error) {
	switch CoveragePolicy(raw) {
	case "", CoverageRequireFull:
		return CoverageRequireFull, nil
	case CoverageTreatMissingAsFree:
		return CoverageTreatMissingAsFree, nil
	default:
		return "", fmt.Errorf("%w: unknown coverage policy %q", ErrInvalidServiceConfig, raw)
	}
}

// evaluateRange checks the entries found for one room across stay.
// entries must be the rows in [check-in, check-out) of that room.
func evaluateRange(roomID RoomID, stay StayRange, entries []LedgerEntry, policy CoveragePolicy) error {
	for _, entry := range entries {
		if !entry.Available {
			return fmt.Errorf("%w: room %s is held on %s", ErrRoomUnavailable, roomID, entry.Date)
		}
	}
	if policy == CoverageTreatMissingAsFree {
		return nil
	}
	if missing := missingNights(stay, entries); len(missing) > 0 {
		return fmt.Errorf("%w: room %s has no ledger entry on %s", ErrLedgerCoverageGap, roomID, missing[0])
	}
	return nil
}

func sumEntries(entries []LedgerEntry) Price {
	total := ZeroPrice()
	for _, entry := range entries {
		total = total.Add(entry.Price)
	}
	return total
}

// IsRangeFree reports whether every night of stay is bookable for roomID under the configured policy.
// It reads without locking and is meant for listing and search consumers.
func (service *Service) IsRangeFree(ctx context.Context, roomID RoomID, stay StayRange) (bool, error) {
	entries, err := service.store.ListLedgerRange(ctx, roomID, stay.CheckIn(), stay.CheckOut())
	if err != nil {
		return false, err
	}
	return isBookable(evaluateRange(roomID, stay, entries, service.coverage))
}

// AllFree reports whether every room in roomIDs is free across stay.
func (service *Service) AllFree(ctx context.Context, roomIDs []RoomID, stay StayRange) (bool, error) {
	if len(roomIDs) == 0 {
		return false, ErrEmptyRoomSet
	}
	for _, roomID := range roomIDs {
		free, err := service.IsRangeFree(ctx, roomID, stay)
		if err != nil {
			return false, err
		}
		if !free {
			return false, nil
		}
	}
	return true, nil
}

func isBookable(evaluation error) (bool, error) {
	if evaluation == nil {
		return true, nil
	}
	if IsConflict(evaluation) {
		return false, nil
	}
	return false, evaluation
}
