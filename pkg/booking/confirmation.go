package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// ConfirmationSource draws a candidate confirmation number.
type ConfirmationSource func() (ConfirmationNumber, error)

// RandomConfirmationNumber draws uniformly from the 9-digit range.
func RandomConfirmationNumber() (ConfirmationNumber, error) {
	span := big.NewInt(maxConfirmationNumber - minConfirmationNumber + 1)
	offset, err := rand.Int(rand.Reader, span)
	if err != nil {
		return 0, fmt.Errorf("confirmation number: %w", err)
	}
	return ConfirmationNumber(minConfirmationNumber + offset.Int64()), nil
}

func (service *Service) drawConfirmationNumber(ctx context.Context, txStore Store) (ConfirmationNumber, error) {
	for attempt := 0; attempt < maxConfirmationNumberDraws; attempt++ {
		candidate, err := service.confirmations()
		if err != nil {
			return 0, err
		}
		number, err := NewConfirmationNumber(candidate.Int64())
		if err != nil {
			return 0, err
		}
		exists, err := txStore.ConfirmationNumberExists(ctx, number)
		if err != nil {
			return 0, err
		}
		if !exists {
			return number, nil
		}
	}
	return 0, fmt.Errorf("%w: no unused confirmation number after %d draws", ErrTransientConflict, maxConfirmationNumberDraws)
}
