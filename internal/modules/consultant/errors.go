package consultant

import (
	"fmt"

	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
)

// TranslateStoreError maps coded aggregate errors onto the package sentinels
// while keeping the original reachable.
func TranslateStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch domainagg.CodeOf(err) {
	case domainagg.CodeNotFound:
		return fmt.Errorf("%w: %w", pkgerrors.ErrNotFound, err)
	case domainagg.CodeConflict, domainagg.CodeRetryable:
		return fmt.Errorf("%w: %w", pkgerrors.ErrConflict, err)
	case domainagg.CodeValidation, domainagg.CodePreconditionFailed, domainagg.CodeInvariantViolation:
		return fmt.Errorf("%w: %w", pkgerrors.ErrInvalidArgument, err)
	default:
		return err
	}
}
