// Package services contains the credential lifecycle: one-time codes,
// pending registrations and their promotion, password and reset-token
// management, profile operations, and the AuthService that the transport
// layer calls.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
)

// domainErrors are passed to callers unchanged; anything else is logged
// and replaced by common.ErrorInternal.
var domainErrors = []error{
	common.ErrorValidation,
	common.ErrorConflict,
	common.ErrorNotFound,
	common.ErrInvalidCode,
	common.ErrorUnauthorized,
	common.ErrInvalidOrExpiredToken,
	common.ErrDependencyFailure,
	common.ErrAlreadyPromoted,
	common.ErrorForbidden,
}

func translateError(ctx context.Context, logger logging.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	logger.Error(ctx, "operation failed", "op", op, "error", err)
	return common.ErrorInternal
}
