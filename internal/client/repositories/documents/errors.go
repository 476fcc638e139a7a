package documents

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoDB server error codes mapped to the taxonomy.
const (
	codeUnauthorized         = 13
	codeAuthenticationFailed = 18
)

// wrapErr prefixes err with op and attaches the matching taxonomy sentinel.
func wrapErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, common.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, common.ErrAlreadyExists)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), common.IsTimeout(err):
		return fmt.Errorf("%s: %w: %w", op, common.ErrNetwork, err)
	case isUnauthorized(err):
		return fmt.Errorf("%s: %w: %w", op, common.ErrUnauthorized, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isUnauthorized(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeUnauthorized) || se.HasErrorCode(codeAuthenticationFailed)
}
