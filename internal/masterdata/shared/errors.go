package shared

import (
	"fmt"

	internalshared "github.com/papeleria/papeleria/internal/shared"
)

var (
	ErrNotFound  = internalshared.ErrNotFound
	ErrDuplicate = internalshared.ErrDuplicate
	ErrInvalidID = fmt.Errorf("%w: invalid ID", internalshared.ErrInvalidInput)
)
