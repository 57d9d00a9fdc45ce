package offers

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidOffer marks a create or update request that fails validation.
	ErrInvalidOffer = errors.New("invalid offer")
	// ErrSlugConflict is returned when a concurrent write took the generated slug.
	ErrSlugConflict = errors.New("offer slug already taken")
)
