package offers

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const maxSlugSuffix = 100

// SlugChecker reports whether a slug is used by an offer other than exclude.
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string, exclude uuid.UUID) (bool, error)
}

// uniqueSlug derives a slug from title, appending -2, -3, ... until it is free.
func uniqueSlug(ctx context.Context, checker SlugChecker, title string, exclude uuid.UUID) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "offer"
	}
	for n := 1; n <= maxSlugSuffix; n++ {
		candidate := base
		if n > 1 {
			candidate += "-" + strconv.Itoa(n)
		}
		taken, err := checker.SlugExists(ctx, candidate, exclude)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errors.Wrapf(ErrSlugConflict, "no free slug for %q", title)
}
