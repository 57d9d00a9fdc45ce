package offers

import (
	"context"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type takenSlugs map[string]uuid.UUID

func (s takenSlugs) SlugExists(_ context.Context, slug string, exclude uuid.UUID) (bool, error) {
	owner, ok := s[slug]
	return ok && owner != exclude, nil
}

func TestUniqueSlug(t *testing.T) {
	ctx := context.Background()
	mine := uuid.New()
	taken := takenSlugs{
		"black-friday":   uuid.New(),
		"black-friday-2": uuid.New(),
		"cyber-monday":   mine,
	}

	tests := []struct {
		title string
		want  string
	}{
		{"Spring Sale", "spring-sale"},
		{"Black Friday", "black-friday-3"},
		{"  Cyber   Monday ", "cyber-monday"},
		{"!!!", "offer"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got, err := uniqueSlug(ctx, taken, tt.title, mine)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUniqueSlugGivesUp(t *testing.T) {
	taken := takenSlugs{"sale": uuid.New()}
	for n := 2; n <= maxSlugSuffix; n++ {
		taken["sale-"+strconv.Itoa(n)] = uuid.New()
	}

	_, err := uniqueSlug(context.Background(), taken, "Sale", uuid.New())
	require.ErrorIs(t, err, ErrSlugConflict)
}
