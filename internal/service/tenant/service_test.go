package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/testutil"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
)

func TestResolve(t *testing.T) {
	f := testutil.NewFixture(t)
	s := NewService(f.Store.Businesses(), 0, logger.Nop())
	ctx := context.Background()

	byID, err := s.Resolve(ctx, f.Business.ID.String())
	require.NoError(t, err)
	assert.Equal(t, f.Business.Name, byID.Name)

	bySlug, err := s.Resolve(ctx, "  "+f.Business.Slug+" ")
	require.NoError(t, err)
	assert.Equal(t, f.Business.ID, bySlug.ID)

	_, err = s.Resolve(ctx, uuid.NewString())
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.Resolve(ctx, "no-such-studio")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = s.Resolve(ctx, "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestResolve_CachesUntilInvalidated(t *testing.T) {
	f := testutil.NewFixture(t)
	s := NewService(f.Store.Businesses(), 0, logger.Nop())
	ctx := context.Background()
	key := f.Business.ID.String()

	first, err := s.Resolve(ctx, key)
	require.NoError(t, err)
	first.Name = "mutated by caller"

	f.SetPolicy(24, 30)
	cached, err := s.Resolve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "Harbor Street Studio", cached.Name)
	assert.Zero(t, cached.MinBookingNoticeHours)

	s.Invalidate(key)
	fresh, err := s.Resolve(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 24, fresh.MinBookingNoticeHours)
}

func TestResolve_NoCache(t *testing.T) {
	f := testutil.NewFixture(t)
	s := NewService(f.Store.Businesses(), -1, logger.Nop())
	ctx := context.Background()

	_, err := s.Resolve(ctx, f.Business.Slug)
	require.NoError(t, err)
	f.SetPolicy(2, 30)

	b, err := s.Resolve(ctx, f.Business.Slug)
	require.NoError(t, err)
	assert.Equal(t, 2, b.MinBookingNoticeHours)
}

func TestResolve_InvalidTimezone(t *testing.T) {
	f := testutil.NewFixture(t)
	f.SetTimezone("Mars/Olympus_Mons")

	_, err := NewService(f.Store.Businesses(), 0, logger.Nop()).Resolve(context.Background(), f.Business.Slug)
	assert.True(t, apperrors.IsInternal(err))
}
