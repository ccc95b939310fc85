package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/testutil"
)

func hours(windows []model.WorkingWindow) [][2]string {
	out := make([][2]string, 0, len(windows))
	for _, w := range windows {
		out = append(out, [2]string{w.Start.Format("15:04"), w.End.Format("15:04")})
	}
	return out
}

func TestResolveWorkingWindows_Precedence(t *testing.T) {
	f := testutil.NewFixture(t)
	staff := f.AddStaff("Dana", 1)
	f.AddWeeklyHours(nil, time.Tuesday, "08:00", "18:00")
	f.AddWeeklyHours(&staff.ID, time.Tuesday, "13:00", "17:00")
	f.AddWeeklyHours(&staff.ID, time.Tuesday, "09:00", "12:00")

	s := NewService(f.Store.Schedules())
	ctx := context.Background()
	tuesday := testutil.At(2026, 3, 10, 0, 0)

	windows, err := s.ResolveWorkingWindows(ctx, &f.Business, &staff.ID, tuesday)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"09:00", "12:00"}, {"13:00", "17:00"}}, hours(windows))

	windows, err = s.ResolveWorkingWindows(ctx, &f.Business, nil, tuesday)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"08:00", "18:00"}}, hours(windows))

	// business-wide custom hours apply to staff without their own override
	f.Store.AddOverride(model.AvailabilityOverride{
		BusinessID:  f.Business.ID,
		Date:        tuesday,
		IsAvailable: true,
		StartTime:   testutil.Ptr("10:00"),
		EndTime:     testutil.Ptr("14:00:00"),
	})
	windows, err = s.ResolveWorkingWindows(ctx, &f.Business, &staff.ID, tuesday)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"10:00", "14:00"}}, hours(windows))

	// a staff override beats the business one
	f.Store.AddOverride(model.AvailabilityOverride{
		BusinessID: f.Business.ID,
		StaffID:    &staff.ID,
		Date:       tuesday,
		Reason:     testutil.Ptr("vacation"),
	})
	windows, err = s.ResolveWorkingWindows(ctx, &f.Business, &staff.ID, tuesday)
	require.NoError(t, err)
	assert.Empty(t, windows)
}

func TestResolveWorkingWindows_AvailableOverrideWithoutHoursKeepsRule(t *testing.T) {
	f := testutil.NewFixture(t)
	f.AddWeeklyHours(nil, time.Tuesday, "09:00", "12:00")
	tuesday := testutil.At(2026, 3, 10, 0, 0)
	f.Store.AddOverride(model.AvailabilityOverride{
		BusinessID:  f.Business.ID,
		Date:        tuesday,
		IsAvailable: true,
	})

	windows, err := NewService(f.Store.Schedules()).ResolveWorkingWindows(context.Background(), &f.Business, nil, tuesday)
	require.NoError(t, err)
	assert.Equal(t, [][2]string{{"09:00", "12:00"}}, hours(windows))
}

func TestResolveWorkingWindows_NoTemplateIsClosed(t *testing.T) {
	f := testutil.NewFixture(t)
	staff := f.AddStaff("Dana", 1)

	windows, err := NewService(f.Store.Schedules()).ResolveWorkingWindows(context.Background(), &f.Business, &staff.ID, testutil.At(2026, 3, 10, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, windows)
}
