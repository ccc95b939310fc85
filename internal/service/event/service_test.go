package event

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/clock"
)

func TestEmitBookingCreated(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	svc := NewEventService(store.Outbox(), clock.NewFixed(now), 0)

	business := &model.Business{Base: model.Base{ID: uuid.New()}, Name: "Studio", Timezone: "Europe/Berlin"}
	service := &model.Service{Base: model.Base{ID: uuid.New()}, Name: "Cut", DurationMinutes: 30}
	customer := &model.Customer{Base: model.Base{ID: uuid.New()}, Name: "Ada", Email: "ada@example.com"}
	booking := &model.Booking{
		Base:              model.Base{ID: uuid.New()},
		StartsAt:          now.Add(24 * time.Hour),
		EndsAt:            now.Add(24*time.Hour + 30*time.Minute),
		Status:            model.BookingStatusPending,
		Source:            model.ChannelVoice,
		ConfirmationToken: "tok",
	}

	event, err := svc.EmitBookingCreated(context.Background(), BookingCreated{
		Booking:  booking,
		Business: business,
		Service:  service,
		Customer: customer,
	})
	require.NoError(t, err)

	stored := store.AllOutboxEvents()
	require.Len(t, stored, 1)
	assert.Equal(t, event.ID, stored[0].ID)
	assert.Equal(t, model.EventBookingCreated, stored[0].EventType)
	assert.Equal(t, business.ID, stored[0].BusinessID)
	assert.Zero(t, stored[0].Attempts)
	assert.Nil(t, stored[0].ProcessedAt)
	assert.Equal(t, model.DefaultOutboxMaxAttempts, stored[0].MaxAttempts)
	assert.Equal(t, now, stored[0].CreatedAt)

	var payload model.BookingCreatedPayload
	require.NoError(t, json.Unmarshal(stored[0].Payload, &payload))
	assert.Equal(t, booking.ID, payload.BookingID)
	assert.Equal(t, "Europe/Berlin", payload.Business.Timezone)
	assert.Equal(t, "ada@example.com", payload.Customer.Email)
	assert.Equal(t, model.ChannelVoice, payload.Source)
	assert.Nil(t, payload.Staff)
}
