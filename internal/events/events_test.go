package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishNotifiesSubscribers(t *testing.T) {
	bus := NewEventBus()

	var received []*Event
	bus.Subscribe(EventAppointmentCreated, func(event *Event) error {
		received = append(received, event)
		return nil
	})
	bus.Subscribe(EventAppointmentDeleted, func(event *Event) error {
		t.Error("wrong event type delivered")
		return nil
	})

	bus.Publish(&Event{Type: EventAppointmentCreated, Payload: []byte(`{}`)})

	require.Len(t, received, 1)
	assert.Equal(t, EventAppointmentCreated, received[0].Type)
	assert.False(t, received[0].CreatedAt.IsZero())
}

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got AppointmentEventPayload
	bus.Subscribe(EventAppointmentCancelled, func(event *Event) error {
		return json.Unmarshal(event.Payload, &got)
	})

	payload := AppointmentEventPayload{
		AppointmentID: "a1",
		PatientName:   "Maria Silva",
		Status:        "cancelled",
		TotalCents:    15000,
	}
	require.NoError(t, bus.PublishJSON(EventAppointmentCancelled, payload))

	assert.Equal(t, "a1", got.AppointmentID)
	assert.Equal(t, int64(15000), got.TotalCents)
}

func TestPublishJSONNilBus(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventAppointmentCreated, AppointmentEventPayload{}))
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()

	called := false
	bus.Subscribe(EventCompensationFailed, func(event *Event) error {
		return errors.New("handler failed")
	})
	bus.Subscribe(EventCompensationFailed, func(event *Event) error {
		called = true
		return nil
	})

	bus.Publish(&Event{Type: EventCompensationFailed})
	assert.True(t, called)
}
