package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePublisher struct {
	mu     sync.Mutex
	sent   []Message
	closed bool
}

func (p *capturePublisher) Send(_ context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, msg)
	return nil
}

func (p *capturePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *capturePublisher) messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.sent))
	copy(out, p.sent)
	return out
}

func TestNewMessage(t *testing.T) {
	a := &appointment.Appointment{
		ID:           uuid.New(),
		PatientID:    101,
		DoctorID:     7,
		StartAt:      time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		DurationMins: 30,
		Status:       appointment.StatusConfirmed,
	}

	msg := NewMessage(EventBooked, a)
	assert.Equal(t, EventBooked, msg.Event)
	assert.Equal(t, a.ID, msg.AppointmentID)
	assert.Equal(t, int64(101), msg.PatientID)
	assert.Equal(t, int64(7), msg.DoctorID)
	assert.Equal(t, a.StartAt, msg.StartAt)
	assert.Equal(t, appointment.StatusConfirmed, msg.Status)
	assert.False(t, msg.OccurredAt.IsZero())
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDispatcher(pub, nil, zap.NewNop())

	events := []Event{EventBooked, EventRescheduled, EventCancelled}
	for _, ev := range events {
		d.Publish(context.Background(), Message{Event: ev, AppointmentID: uuid.New()})
	}
	d.Shutdown()

	got := pub.messages()
	require.Len(t, got, 3)
	for i, ev := range events {
		assert.Equal(t, ev, got[i].Event)
	}
	assert.True(t, pub.closed)
}

func TestDispatcherShutdownDrainsBuffer(t *testing.T) {
	pub := &capturePublisher{}
	d := NewDispatcher(pub, nil, zap.NewNop())

	for i := 0; i < 100; i++ {
		d.Publish(context.Background(), Message{Event: EventReminder, AppointmentID: uuid.New()})
	}
	d.Shutdown()

	assert.Len(t, pub.messages(), 100)
}
