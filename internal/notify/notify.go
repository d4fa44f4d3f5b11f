package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Event string

const (
	EventBooked        Event = "appointment.booked"
	EventRescheduled   Event = "appointment.rescheduled"
	EventCancelled     Event = "appointment.cancelled"
	EventStatusChanged Event = "appointment.status_changed"
	EventReminder      Event = "appointment.reminder"
)

// Message is the payload handed to the notification channel. Delivery and
// retry semantics belong to that channel, not to the scheduling engine.
type Message struct {
	Event         Event              `json:"event"`
	AppointmentID uuid.UUID          `json:"appointment_id"`
	PatientID     int64              `json:"patient_id"`
	DoctorID      int64              `json:"doctor_id"`
	StartAt       time.Time          `json:"start_at"`
	DurationMins  int                `json:"duration_mins"`
	Status        appointment.Status `json:"status"`
	OccurredAt    time.Time          `json:"occurred_at"`
}

// NewMessage builds the payload for an appointment event.
func NewMessage(event Event, a *appointment.Appointment) Message {
	return Message{
		Event:         event,
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		StartAt:       a.StartAt,
		DurationMins:  a.DurationMins,
		Status:        a.Status,
		OccurredAt:    time.Now(),
	}
}

// Notifier is the fire-and-forget interface the lifecycle service talks to.
type Notifier interface {
	Publish(ctx context.Context, msg Message)
}

// Publisher is the underlying transport a Dispatcher drains into.
type Publisher interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

const dispatchBufferSize = 10_000

// Dispatcher decouples booking requests from the notification transport:
// Publish enqueues and returns immediately, a single worker drains the
// buffer. If the buffer is full, the message is dropped and counted.
type Dispatcher struct {
	publisher Publisher
	log       *zap.Logger
	dropped   prometheus.Counter
	messages  chan Message
	done      chan struct{}
}

func NewDispatcher(publisher Publisher, dropped prometheus.Counter, log *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		log:       log,
		dropped:   dropped,
		messages:  make(chan Message, dispatchBufferSize),
		done:      make(chan struct{}),
	}
	go d.worker()
	return d
}

func (d *Dispatcher) Publish(_ context.Context, msg Message) {
	select {
	case d.messages <- msg:
	default:
		if d.dropped != nil {
			d.dropped.Inc()
		}
		d.log.Warn("notification buffer full, dropping message",
			zap.String("event", string(msg.Event)),
			zap.String("appointment_id", msg.AppointmentID.String()),
		)
	}
}

// Shutdown stops accepting messages and waits for the buffer to drain.
func (d *Dispatcher) Shutdown() {
	close(d.messages)
	select {
	case <-d.done:
	case <-time.After(10 * time.Second):
		d.log.Warn("notification dispatcher shutdown timed out; some messages may be lost")
	}
	if err := d.publisher.Close(); err != nil {
		d.log.Warn("closing notification publisher", zap.Error(err))
	}
}

func (d *Dispatcher) worker() {
	defer close(d.done)
	for msg := range d.messages {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.publisher.Send(ctx, msg); err != nil {
			d.log.Error("failed to publish notification",
				zap.String("event", string(msg.Event)),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Nop discards every message. Used when no notification channel is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Message) {}
