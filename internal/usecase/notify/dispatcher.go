package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/adebayof/monievault-backend/internal/domain"
)

const (
	defaultPollInterval = 5 * time.Second
	maxAttempts         = 5
)

// Dispatcher drains the outbox and delivers notifications. It runs outside
// every movement's request path: a movement only appends its event inside
// the commit, so nothing here can block or reverse a completed movement.
// Failed deliveries are retried with a growing delay, then marked failed
// and left in the table for inspection.
type Dispatcher struct {
	Outbox domain.OutboxRepository
	Sender EmailSender
	Logger *slog.Logger

	PollInterval time.Duration
}

// NewDispatcher creates a new outbox dispatcher
func NewDispatcher(outbox domain.OutboxRepository, sender EmailSender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Outbox:       outbox,
		Sender:       sender,
		Logger:       logger,
		PollInterval: defaultPollInterval,
	}
}

// Run polls the outbox until the context is cancelled. Call it on its own
// goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	d.Logger.Info("notification dispatcher started", "poll_interval", d.PollInterval.String())
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.Logger.Info("notification dispatcher stopped")
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain processes every due event before going back to sleep
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		event, err := d.Outbox.NextPending(ctx, time.Now())
		if err != nil {
			d.Logger.Error("failed to poll outbox", "error", err)
			return
		}
		if event == nil {
			return
		}
		d.deliver(ctx, event)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.OutboxEvent) {
	subject, body, err := renderEmail(event)
	if err != nil {
		d.Logger.Error("undeliverable outbox event", "event_id", event.ID, "error", err)
		if err := d.Outbox.MarkFailed(ctx, event.ID); err != nil {
			d.Logger.Error("failed to mark outbox event", "event_id", event.ID, "error", err)
		}
		return
	}

	if err := d.Sender.Send(ctx, event.Recipient, subject, body); err != nil {
		attempts := event.Attempts + 1
		if attempts >= maxAttempts {
			d.Logger.Error("notification permanently failed", "event_id", event.ID, "attempts", attempts, "error", err)
			if err := d.Outbox.MarkFailed(ctx, event.ID); err != nil {
				d.Logger.Error("failed to mark outbox event", "event_id", event.ID, "error", err)
			}
			return
		}
		nextRun := time.Now().Add(time.Duration(attempts) * 10 * time.Second)
		d.Logger.Warn("notification delivery failed, rescheduling", "event_id", event.ID, "attempts", attempts, "next_run", nextRun)
		if err := d.Outbox.Reschedule(ctx, event.ID, attempts, nextRun); err != nil {
			d.Logger.Error("failed to reschedule outbox event", "event_id", event.ID, "error", err)
		}
		return
	}

	if err := d.Outbox.MarkSent(ctx, event.ID); err != nil {
		d.Logger.Error("failed to mark outbox event sent", "event_id", event.ID, "error", err)
		return
	}
	d.Logger.Info("notification delivered", "event_id", event.ID, "kind", event.Kind, "to", event.Recipient)
}

// movementPayload mirrors the event body the ledger engine writes
type movementPayload struct {
	Reference    string `json:"reference"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Counterparty string `json:"counterparty"`
}

func renderEmail(event *domain.OutboxEvent) (subject, body string, err error) {
	switch event.Kind {
	case "movement.completed":
		var p movementPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", "", fmt.Errorf("failed to decode movement payload: %w", err)
		}
		subject = fmt.Sprintf("Transaction alert: %s %s %s", p.Kind, p.Currency, p.Amount)
		body = fmt.Sprintf("Your %s of %s %s completed.\nReference: %s\n", p.Kind, p.Currency, p.Amount, p.Reference)
		if p.Counterparty != "" {
			body += fmt.Sprintf("Counterparty: %s\n", p.Counterparty)
		}
		return subject, body, nil
	case "account.activated":
		subject = "Welcome! Your account is active"
		body = "Your account has been verified and activated. You can now move money."
		return subject, body, nil
	default:
		return "", "", fmt.Errorf("unknown event kind %q", event.Kind)
	}
}
