// Package service holds the application stores and the thin services layered
// on top of them. Each store owns its lists in memory, persists every change
// before touching that mirror, and serialises mutations with its own mutex.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/events"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// invalid wraps a validation failure so handlers can map it with errors.Is.
func invalid(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed %q", domain.ErrInvalidInput, fe.Field(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}

func newID() string {
	return uuid.NewString()
}

// clock is embedded by the stores so tests can pin time and ids.
type clock struct {
	Now   func() time.Time
	NewID func() string
}

func defaultClock() clock {
	return clock{Now: time.Now, NewID: newID}
}

func (c clock) now() time.Time {
	return c.Now().UTC()
}

// publisher delivers events after commit. Delivery failures are logged and
// never undo the committed change.
type publisher struct {
	sink domain.EventPublisher
}

func newPublisher(p domain.EventPublisher) publisher {
	if p == nil {
		p = events.Nop{}
	}
	return publisher{sink: p}
}

func (p publisher) flush(ctx context.Context, pending []domain.Event) {
	for _, e := range pending {
		if err := p.sink.Publish(ctx, e); err != nil {
			log.Warn().Err(err).Str("event", e.Type).Msg("publish event")
		}
	}
}

// outbox queues events raised under a store lock. Stores flush it only after
// unlocking, so a slow sink never holds up readers.
type outbox struct {
	pending []domain.Event
}

func (o *outbox) add(typ string, payload any, at time.Time, userIDs ...string) {
	o.pending = append(o.pending, domain.Event{Type: typ, UserIDs: userIDs, Payload: payload, At: at})
}

func (o *outbox) take() []domain.Event {
	pending := o.pending
	o.pending = nil
	return pending
}
