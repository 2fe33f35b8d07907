// Package events fans committed domain changes out to realtime and stream sinks.
package events

import (
	"context"
	"errors"

	"github.com/fridayce/rork-mapcask/internal/domain"
)

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }

// Multi publishes to each sink in order and joins their errors.
type Multi []domain.EventPublisher

func (m Multi) Publish(ctx context.Context, e domain.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ domain.EventPublisher = Nop{}
	_ domain.EventPublisher = Multi(nil)
)
