package notify

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Maicon-MK/integra--o-blockchain/internal/domain"
)

// EventStream is the subscription side of the lifecycle bus.
type EventStream interface {
	Subscribe(ctx context.Context, eventType string) (<-chan domain.Event, error)
}

// EventNotifier consumes lifecycle events from the bus and turns them into
// operator alerts. The Notifier's event filter decides which types actually
// go out to the configured channels.
type EventNotifier struct {
	n      *Notifier
	logger *slog.Logger
}

// NewEventNotifier wraps a Notifier for lifecycle event delivery.
func NewEventNotifier(n *Notifier, logger *slog.Logger) *EventNotifier {
	return &EventNotifier{
		n:      n,
		logger: logger.With(slog.String("component", "lifecycle_notifier")),
	}
}

// Run subscribes to every lifecycle event type and forwards events to the
// senders until ctx is cancelled. Delivery failures are logged, never fatal;
// the run ends cleanly on cancellation.
func (en *EventNotifier) Run(ctx context.Context, stream EventStream) error {
	merged := make(chan domain.Event, 64)

	g, ctx := errgroup.WithContext(ctx)
	for _, eventType := range domain.EventTypes() {
		ch, err := stream.Subscribe(ctx, eventType)
		if err != nil {
			return fmt.Errorf("notify: subscribe %s: %w", eventType, err)
		}
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case e, ok := <-ch:
					if !ok {
						return nil
					}
					select {
					case merged <- e:
					case <-ctx.Done():
						return nil
					}
				}
			}
		})
	}

	en.logger.Info("lifecycle alerts running", "types", len(domain.EventTypes()))
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil
		case e := <-merged:
			title, message := formatEvent(e)
			if err := en.n.Notify(ctx, e.Type, title, message); err != nil {
				en.logger.Warn("lifecycle alert delivery failed",
					"type", e.Type, "error", err)
			}
		}
	}
}

func formatEvent(e domain.Event) (string, string) {
	var title string
	switch e.Type {
	case domain.EventEscrowOpened:
		title = "Escrow opened"
	case domain.EventEscrowReleased:
		title = "Escrow released"
	case domain.EventEscrowRefunded:
		title = "Escrow refunded"
	case domain.EventEscrowExpired:
		title = "Escrow expired"
	case domain.EventEvaluationRequested:
		title = "Evaluation requested"
	case domain.EventEvaluationCompleted:
		title = "Evaluation completed"
	case domain.EventTokenMinted:
		title = "Token minted"
	case domain.EventTokenTransferred:
		title = "Token transferred"
	case domain.EventWatchRegistered:
		title = "Watch registered"
	case domain.EventWatchListed:
		title = "Watch listed"
	case domain.EventWatchDelisted:
		title = "Watch delisted"
	default:
		title = e.Type
	}

	message := fmt.Sprintf("watch=%s", e.WatchID)
	if e.ContractID != "" {
		message += fmt.Sprintf(" contract=%s", e.ContractID)
	}
	for k, v := range e.Detail {
		message += fmt.Sprintf(" %s=%s", k, v)
	}
	return title, message
}
