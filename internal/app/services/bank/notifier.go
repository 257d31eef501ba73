package bank

import (
	"context"
	"time"

	"github.com/google/uuid"

	domain "github.com/opencustody/ledger_layer/internal/app/domain/bank"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

// Notifier receives one-way operation records. Delivery is fire-and-forget
// and ordered per operation; failures never affect the operation outcome.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, event domain.Event)

func (f NotifierFunc) Notify(ctx context.Context, event domain.Event) {
	if f != nil {
		f(ctx, event)
	}
}

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewDefault("bank-events")
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, event domain.Event) {
	entry := n.log.
		WithField("event_id", event.ID).
		WithField("type", event.Type).
		WithField("asset_id", event.AssetID)
	if event.Account != "" {
		entry = entry.WithField("account", event.Account)
	}
	if event.Amount != nil {
		entry = entry.WithField("amount", event.Amount.String())
	}
	if event.USDValue != nil {
		entry = entry.WithField("usd_value", domain.FormatUSD(event.USDValue))
	}
	entry.Info("bank event")
}

func newEvent(eventType, account, assetID string) domain.Event {
	return domain.Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Account: account,
		AssetID: assetID,
		At:      time.Now().UTC(),
	}
}
