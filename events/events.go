package events

import (
	"context"
	"fmt"

	"quill/metrics"
	"quill/shared/kafka"

	"go.uber.org/zap"
)

// Event types published by the content store when it mutates data
const (
	TypeItemUpdated       = "item.updated"
	TypeItemDeleted       = "item.deleted"
	TypeSnapshotPublished = "snapshot.published"
)

// ContentEvent is the message published after a content mutation
type ContentEvent struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id,omitempty"`
}

// Invalidator clears cached related results for an item
type Invalidator interface {
	ClearCache(ctx context.Context, itemID string) error
}

// Refresher reloads the content snapshot
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// Handler applies content events to the cache and snapshot
type Handler struct {
	invalidator Invalidator
	refresher   Refresher
	logger      *zap.Logger
}

// NewHandler creates an event handler. refresher may be nil.
func NewHandler(inv Invalidator, refresher Refresher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{invalidator: inv, refresher: refresher, logger: logger}
}

// Valid reports whether ev carries what its type needs
func (h *Handler) Valid(ev *ContentEvent) bool {
	switch ev.Type {
	case TypeItemUpdated, TypeItemDeleted:
		return ev.ItemID != ""
	case TypeSnapshotPublished:
		return true
	default:
		metrics.EventsTotal.WithLabelValues(ev.Type, "ignored").Inc()
		return false
	}
}

// Handle applies a single event
func (h *Handler) Handle(ctx context.Context, ev *ContentEvent) error {
	var err error
	switch ev.Type {
	case TypeItemUpdated, TypeItemDeleted:
		err = h.invalidator.ClearCache(ctx, ev.ItemID)
	case TypeSnapshotPublished:
		if h.refresher != nil {
			err = h.refresher.RunOnce(ctx)
		}
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	if err != nil {
		metrics.EventsTotal.WithLabelValues(ev.Type, "error").Inc()
		return fmt.Errorf("failed to apply %s event: %w", ev.Type, err)
	}
	metrics.EventsTotal.WithLabelValues(ev.Type, "ok").Inc()
	h.logger.Debug("applied content event", zap.String("type", ev.Type), zap.String("item_id", ev.ItemID))
	return nil
}

// MessageHandler adapts the handler to the Kafka consumer
func (h *Handler) MessageHandler() kafka.MessageHandler {
	return &kafka.TypedMessageHandler[ContentEvent]{
		Validate:   h.Valid,
		Process:    h.Handle,
		AlwaysMark: true,
	}
}
