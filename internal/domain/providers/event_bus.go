package providers

import (
	"context"

	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to change events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.ChangeEvent) error

	// Subscribe subscribes to events on a channel until ctx ends
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ChangeEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelChanges carries every public content change
	EventChannelChanges = "kuchikomi:changes"

	// EventChannelFacilityPrefix is the prefix for facility-specific channels
	EventChannelFacilityPrefix = "kuchikomi:facility:"
)

// GetFacilityChannel returns the channel name for a specific facility
func GetFacilityChannel(facilityID string) string {
	return EventChannelFacilityPrefix + facilityID
}
