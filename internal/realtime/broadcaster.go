package realtime

import (
	"log"

	"ACCIDENT_DETECTOR/go-backend/internal/models"
)

// Broadcaster fans AlertEvents out to every subscriber in the registry.
// Delivery is best-effort, at-most-once per currently connected subscriber;
// one bad connection never blocks or aborts delivery to the rest.
type Broadcaster struct {
	registry *Registry
}

func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Broadcast delivers event to all subscribers and returns how many sends
// succeeded. Failed subscribers are collected during the iteration and
// removed from the registry in a single pass afterwards.
func (b *Broadcaster) Broadcast(event models.AlertEvent) int {
	msg := models.AlertMessage{
		Type: "accident_alert",
		Data: event,
	}

	delivered := 0
	var dead []string

	b.registry.ForEach(func(c *Client) {
		if c.Kind() != KindSubscriber {
			return
		}
		if err := c.Send(msg); err != nil {
			log.Printf("Alert delivery to %s failed: %v", c.ID, err)
			dead = append(dead, c.ID)
			return
		}
		delivered++
	})

	for _, id := range dead {
		if c, ok := b.registry.Get(id); ok {
			c.Close()
		}
		b.registry.Unregister(id)
	}

	return delivered
}
