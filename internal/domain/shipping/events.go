package shipping

import (
	"time"

	"github.com/google/uuid"
)

// ShipmentAggregatedEvent is emitted once a shipment has been built for a source.
type ShipmentAggregatedEvent struct {
	EventID    string            `json:"event_id"`
	SourceCode string            `json:"source_code"`
	Items      map[int64]float64 `json:"items"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func (ShipmentAggregatedEvent) EventName() string { return "shipping.aggregated" }

func NewShipmentAggregatedEvent(s *Shipment) ShipmentAggregatedEvent {
	items := make(map[int64]float64, len(s.Items))
	for k, v := range s.Items {
		items[k] = v
	}
	return ShipmentAggregatedEvent{
		EventID:    uuid.NewString(),
		SourceCode: s.SourceCode,
		Items:      items,
		OccurredAt: time.Now().UTC(),
	}
}
