package events

import (
	"context"
	"testing"
	"time"
)

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher

	err := p.Publish(context.Background(), SaleEvent{
		Event:      EventOrderCreated,
		OrderID:    1,
		TableID:    2,
		ActorID:    3,
		OccurredAt: time.Now(),
	})
	if err != nil {
		t.Errorf("nil publisher Publish returned %v, want nil", err)
	}

	p.Close()
}

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		event string
		want  string
	}{
		{EventOrderCreated, "sales.order.created"},
		{EventPaymentProcessed, "sales.payment.processed"},
		{EventOrderVoided, "sales.order.voided"},
	}
	for _, tt := range tests {
		if got := routingKey(tt.event); got != tt.want {
			t.Errorf("routingKey(%s) = %s, want %s", tt.event, got, tt.want)
		}
	}
}
