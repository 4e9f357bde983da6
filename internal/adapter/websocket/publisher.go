package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"
	"github.com/pscheid92/livecart/internal/adapter/metrics"
)

// channelPublisher is the slice of *centrifuge.Node the publisher needs.
type channelPublisher interface {
	Publish(channel string, data []byte, opts ...centrifuge.PublishOption) (centrifuge.PublishResult, error)
}

// Publisher is the notification bus. Delivery is at most once: clients not
// connected when a message goes out never see it.
type Publisher struct {
	node      channelPublisher
	wsMetrics *metrics.WebSocketMetrics
}

func NewPublisher(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return newPublisher(node, wsMetrics)
}

func newPublisher(node channelPublisher, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{node: node, wsMetrics: wsMetrics}
}

// Publish marshals payload as JSON and hands it to the broker for topic.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish to channel %s: %w", topic, err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic, err)
	}

	if _, err := p.node.Publish(topic, data); err != nil {
		return fmt.Errorf("publish to channel %s: %w", topic, err)
	}

	if p.wsMetrics != nil {
		p.wsMetrics.MessagesPublished.WithLabelValues(topic).Inc()
	}
	return nil
}
