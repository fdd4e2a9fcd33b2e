// Package notify publishes run lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
)

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic. Events
// are advisory; the harvesting run never blocks on delivery.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSub creates a publisher and verifies the topic exists.
func NewPubSub(ctx context.Context, projectID, topicID string) (*PubSubPublisher, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("topic %q does not exist", topicID)
	}
	return &PubSubPublisher{client: client, topic: topic}, nil
}

// Publish marshals the event to JSON and publishes it without waiting for
// the server acknowledgment.
func (p *PubSubPublisher) Publish(ctx context.Context, event map[string]any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	p.topic.Publish(ctx, &pubsub.Message{Data: data})
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
