package config

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NewPubSubClient returns nil, nil when no topic is configured.
// It uses Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func NewPubSubClient(ctx context.Context, s Settings) (*pubsub.Client, error) {
	if s.BudgetAlertTopic == "" {
		return nil, nil
	}
	if s.PubSubProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	var (
		c   *pubsub.Client
		err error
	)
	if s.PubSubCredentialsJSON != "" {
		c, err = pubsub.NewClient(ctx, s.PubSubProjectID, option.WithCredentialsJSON([]byte(s.PubSubCredentialsJSON)))
	} else {
		// Uses Application Default Credentials (Cloud Run service account or GOOGLE_APPLICATION_CREDENTIALS).
		c, err = pubsub.NewClient(ctx, s.PubSubProjectID)
	}
	if err != nil {
		return nil, fmt.Errorf("init pubsub client (project_id=%s): %w", s.PubSubProjectID, err)
	}
	log.Printf("pubsub client ready (project_id=%s)", s.PubSubProjectID)
	return c, nil
}

func CreateTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}
