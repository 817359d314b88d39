package workflow

import (
	"context"
	"encoding/json"
	"strconv"

	"bitbucket.org/mmdatafocus/construction_backend/models"
	"cloud.google.com/go/pubsub"
)

// PubSubAlertPublisher publishes each budget alert as one JSON message.
type PubSubAlertPublisher struct {
	topic *pubsub.Topic
}

func NewPubSubAlertPublisher(topic *pubsub.Topic) *PubSubAlertPublisher {
	return &PubSubAlertPublisher{topic: topic}
}

func (p *PubSubAlertPublisher) PublishBudgetAlert(ctx context.Context, alert models.BudgetAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"project_id": strconv.Itoa(alert.ProjectId),
			"alert_type": string(alert.AlertType),
			"severity":   string(alert.Severity),
		},
	})
	_, err = res.Get(ctx)
	return err
}
