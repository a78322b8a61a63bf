package delivery

import (
	"context"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/pkg/messaging"
)

// PushTransport delivers a payload to a user's currently connected
// sessions. There is no store-and-forward: a user with no live session
// simply receives nothing, which is fine because the notification
// record is already durable.
type PushTransport interface {
	PushToUser(ctx context.Context, userID string, payload interface{}) error
}

// PushPayload is the realtime message published for one notification.
type PushPayload struct {
	Type         string              `json:"type"`
	UserID       string              `json:"user_id"`
	Notification *model.Notification `json:"notification"`
}

// UserChannel names the per-user pub/sub channel the realtime gateway
// subscribes to.
func UserChannel(userID string) string {
	return "notifications:user:" + userID
}

type brokerTransport struct {
	broker messaging.Broker
}

// NewBrokerTransport adapts a message broker into the push transport.
func NewBrokerTransport(broker messaging.Broker) PushTransport {
	return &brokerTransport{broker: broker}
}

func (t *brokerTransport) PushToUser(ctx context.Context, userID string, payload interface{}) error {
	return t.broker.Publish(ctx, UserChannel(userID), payload)
}
