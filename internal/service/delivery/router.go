package delivery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/littlefarms/taskboard-api/internal/email"
	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/pkg/metrics"
)

// Router dispatches one persisted notification to its recipient's
// preferred channel. Deliver returns the transport error so callers can
// record the per-recipient outcome, but the error is already logged and
// counted here and must never fail the fan-out that produced it.
type Router interface {
	Deliver(ctx context.Context, user *model.User, notification *model.Notification) error
}

type router struct {
	emailSvc     email.Service
	push         PushTransport
	frontendBase string
	metrics      *metrics.Metrics
}

func NewRouter(emailSvc email.Service, push PushTransport, frontendBase string, m *metrics.Metrics) Router {
	return &router{
		emailSvc:     emailSvc,
		push:         push,
		frontendBase: frontendBase,
		metrics:      m,
	}
}

func (r *router) Deliver(ctx context.Context, user *model.User, n *model.Notification) error {
	channel := user.PreferredChannel()

	var err error
	switch channel {
	case model.ChannelEmail:
		err = r.sendEmail(ctx, user, n)
	default:
		err = r.sendPush(ctx, user, n)
	}

	if err != nil {
		r.metrics.DeliveryAttempts.WithLabelValues(channel, "failure").Inc()
		log.Error().
			Err(err).
			Str("user_id", user.ID).
			Str("channel", channel).
			Str("notification_id", n.ID.String()).
			Msg("delivery failed")
		return err
	}

	r.metrics.DeliveryAttempts.WithLabelValues(channel, "success").Inc()
	return nil
}

func (r *router) sendEmail(ctx context.Context, user *model.User, n *model.Notification) error {
	if user.Email == "" {
		return fmt.Errorf("no email address for user %s", user.ID)
	}

	body := n.Body + "\n\nView: " + r.frontendBase + n.URL
	return r.emailSvc.Send(ctx, user.Email, n.Title, body)
}

func (r *router) sendPush(ctx context.Context, user *model.User, n *model.Notification) error {
	payload := &PushPayload{
		Type:         "notification",
		UserID:       user.ID,
		Notification: n,
	}
	return r.push.PushToUser(ctx, user.ID, payload)
}
