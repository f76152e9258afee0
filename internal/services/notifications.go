package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/metrics"
	"mindsphere-backend/internal/models"
)

// maxConcurrentPushes bounds in-flight deliveries for one notification.
const maxConcurrentPushes = 8

type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.PushSubscription, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteForUser(ctx context.Context, userID uuid.UUID, endpoint string) (bool, error)
}

// NotificationDispatcher fans a notification out to every push subscription
// of a user and mirrors it to their open websocket connections.
type NotificationDispatcher struct {
	subs     SubscriptionStore
	sender   PushSender
	realtime Publisher
	log      *logger.Logger
}

func NewNotificationDispatcher(subs SubscriptionStore, sender PushSender, realtime Publisher, log *logger.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{subs: subs, sender: sender, realtime: realtime, log: log}
}

type deliveryResult struct {
	sent, gone, failed int
}

// Dispatch attempts delivery to every subscription. Gone subscriptions are
// deleted; other delivery failures are logged and do not fail the job. Only
// a failure to load the subscriptions is returned.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, p models.NotificationPayload) error {
	subs, err := d.subs.ListByUser(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("failed to list push subscriptions: %w", err)
	}

	msg := models.PushMessage{Title: p.Title, Body: p.Body, URL: p.URL}
	results := make([]string, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPushes)
	for i, sub := range subs {
		g.Go(func() error {
			results[i] = d.deliver(gctx, sub, msg)
			return nil
		})
	}
	_ = g.Wait()

	var r deliveryResult
	m := metrics.Get()
	for _, outcome := range results {
		m.PushDeliveriesTotal.WithLabelValues(outcome).Inc()
		switch outcome {
		case "sent":
			r.sent++
		case "gone":
			r.gone++
		default:
			r.failed++
		}
	}

	if d.realtime != nil {
		d.realtime.Publish(ctx, p.UserID, models.WSMessage{
			Type:    "notification",
			Payload: models.NotificationEvent{Title: p.Title, Body: p.Body, URL: p.URL},
		})
	}

	d.log.Info("notification dispatched",
		"user_id", p.UserID,
		"subscriptions", len(subs),
		"sent", r.sent,
		"gone", r.gone,
		"failed", r.failed,
	)
	return nil
}

func (d *NotificationDispatcher) deliver(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) string {
	err := d.sender.Send(ctx, sub, msg)
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, ErrSubscriptionGone):
		if delErr := d.subs.DeleteByID(ctx, sub.ID); delErr != nil {
			d.log.Warn("failed to delete gone subscription", "subscription_id", sub.ID, "error", delErr)
		}
		return "gone"
	default:
		d.log.Warn("push delivery failed", "subscription_id", sub.ID, "error", err)
		return "error"
	}
}

func (d *NotificationDispatcher) Subscribe(ctx context.Context, userID uuid.UUID, req models.SubscribeRequest) (*models.PushSubscription, error) {
	fieldErrors := make(map[string]string)
	endpoint := strings.TrimSpace(req.Endpoint)
	if u, err := url.Parse(endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		fieldErrors["endpoint"] = "Endpoint must be a valid https URL"
	}
	if strings.TrimSpace(req.Keys.P256dh) == "" {
		fieldErrors["keys.p256dh"] = "p256dh key is required"
	}
	if strings.TrimSpace(req.Keys.Auth) == "" {
		fieldErrors["keys.auth"] = "auth key is required"
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	sub := &models.PushSubscription{
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := d.subs.Upsert(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	return sub, nil
}

func (d *NotificationDispatcher) Unsubscribe(ctx context.Context, userID uuid.UUID, endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return &ValidationError{Fields: map[string]string{"endpoint": "Endpoint is required"}}
	}
	removed, err := d.subs.DeleteForUser(ctx, userID, strings.TrimSpace(endpoint))
	if err != nil {
		return err
	}
	if !removed {
		return &NotFoundError{Message: "Subscription not found"}
	}
	return nil
}
