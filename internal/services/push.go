package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
)

// pushTTLSeconds is how long the push service may hold an undelivered message.
const pushTTLSeconds = 24 * 60 * 60

// PushSender delivers one message to one subscription. It returns
// ErrSubscriptionGone when the subscription should be forgotten.
type PushSender interface {
	Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error
}

type WebPushSender struct {
	publicKey  string
	privateKey string
	subscriber string
	client     *http.Client
}

func NewWebPushSender(publicKey, privateKey, subscriber string) *WebPushSender {
	return &WebPushSender{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     http.DefaultClient,
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, msg models.PushMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode push payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             pushTTLSeconds,
	})
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
	return nil
}

// LogPushSender only logs messages. Used when no VAPID keys are configured.
type LogPushSender struct {
	log *logger.Logger
}

func NewLogPushSender(log *logger.Logger) *LogPushSender {
	return &LogPushSender{log: log}
}

func (s *LogPushSender) Send(_ context.Context, sub models.PushSubscription, msg models.PushMessage) error {
	s.log.Info("push notification (not sent, no VAPID keys)",
		"subscription_id", sub.ID,
		"title", msg.Title,
		"url", msg.URL,
	)
	return nil
}
