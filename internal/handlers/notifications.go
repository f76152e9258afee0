package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

type subscriptionService interface {
	Subscribe(ctx context.Context, userID uuid.UUID, req models.SubscribeRequest) (*models.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID uuid.UUID, endpoint string) error
}

type NotificationHandler struct {
	subscriptions  subscriptionService
	vapidPublicKey string
}

func NewNotificationHandler(dispatcher *services.NotificationDispatcher, vapidPublicKey string) *NotificationHandler {
	return &NotificationHandler{subscriptions: dispatcher, vapidPublicKey: vapidPublicKey}
}

func (h *NotificationHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.SubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	sub, err := h.subscriptions.Subscribe(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Subscribed",
		"subscription": sub,
	})
}

func (h *NotificationHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req models.UnsubscribeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.subscriptions.Unsubscribe(r.Context(), userID, req.Endpoint); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Unsubscribed"})
}

// VAPIDPublicKey is public so the browser can subscribe before login.
func (h *NotificationHandler) VAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		writeJSON(w, http.StatusServiceUnavailable, errorResp("PUSH_DISABLED", "Push notifications are not configured", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidPublicKey})
}
