package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	gorilla "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindsphere-backend/internal/logger"
	"mindsphere-backend/internal/models"
	"mindsphere-backend/internal/services"
)

type staticTokens map[string]uuid.UUID

func (s staticTokens) ParseToken(token string) (uuid.UUID, string, error) {
	id, ok := s[token]
	if !ok {
		return uuid.Nil, "", errors.New("bad token")
	}
	return id, "LEARNER", nil
}

func TestHub_RelaysPublishedMessagesToUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	userID := uuid.New()
	hub := NewHub(client, staticTokens{"good": userID}, []string{"http://localhost:5173"}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 1 }, time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=good"

	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	services.NewRedisPublisher(client, logger.NewNop()).Publish(context.Background(), userID, models.WSMessage{
		Type:    "notification",
		Payload: map[string]string{"title": "Study Plan Ready"},
	})
	// Another user's update must not reach this connection.
	services.NewRedisPublisher(client, logger.NewNop()).Publish(context.Background(), uuid.New(), models.WSMessage{Type: "other"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"notification","payload":{"title":"Study Plan Ready"}}`, string(data))

	conn.Close()
	require.Eventually(t, func() bool { return hub.connections(userID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_RejectsBadTokensAndOrigins(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	hub := NewHub(client, staticTokens{"good": uuid.New()}, []string{"http://localhost:5173"}, logger.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := gorilla.DefaultDialer.Dial(base, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorilla.DefaultDialer.Dial(base+"?token=forged", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gorilla.DefaultDialer.Dial(base+"?token=good", http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
