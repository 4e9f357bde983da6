package websocket

import (
	"context"
	"testing"

	"github.com/centrifugal/centrifuge"
	"github.com/pscheid92/livecart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnConnecting_AnonymousWithStatusSubscription(t *testing.T) {
	reply, err := onConnecting(context.Background(), centrifuge.ConnectEvent{})
	require.NoError(t, err)

	require.NotNil(t, reply.Credentials)
	assert.Empty(t, reply.Credentials.UserID)
	assert.Contains(t, reply.Subscriptions, domain.TopicSessionStatus)
}

func TestIsPublicTopic(t *testing.T) {
	assert.True(t, isPublicTopic(domain.TopicSessionStatus))
	assert.False(t, isPublicTopic("chat:room-1"))
	assert.False(t, isPublicTopic(""))
}

func TestParseCentrifugeLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want centrifuge.LogLevel
	}{
		{"debug", centrifuge.LogLevelDebug},
		{"warn", centrifuge.LogLevelWarn},
		{"error", centrifuge.LogLevelError},
		{"info", centrifuge.LogLevelInfo},
		{"", centrifuge.LogLevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseCentrifugeLogLevel(tt.in))
		})
	}
}

func TestSetupRedis_InvalidURL(t *testing.T) {
	node, err := NewNode(nil, "error")
	require.NoError(t, err)

	err = SetupRedis(node, "not-a-redis-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis URL")
}
