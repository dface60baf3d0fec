package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/im-notification-service/config"
)

func TestPing(t *testing.T) {
	mr := miniredis.RunT(t)

	client := New(config.RedisConfig{Address: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, Ping(context.Background(), client))

	mr.Close()
	err := Ping(context.Background(), client)
	assert.ErrorContains(t, err, mr.Addr())
}
