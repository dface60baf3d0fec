package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"github.com/webitel/im-notification-service/infra/auth"
)

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	app := &cli.App{
		Name:     ServiceName,
		Writer:   &out,
		Commands: []*cli.Command{tokenCmd()},
	}

	err := app.Run([]string{ServiceName, "token", "--user", "u1", "--secret", "s3cret", "--ttl", "1m"})
	require.NoError(t, err)

	userID, err := auth.NewJWT("s3cret", "").Verify(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestTokenCommand_SecretFromEnv(t *testing.T) {
	t.Setenv("SECRET_KEY", "legacy")

	var out bytes.Buffer
	app := &cli.App{Name: ServiceName, Writer: &out, Commands: []*cli.Command{tokenCmd()}}

	require.NoError(t, app.Run([]string{ServiceName, "token", "--user", "u1", "--ttl", time.Hour.String()}))

	_, err := auth.NewJWT("legacy", "").Verify(strings.TrimSpace(out.String()))
	assert.NoError(t, err)
}
