package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/webitel/im-notification-service/config"
	"github.com/webitel/im-notification-service/infra/auth"
)

const (
	ServiceName      = "im-notification-service"
	ServiceNamespace = "webitel"
)

var (
	version        = "0.0.0"
	commit         = "hash"
	commitDate     = time.Now().String()
	branch         = "branch"
	buildTimestamp = ""
)

func Run() error {
	app := &cli.App{
		Name:    ServiceName,
		Usage:   "Realtime notification delivery for Webitel platform",
		Version: fmt.Sprintf("%s (%s@%s, %s)", version, branch, commit, commitDate),
		Commands: []*cli.Command{
			serverCmd(),
			tokenCmd(),
		},
	}

	return app.Run(os.Args)
}

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Run the websocket and ingress HTTP server",
		// Flags are owned by config.NewFlagSet so that viper can bind them.
		SkipFlagParsing: true,
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.Args().Slice())
			if err != nil {
				return err
			}
			app := NewApp(cfg)

			if err := app.Start(c.Context); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop

			slog.Info("Shutting down...")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return app.Stop(ctx)
		},
	}
}

// tokenCmd mints a handshake token, mostly for local testing against a running node.
func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a signed handshake token for a user",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User id carried by the token",
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "Token lifetime, 0 for no expiry",
				Value: time.Hour,
			},
			&cli.StringFlag{
				Name:     "secret",
				Usage:    "Signing secret",
				EnvVars:  []string{"NOTIFY_AUTH_SECRET", "SECRET_KEY"},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "issuer",
				Usage:   "Token issuer",
				EnvVars: []string{"NOTIFY_AUTH_ISSUER"},
			},
		},
		Action: func(c *cli.Context) error {
			token, err := auth.NewJWT(c.String("secret"), c.String("issuer")).Issue(c.String("user"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(c.App.Writer, token)
			return err
		},
	}
}
