package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/bravo68web/qadeck/internal/domain/models"
	"github.com/bravo68web/qadeck/internal/injectable"
	apperrors "github.com/bravo68web/qadeck/pkg/errors"
	"github.com/bravo68web/qadeck/pkg/logger"
)

func TokenCommands() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect and manage stored Basecamp tokens",
		Commands: []*cli.Command{
			TokenStatus(),
			TokenRefresh(),
			TokenRevoke(),
			TokenHistory(),
			TokenRefreshExpiring(),
		},
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "user",
		Aliases:  []string{"u"},
		Usage:    "Dashboard user ID",
		Required: true,
	}
}

func TokenStatus() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the active token of a user",
		Flags: []cli.Flag{userFlag()},
		Action: withDependencies(func(ctx context.Context, cmd *cli.Command, deps *injectable.Dependencies) error {
			userID := cmd.String("user")
			token, err := deps.TokenService.Status(ctx, userID)
			if apperrors.IsNotFound(err) {
				fmt.Fprintf(cmd.Writer, "user %s: not connected\n", userID)
				return nil
			}
			if err != nil {
				return err
			}
			printToken(cmd.Writer, token, deps.TokenService.IsExpired(token))
			return nil
		}),
	}
}

func TokenRefresh() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Refresh the token of a user now",
		Flags: []cli.Flag{userFlag()},
		Action: withDependencies(func(ctx context.Context, cmd *cli.Command, deps *injectable.Dependencies) error {
			token, err := deps.TokenService.ForceRefresh(ctx, cmd.String("user"))
			if err != nil {
				return err
			}
			printToken(cmd.Writer, token, false)
			return nil
		}),
	}
}

func TokenRevoke() *cli.Command {
	return &cli.Command{
		Name:  "revoke",
		Usage: "Deactivate every token of a user",
		Flags: []cli.Flag{userFlag()},
		Action: withDependencies(func(ctx context.Context, cmd *cli.Command, deps *injectable.Dependencies) error {
			userID := cmd.String("user")
			if err := deps.TokenService.Revoke(ctx, userID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Writer, "user %s: tokens deactivated\n", userID)
			return nil
		}),
	}
}

func TokenHistory() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List the token rows of a user, newest first",
		Flags: []cli.Flag{
			userFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of rows",
				Value: 20,
			},
		},
		Action: withDependencies(func(ctx context.Context, cmd *cli.Command, deps *injectable.Dependencies) error {
			tokens, err := deps.TokenService.History(ctx, cmd.String("user"), int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			if len(tokens) == 0 {
				fmt.Fprintln(cmd.Writer, "no tokens")
				return nil
			}
			for _, t := range tokens {
				printToken(cmd.Writer, t, deps.TokenService.IsExpired(t))
			}
			return nil
		}),
	}
}

func TokenRefreshExpiring() *cli.Command {
	return &cli.Command{
		Name:  "refresh-expiring",
		Usage: "Run one pass of the proactive refresher",
		Action: withDependencies(func(ctx context.Context, cmd *cli.Command, deps *injectable.Dependencies) error {
			refreshed, failed, err := deps.TokenRefreshCron.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.Writer, "refreshed %d, failed %d\n", refreshed, failed)
			if failed > 0 {
				return cli.Exit("some refreshes failed", 1)
			}
			return nil
		}),
	}
}

type depsAction func(ctx context.Context, cmd *cli.Command, deps *injectable.Dependencies) error

// withDependencies loads config, logger, database and services around fn
func withDependencies(fn depsAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		initLogger(ctx, cfg)
		defer logger.Close()

		db, err := openDatabase(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer db.Close()

		deps, err := injectable.LoadDependencies(ctx, cfg, db)
		if err != nil {
			return err
		}
		defer deps.Close()

		return fn(ctx, cmd, deps)
	}
}

func printToken(w io.Writer, t *models.OAuthToken, expired bool) {
	expires := "never"
	if t.ExpiresAt != nil {
		expires = t.ExpiresAt.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(w, "%s  user=%s active=%t expired=%t refreshable=%t expires=%s created=%s\n",
		t.ID, t.UserID, t.IsActive, expired, t.HasRefreshToken(), expires,
		t.CreatedAt.UTC().Format(time.RFC3339))
}
