package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// QueueCommands returns commands for inspecting the pipeline state.
func QueueCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "queue-stats",
			Usage: "Show the number of queued actions and remove candidates",
			Action: func(ctx context.Context, _ *cli.Command) error {
				actions, err := deps.DB.Actions().Len(ctx)
				if err != nil {
					return fmt.Errorf("failed to count actions: %w", err)
				}

				candidates, err := deps.DB.RemoveCandidates().Len(ctx)
				if err != nil {
					return fmt.Errorf("failed to count remove candidates: %w", err)
				}

				deps.Logger.Info("Queue sizes",
					zap.Int("actions", actions),
					zap.Int("removeCandidates", candidates))

				return nil
			},
		},
		{
			Name:      "whitelist",
			Usage:     "Never treat an account as a remove candidate",
			ArgsUsage: "USER_ID",
			Action: func(ctx context.Context, c *cli.Command) error {
				if c.Args().Len() != 1 {
					return ErrUserIDRequired
				}

				userID, err := strconv.ParseInt(c.Args().First(), 10, 64)
				if err != nil || userID <= 0 {
					return fmt.Errorf("invalid user id %q", c.Args().First())
				}

				if err := deps.DB.Whitelist().AddToWhitelist(ctx, userID); err != nil {
					return err
				}

				deps.Logger.Info("Whitelisted user", zap.Int64("userID", userID))

				return nil
			},
		},
	}
}
