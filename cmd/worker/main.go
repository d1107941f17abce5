package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robalyx/reciprocal/internal/database/types/enum"
	"github.com/robalyx/reciprocal/internal/setup"
	"github.com/robalyx/reciprocal/internal/setup/telemetry"
	"github.com/robalyx/reciprocal/internal/worker/core"
	"github.com/robalyx/reciprocal/internal/worker/followback"
	"github.com/robalyx/reciprocal/internal/worker/idsync"
	"github.com/robalyx/reciprocal/internal/worker/listener"
	"github.com/robalyx/reciprocal/internal/worker/profile"
	"github.com/robalyx/reciprocal/internal/worker/relation"
	"github.com/robalyx/reciprocal/internal/worker/remover"
	"github.com/sourcegraph/conc"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

const (
	// WorkerLogDir specifies where worker log files are stored.
	WorkerLogDir = "logs/worker_logs"

	// IDSyncWorker mirrors one id set.
	IDSyncWorker = "ids"

	// RelationWorker classifies diff candidates and feeds the queues.
	RelationWorker = "relation"

	// ListenerWorker executes queued actions.
	ListenerWorker = "listener"

	// RemoverWorker unfollows inactive friends directly.
	RemoverWorker = "remover"

	// ProfileWorker fills the profile cache.
	ProfileWorker = "profile"

	// FollowBackWorker follows back followers directly.
	FollowBackWorker = "followback"

	// AllWorkers runs the queue-based pipeline in one process.
	AllWorkers = "all"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start reciprocal workers",
		Commands: []*cli.Command{
			{
				Name:  IDSyncWorker,
				Usage: "Mirror the friends or followers id set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "kind",
						Aliases:  []string{"k"},
						Usage:    "Id set to mirror (friends or followers)",
						Required: true,
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					kind, err := parseKind(c.String("kind"))
					if err != nil {
						return err
					}

					return runWorkers(ctx, IDSyncWorker, kind.String(), func(deps func() *core.Deps, logger *zap.Logger) []core.Task {
						return []core.Task{idsync.New(deps(), kind, logger)}
					})
				},
			},
			single(RelationWorker, "Queue follows and remove candidates from the diffs",
				func(deps *core.Deps, logger *zap.Logger) core.Task { return relation.New(deps, logger) }),
			single(ListenerWorker, "Execute queued actions",
				func(deps *core.Deps, logger *zap.Logger) core.Task { return listener.New(deps, logger) }),
			single(RemoverWorker, "Unfollow inactive friends who do not follow back",
				func(deps *core.Deps, logger *zap.Logger) core.Task { return remover.New(deps, logger) }),
			single(ProfileWorker, "Fetch missing profiles",
				func(deps *core.Deps, logger *zap.Logger) core.Task { return profile.New(deps, logger) }),
			single(FollowBackWorker, "Follow back followers directly",
				func(deps *core.Deps, logger *zap.Logger) core.Task { return followback.New(deps, logger) }),
			{
				Name:  AllWorkers,
				Usage: "Run id sync, relation, listener and profile workers together",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runWorkers(ctx, AllWorkers, "", func(deps func() *core.Deps, logger *zap.Logger) []core.Task {
						return []core.Task{
							idsync.New(deps(), enum.RelationKindFollower, logger),
							idsync.New(deps(), enum.RelationKindFriend, logger),
							relation.New(deps(), logger),
							listener.New(deps(), logger),
							profile.New(deps(), logger),
						}
					})
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, os.Args)
}

// single builds a subcommand that runs one task.
func single(name, usage string, build func(*core.Deps, *zap.Logger) core.Task) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, _ *cli.Command) error {
			return runWorkers(ctx, name, "", func(deps func() *core.Deps, logger *zap.Logger) []core.Task {
				return []core.Task{build(deps(), logger)}
			})
		},
	}
}

// parseKind accepts the plural id set names used on the command line.
func parseKind(s string) (enum.RelationKind, error) {
	switch s {
	case "friends", "friend":
		return enum.RelationKindFriend, nil
	case "followers", "follower":
		return enum.RelationKindFollower, nil
	default:
		return 0, fmt.Errorf("invalid kind %q: expected friends or followers", s)
	}
}

// runWorkers starts a runner per task and blocks until ctx is cancelled.
func runWorkers(
	ctx context.Context, workerType, subType string, build func(func() *core.Deps, *zap.Logger) []core.Task,
) error {
	app, err := setup.InitializeApp(ctx, telemetry.ServiceWorker, WorkerLogDir, workerType)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.WithoutCancel(ctx))

	// *rand.Rand is not safe for concurrent use, so every task gets its own
	newDeps := func() *core.Deps {
		return &core.Deps{
			Store:  app.DB,
			API:    app.API,
			Caller: app.Caller,
			Clock:  app.Clock,
			Config: &app.Config.Worker,
			Rand:   core.NewRand(app.Config.Worker.RelationSeed),
		}
	}

	var wg conc.WaitGroup

	for _, task := range build(newDeps, app.LogManager.GetWorkerLogger(workerType)) {
		logger := app.LogManager.GetWorkerLogger(task.Name())
		reporter := core.NewStatusReporter(app.StatusClient, app.Clock, workerType, task.Name(), logger)
		runner := core.NewRunner(task, app.Clock, logger, core.WithReporter(reporter))

		wg.Go(func() { runner.Run(ctx) })
	}

	app.Logger.Info("Started workers", zap.String("type", workerType), zap.String("subType", subType))

	wg.Wait()

	app.Logger.Info("All workers have finished")

	return nil
}
