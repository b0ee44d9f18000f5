// Command foundryd runs the Foundry workflow execution engine's HTTP API
// server: the port/type registry, graph compiler, interpreter, remote
// container dispatcher, and automation router wired behind
// internal/httpapi, following the teacher's signal-driven graceful
// shutdown shape (example/cmd/assistant/main.go) adapted from a generated
// goa service to a single chi-routed server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/iota-uz/foundry-sub005/internal/automation"
	"github.com/iota-uz/foundry-sub005/internal/config"
	"github.com/iota-uz/foundry-sub005/internal/containerplatform"
	"github.com/iota-uz/foundry-sub005/internal/dispatcher"
	"github.com/iota-uz/foundry-sub005/internal/executors"
	"github.com/iota-uz/foundry-sub005/internal/hooks"
	"github.com/iota-uz/foundry-sub005/internal/httpapi"
	"github.com/iota-uz/foundry-sub005/internal/interpreter"
	"github.com/iota-uz/foundry-sub005/internal/provider"
	"github.com/iota-uz/foundry-sub005/internal/registry"
	"github.com/iota-uz/foundry-sub005/internal/sandbox"
	"github.com/iota-uz/foundry-sub005/internal/secrets"
	"github.com/iota-uz/foundry-sub005/internal/store"
	"github.com/iota-uz/foundry-sub005/internal/telemetry"
	"github.com/iota-uz/foundry-sub005/internal/token"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("foundryd: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("foundryd: %w", err)
	}

	logger := telemetry.NewClueLogger("foundryd")

	box, err := secrets.NewBox(mustKey(cfg))
	if err != nil {
		return fmt.Errorf("foundryd: %w", err)
	}

	workflows := store.NewMemoryWorkflows()
	executions := store.NewMemoryExecutions()
	automations := store.NewMemoryAutomations()
	locks, err := automationLocks(cfg, automations)
	if err != nil {
		return fmt.Errorf("foundryd: %w", err)
	}

	reg := registry.New()
	sb := sandbox.New(10 * time.Second)
	bus := hooks.NewBus()

	llm := provider.Client(&provider.Mock{})
	tracker := newLoggingTracker(logger)

	execRegistry := executors.NewRegistry(
		executors.NewAgent(llm),
		executors.NewLLM(llm),
		executors.NewCommand(executors.NewOSCommandRunner()),
		executors.NewSlashCommand(executors.NewOSCommandRunner()),
		executors.NewEval(sb),
		executors.NewHTTP(&http.Client{Timeout: 30 * time.Second}),
		executors.NewDynamicAgent(llm, sb),
		executors.NewDynamicCommand(executors.NewOSCommandRunner(), sb),
		executors.NewGitCheckout(os.TempDir()),
		executors.NewGitHubProject(tracker),
	)

	interp := interpreter.New(executions, bus, execRegistry, reg, sb, logger)

	platform, err := containerplatform.NewDockerPlatform()
	if err != nil {
		logger.Warn(ctx, "docker platform unavailable, falling back to mock container platform", "error", err.Error())
	}
	var cplatform containerplatform.Platform = platform
	if platform == nil {
		cplatform = containerplatform.NewMock()
	}

	signer := token.NewSigner([]byte(cfg.TokenSigningKey))
	revocations := token.NewRevocations()

	dispatch := dispatcher.New(interp, cplatform, dispatcher.NewMemoryPlanStore(), signer, revocations, box, dispatcher.Config{
		EndpointURL:  cfg.WebhookEndpointURL,
		DefaultImage: cfg.DefaultDockerImage,
		Poll: containerplatform.PollOptions{
			Initial:  cfg.PollInitial,
			Max:      cfg.PollMax,
			Deadline: cfg.PollDeadline,
		},
		TokenTTL: cfg.TokenTTL,
	}, logger)

	router, err := automation.New(automations, locks, workflows, reg, dispatch, interp, sb, tracker, bus, logger)
	if err != nil {
		return fmt.Errorf("foundryd: %w", err)
	}
	defer router.Close()

	sweeper := interpreter.NewSweeper(interp, executions, cfg.SweepInterval)
	reaper := automation.NewLockReaper(locks, cfg.LockTTL, cfg.LockSweepPeriod, logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go sweeper.Run(runCtx)
	go reaper.Run(runCtx)

	server := httpapi.New(workflows, automations, reg, interp, dispatch, router, bus, llm, logger)

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Router(),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info(ctx, "foundryd listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info(ctx, "received signal, shutting down", "signal", sig.String())
	case err := <-errc:
		logger.Error(ctx, "server error", "error", err.Error())
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("foundryd: graceful shutdown failed: %w", err)
	}
	if platform != nil {
		_ = platform.Close()
	}
	return nil
}

// automationLocks picks the automation lock backend: Redis when StoreDSN
// names a redis:// endpoint (so the at-most-one-active-execution-per-issue
// invariant holds across replicas), the in-memory store otherwise.
func automationLocks(cfg *config.Config, fallback store.LockStore) (store.LockStore, error) {
	if !strings.HasPrefix(cfg.StoreDSN, "redis://") && !strings.HasPrefix(cfg.StoreDSN, "rediss://") {
		return fallback, nil
	}
	opts, err := redis.ParseURL(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("config: invalid store_dsn: %w", err)
	}
	return store.NewRedisLocks(redis.NewClient(opts), ""), nil
}

func mustKey(cfg *config.Config) []byte {
	key, err := cfg.EncryptionKey()
	if err != nil {
		// Validate already rejected a bad key; this only runs after that check.
		panic(err)
	}
	return key
}
