package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ashh-m/ytkeywordsearchtool/internal/app"
	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

// newRunCmd creates the 'run' subcommand. Each argument is one start input:
// a keyword, a channel URL, or a direct item URL.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [keyword|url]...",
		Short: "Runs one harvest over the given keywords and URLs",
		Long: `Runs one harvest. Keywords become search targets, channel URLs are
walked tab by tab, and direct item URLs are resolved as-is. The first
interrupt finishes the item in flight and flushes; a second interrupt
aborts immediately.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runHarvest,
	}
}

func runHarvest(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger
	cfg := appInstance.Config

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopOnSignals(ctx, appInstance.Stop, cancel, logger)

	orchestrator, emitter := buildPipeline(appInstance)
	defer func() {
		if cerr := emitter.Close(context.Background()); cerr != nil {
			logger.Warn("emitter close failed", zap.Error(cerr))
		}
	}()

	targets := harvest.MakeTargets(args)
	logger.Info("starting harvest",
		zap.Int("targets", len(targets)),
		zap.Strings("categories", cfg.Harvest.Categories))

	summary, err := orchestrator.Run(ctx, targets)
	for _, result := range summary.Targets {
		logger.Info("target summary",
			zap.String("kind", string(result.Target.Kind)),
			zap.String("value", result.Target.Value),
			zap.String("status", string(result.Status)),
			zap.Int("emitted", result.Emitted))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run harvest: %w", err)
	}
	logger.Info("harvest finished", zap.Int("emitted", summary.Emitted))
	return nil
}

func buildPipeline(a *app.App) (*harvest.Orchestrator, *harvest.Emitter) {
	cfg := a.Config
	logger := a.Logger

	controller := harvest.NewController(a.Stop, a.Snapshots, logger.Named("readiness"), harvest.ReadinessConfig{})
	resolver := harvest.NewResolver(controller, a.API, a.Stop, logger.Named("resolver"), harvest.ResolverConfig{
		CollectSubtitles: cfg.Harvest.CollectSubtitles,
	})
	harvester := harvest.NewHarvester(controller, a.Stop, logger.Named("harvester"), harvest.HarvesterConfig{
		MaxScrollRounds: cfg.Harvest.MaxScrollRounds,
		StaleRounds:     cfg.Harvest.StaleRounds,
		ScrollStep:      cfg.Harvest.ScrollStep,
		ScrollPause:     cfg.ScrollPause(),
	})

	dedup := harvest.NewDedupSet()
	emitter := harvest.NewEmitter(a.Primary, a.Fallback, dedup, cfg.Harvest.BatchSize, logger.Named("emitter"))

	caps := cfg.HarvestCaps()
	categories := harvest.ExpandCategories(cfg.Harvest.Categories, caps)

	orchestrator := harvest.NewOrchestrator(harvest.OrchestratorDeps{
		Page:      a.Session,
		Resolver:  resolver,
		Harvester: harvester,
		Emitter:   emitter,
		API:       a.API,
		Publisher: a.Publisher,
		Stop:      a.Stop,
		Logger:    logger.Named("orchestrator"),
	}, caps, categories)
	return orchestrator, emitter
}

// stopOnSignals installs the two-stage interrupt: the first signal asks the
// pipeline to wind down cooperatively, the second cancels outright.
func stopOnSignals(ctx context.Context, stop *harvest.StopSignal, cancel context.CancelFunc, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		case <-sigCh:
			logger.Warn("interrupt received, finishing current item; interrupt again to abort")
			stop.Set()
		}
		select {
		case <-ctx.Done():
		case <-sigCh:
			logger.Warn("second interrupt, aborting")
			cancel()
		}
		signal.Stop(sigCh)
	}()
}
