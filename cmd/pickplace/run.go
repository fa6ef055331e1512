// Run command: the interactive pick-and-place session.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mesh-intelligence/pickplace/internal/bridge"
	"github.com/mesh-intelligence/pickplace/internal/journal"
	"github.com/mesh-intelligence/pickplace/internal/motion"
	"github.com/mesh-intelligence/pickplace/internal/nlp"
	"github.com/mesh-intelligence/pickplace/internal/orchestrator"
	"github.com/mesh-intelligence/pickplace/internal/vision"
)

var (
	flagUseCachedPaths bool
	flagVisPath        bool
	flagVisDetect      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the simulation and read instructions from stdin",
	Long: `Connects to the simulator bridge, prepares the home-to-location paths
(calibrating or loading saved ones) and reads instructions such as

  Move the sugar to the blue bin and the clamp to the yellow bin

one per line. "detect" lists what the camera sees; "exit" ends the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runSession(ctx, cmd)
	},
}

func init() {
	runCmd.Flags().BoolVar(&flagUseCachedPaths, "use-cached-paths", false, "reuse saved home-to-location paths instead of calibrating")
	runCmd.Flags().BoolVar(&flagVisPath, "vis-path", false, "draw each path in the scene before executing it")
	runCmd.Flags().BoolVar(&flagVisDetect, "vis-detect", false, "draw detections and grasp points in the scene")
}

func runSession(ctx context.Context, cmd *cobra.Command) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	catalog := cfg.Catalog()

	var (
		client    *bridge.Client
		jr        *journal.Backend
		extractor nlp.Extractor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := dialBridge(gctx, cfg)
		client = c
		return err
	})
	g.Go(func() error {
		j, err := attachJournal(dataDir)
		jr = j
		return err
	})
	g.Go(func() error {
		e, err := newExtractor(gctx, cfg, catalog)
		extractor = e
		return err
	})
	err = g.Wait()
	if client != nil {
		defer client.Close()
	}
	if jr != nil {
		defer jr.Detach()
	}
	if err != nil {
		return sysError(err)
	}

	if err := client.StartSimulation(ctx); err != nil {
		return sysError(fmt.Errorf("start simulation: %w", err))
	}
	defer func() {
		if err := client.StopSimulation(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("stopping simulation failed", zap.Error(err))
		}
	}()

	params, err := client.Params(ctx)
	if err != nil {
		return sysError(fmt.Errorf("read arm parameters: %w", err))
	}
	ctrl := motion.New(client, client, client, params, cfg.MotionOptions(flagVisPath),
		motion.WithLogger(logger.Named("motion")))

	cache, err := prepareCache(ctx, ctrl, client, cfg.cachePath(dataDir), flagUseCachedPaths, catalog, logger)
	if err != nil {
		return sysError(err)
	}

	locOpts := []vision.Option{vision.WithLogger(logger.Named("vision"))}
	if flagVisDetect {
		locOpts = append(locOpts, vision.WithVisualizer(client))
	}

	orch := orchestrator.New(orchestrator.Deps{
		Extractor: extractor,
		Localizer: vision.New(client, client, locOpts...),
		Mover:     ctrl,
		Cache:     cache,
		Catalog:   catalog,
		Params:    params,
		Journal:   jr,
		Logger:    logger.Named("session"),
	})
	err = orch.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err != nil {
		return sysError(err)
	}
	return nil
}
