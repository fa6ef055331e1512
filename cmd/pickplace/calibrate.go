// Calibrate command: plan and save the home-to-location paths.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/internal/motion"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Plan the home-to-location path of every location and save them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dataDir, err := resolveDataDir()
		if err != nil {
			return sysError(fmt.Errorf("resolve data dir: %w", err))
		}
		client, err := dialBridge(ctx, cfg)
		if err != nil {
			return sysError(err)
		}
		defer client.Close()

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

		path := cfg.cachePath(dataDir)
		cache, err := prepareCache(ctx, ctrl, client, path, false, cfg.Catalog(), logger)
		if err != nil {
			return sysError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Calibrated %d locations\n  paths: %s\n", cache.Len(), path)
		return nil
	},
}

func init() {
	calibrateCmd.Flags().BoolVar(&flagVisPath, "vis-path", false, "draw each path in the scene before executing it")
}
