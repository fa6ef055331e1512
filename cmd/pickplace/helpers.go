// Shared helpers for pickplace commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/internal/bridge"
	"github.com/mesh-intelligence/pickplace/internal/journal"
	"github.com/mesh-intelligence/pickplace/internal/motion"
	"github.com/mesh-intelligence/pickplace/internal/nlp"
	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// attachJournal attaches the task journal in dataDir. The caller must defer
// Detach.
func attachJournal(dataDir string) (*journal.Backend, error) {
	b := journal.NewBackend()
	if err := b.Attach(dataDir); err != nil {
		return nil, fmt.Errorf("attach journal: %w", err)
	}
	return b, nil
}

// dialBridge connects to the simulator bridge. The caller must defer Close.
func dialBridge(ctx context.Context, s *settings) (*bridge.Client, error) {
	dctx, cancel := context.WithTimeout(ctx, s.Bridge.DialTimeout)
	defer cancel()
	return bridge.Dial(dctx, s.Bridge.Address,
		bridge.WithCallTimeout(s.Bridge.CallTimeout),
		bridge.WithLogger(logger.Named("bridge")))
}

// newExtractor builds the configured intent extractor.
func newExtractor(ctx context.Context, s *settings, catalog types.Catalog) (nlp.Extractor, error) {
	if s.Extractor.Backend != extractorGenAI {
		return nlp.NewRuleExtractor(catalog), nil
	}
	key := os.Getenv(s.Extractor.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("extractor.backend is genai but $%s is empty", s.Extractor.APIKeyEnv)
	}
	gen, err := nlp.NewGeminiGenerator(ctx, key, s.Extractor.Model)
	if err != nil {
		return nil, err
	}
	return nlp.NewGenAIExtractor(gen, catalog, logger.Named("nlp")), nil
}

// calibrator is the part of the motion controller used at startup.
type calibrator interface {
	Calibrate(ctx context.Context, locations map[types.LocationID]types.LocationSpec) (*trajcache.Cache, error)
}

var _ calibrator = (*motion.Controller)(nil)

// collisionSwitch toggles the scene's collision box.
type collisionSwitch interface {
	SetCollisionChecking(ctx context.Context, enabled bool) error
}

// prepareCache returns a trajectory cache covering every configured location.
//
// Without reuse every location is calibrated and the result saved. With
// reuse the saved file is loaded; a missing file falls back to calibration,
// while a corrupt or incomplete file is an error the operator must resolve.
func prepareCache(ctx context.Context, c calibrator, scene collisionSwitch, path string, reuse bool, catalog types.Catalog, log *zap.Logger) (*trajcache.Cache, error) {
	if reuse {
		cache, err := trajcache.LoadFile(path)
		switch {
		case err == nil:
			if err := cache.Require(catalog.LocationIDs()...); err != nil {
				return nil, fmt.Errorf("%s: %w (run pickplace calibrate)", path, err)
			}
			// Calibration leaves collision checking on; match that state.
			if err := scene.SetCollisionChecking(ctx, true); err != nil {
				return nil, err
			}
			log.Info("reusing saved paths", zap.String("file", path), zap.Int("locations", cache.Len()))
			return cache, nil
		case errors.Is(err, os.ErrNotExist):
			log.Warn("no saved paths, calibrating", zap.String("file", path))
		default:
			return nil, err
		}
	}

	cache, err := c.Calibrate(ctx, catalog.Locations)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	if err := cache.SaveFile(path); err != nil {
		return nil, fmt.Errorf("save paths: %w", err)
	}
	log.Info("saved paths", zap.String("file", path), zap.Int("locations", cache.Len()))
	return cache, nil
}
