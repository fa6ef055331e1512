// Package trajcache stores the precomputed home-to-location trajectories
// produced by calibration and persists them as a single JSON document.
//
// A Cache is filled once (by calibration or by loading a saved file) and then
// only read; recalibrating builds a new Cache instead of editing the old one.
package trajcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Cache maps location names to their calibrated targets.
type Cache struct {
	mu      sync.RWMutex
	targets map[types.LocationID]types.LocationTarget
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{targets: make(map[types.LocationID]types.LocationTarget)}
}

// Get returns a copy of the target stored for location.
// Returns ErrCacheMiss if the location has not been calibrated.
func (c *Cache) Get(location types.LocationID) (types.LocationTarget, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.targets[location]
	if !ok {
		return types.LocationTarget{}, fmt.Errorf("%w: %s", types.ErrCacheMiss, location)
	}
	return t.Clone(), nil
}

// Put stores target under location, replacing any previous value.
// Returns ErrMalformedTrajectory if the path is empty or not a whole number
// of joint configurations.
func (c *Cache) Put(location types.LocationID, target types.LocationTarget) error {
	if location == "" {
		return errors.New("location name must not be empty")
	}
	if err := target.Validate(); err != nil {
		return fmt.Errorf("put %s: %w", location, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.targets[location] = target.Clone()
	return nil
}

// Len returns the number of cached locations.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.targets)
}

// Locations returns the cached location names, sorted.
func (c *Cache) Locations() []types.LocationID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]types.LocationID, 0, len(c.targets))
	for id := range c.targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Require returns ErrCacheMiss naming every location in ids that is not
// cached, or nil when all are present.
func (c *Cache) Require(ids ...types.LocationID) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var missing []string
	for _, id := range ids {
		if _, ok := c.targets[id]; !ok {
			missing = append(missing, string(id))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", types.ErrCacheMiss, strings.Join(missing, ", "))
	}
	return nil
}

// record is the on-disk form of one location. Older cache files wrote the
// joint configuration under "config"; Load accepts either key.
type record struct {
	HomeConfig []float64 `json:"homeConfig"`
	Config     []float64 `json:"config,omitempty"`
	Path       []float64 `json:"path"`
}

// Save serializes the cache as a JSON object keyed by location name.
// encoding/json writes float64 values in their shortest exact form, so
// Load(Save()) reproduces every joint angle bit for bit.
func (c *Cache) Save() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]record, len(c.targets))
	for id, t := range c.targets {
		out[string(id)] = record{
			HomeConfig: t.HomeConfig[:],
			Path:       []float64(t.Path),
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Load parses data produced by Save. Any structural mismatch (invalid JSON,
// a configuration without exactly NumJoints values, an empty path or a path
// that does not split into whole configurations) returns ErrCacheCorrupt.
func Load(data []byte) (*Cache, error) {
	var raw map[string]record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCacheCorrupt, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: top level is not an object", types.ErrCacheCorrupt)
	}

	c := New()
	for name, rec := range raw {
		home := rec.HomeConfig
		if home == nil {
			home = rec.Config
		}
		cfg, err := types.JointConfigurationFromSlice(home)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", types.ErrCacheCorrupt, name, err)
		}
		target := types.LocationTarget{HomeConfig: cfg, Path: types.Trajectory(rec.Path)}
		if err := c.Put(types.LocationID(name), target); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrCacheCorrupt, err)
		}
	}
	return c, nil
}
