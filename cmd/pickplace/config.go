// Config loading for the pickplace CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/pickplace/internal/motion"
	"github.com/mesh-intelligence/pickplace/internal/nlp"
	"github.com/mesh-intelligence/pickplace/internal/paths"
	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBridgeAddress      = "bridge.address"
	cfgKeyBridgeDialTimeout  = "bridge.dial_timeout"
	cfgKeyBridgeCallTimeout  = "bridge.call_timeout"
	cfgKeySettleDelay        = "motion.settle_delay"
	cfgKeyPathStabilize      = "motion.path_stabilize"
	cfgKeyPostPathDelay      = "motion.post_path_delay"
	cfgKeyVisualizeHold      = "motion.visualize_hold"
	cfgKeyVisualizeSteps     = "motion.visualize_steps"
	cfgKeyDescentStep        = "motion.descent_step"
	cfgKeyDescentMaxSteps    = "motion.descent_max_steps"
	cfgKeyDescentTimeout     = "motion.descent_timeout"
	cfgKeyCalibrationPause   = "motion.calibration_pause"
	cfgKeyCacheFile          = "cache.file"
	cfgKeyExtractorBackend   = "extractor.backend"
	cfgKeyExtractorModel     = "extractor.model"
	cfgKeyExtractorAPIKeyEnv = "extractor.api_key_env"
	cfgKeyDataDir            = "data_dir"

	defaultBridgeAddress = "ws://localhost:23050/pickplace"

	extractorRules = "rules"
	extractorGenAI = "genai"
)

// Config validation errors.
var (
	errBridgeAddressEmpty = errors.New("bridge.address must not be empty")
	errUnknownExtractor   = errors.New("extractor.backend must be rules or genai")
	errNoItems            = errors.New("at least one item must be configured")
	errNoLocations        = errors.New("at least one location must be configured")
	errDuplicateName      = errors.New("duplicate catalog name")
	errDescentStep        = errors.New("motion.descent_step must be positive")
	errDescentMaxSteps    = errors.New("motion.descent_max_steps must be positive")
)

// itemEntry and locationEntry are catalog entries as written in config.yaml.
// Lists rather than maps keep names case-sensitive through viper.
type itemEntry struct {
	Name    string   `mapstructure:"name" yaml:"name"`
	Tall    bool     `mapstructure:"tall" yaml:"tall,omitempty"`
	Aliases []string `mapstructure:"aliases" yaml:"aliases,flow"`
}

type locationEntry struct {
	Name     string     `mapstructure:"name" yaml:"name"`
	Position [3]float64 `mapstructure:"position" yaml:"position,flow"`
	Aliases  []string   `mapstructure:"aliases" yaml:"aliases,flow"`
}

// settings is the decoded configuration.
type settings struct {
	Bridge struct {
		Address     string        `mapstructure:"address"`
		DialTimeout time.Duration `mapstructure:"dial_timeout"`
		CallTimeout time.Duration `mapstructure:"call_timeout"`
	} `mapstructure:"bridge"`
	Motion struct {
		SettleDelay      time.Duration `mapstructure:"settle_delay"`
		PathStabilize    time.Duration `mapstructure:"path_stabilize"`
		PostPathDelay    time.Duration `mapstructure:"post_path_delay"`
		VisualizeHold    time.Duration `mapstructure:"visualize_hold"`
		VisualizeSteps   int           `mapstructure:"visualize_steps"`
		DescentStep      float64       `mapstructure:"descent_step"`
		DescentMaxSteps  int           `mapstructure:"descent_max_steps"`
		DescentTimeout   time.Duration `mapstructure:"descent_timeout"`
		CalibrationPause time.Duration `mapstructure:"calibration_pause"`
	} `mapstructure:"motion"`
	Cache struct {
		File string `mapstructure:"file"`
	} `mapstructure:"cache"`
	Extractor struct {
		Backend   string `mapstructure:"backend"`
		Model     string `mapstructure:"model"`
		APIKeyEnv string `mapstructure:"api_key_env"`
	} `mapstructure:"extractor"`
	Items     []itemEntry     `mapstructure:"items"`
	Locations []locationEntry `mapstructure:"locations"`
	DataDir   string          `mapstructure:"data_dir"`
}

// defaultItems and defaultLocations describe the stock scene.
var (
	defaultItems = []itemEntry{
		{Name: "sugar_box", Tall: true, Aliases: []string{"sugar", "sugar box", "box of sugar", "box"}},
		{Name: "large_clamp", Aliases: []string{"clamp", "large clamp"}},
		{Name: "tuna_fish_can", Aliases: []string{"tuna fish can", "tuna can", "can of tuna", "tuna", "little can", "small can"}},
		{Name: "master_chef_can", Tall: true, Aliases: []string{"master chef can", "big can", "chef can", "master chef"}},
	}
	defaultLocations = []locationEntry{
		{Name: "redBin", Position: [3]float64{0.570, 0.375, 0.6}, Aliases: []string{"red bin", "red trashcan", "red trash"}},
		{Name: "yellowBin", Position: [3]float64{0.050, 0.375, 0.6}, Aliases: []string{"yellow bin", "yellow trashcan", "yellow trash"}},
		{Name: "blueBin", Position: [3]float64{-0.450, 0.375, 0.6}, Aliases: []string{"blue bin", "blue trashcan", "blue trash"}},
	}
)

// setDefaults registers every scalar default with v.
func setDefaults(v *viper.Viper) {
	m := motion.DefaultOptions()
	v.SetDefault(cfgKeyBridgeAddress, defaultBridgeAddress)
	v.SetDefault(cfgKeyBridgeDialTimeout, 10*time.Second)
	v.SetDefault(cfgKeyBridgeCallTimeout, 30*time.Second)
	v.SetDefault(cfgKeySettleDelay, m.SettleDelay)
	v.SetDefault(cfgKeyPathStabilize, m.PathStabilize)
	v.SetDefault(cfgKeyPostPathDelay, m.PostPathDelay)
	v.SetDefault(cfgKeyVisualizeHold, m.VisualizeHold)
	v.SetDefault(cfgKeyVisualizeSteps, m.VisualizeSteps)
	v.SetDefault(cfgKeyDescentStep, m.DescentStep)
	v.SetDefault(cfgKeyDescentMaxSteps, m.DescentMaxSteps)
	v.SetDefault(cfgKeyDescentTimeout, m.DescentTimeout)
	v.SetDefault(cfgKeyCalibrationPause, m.CalibrationPause)
	v.SetDefault(cfgKeyCacheFile, trajcache.DefaultFileName)
	v.SetDefault(cfgKeyExtractorBackend, extractorRules)
	v.SetDefault(cfgKeyExtractorModel, nlp.DefaultModel)
	v.SetDefault(cfgKeyExtractorAPIKeyEnv, "GEMINI_API_KEY")
}

// defaultConfigYAML renders the config.yaml written on first run.
func defaultConfigYAML() ([]byte, error) {
	v := viper.New()
	setDefaults(v)

	dur := func(key string) string { return v.GetDuration(key).String() }
	doc := map[string]any{
		"bridge": map[string]any{
			"address":      v.GetString(cfgKeyBridgeAddress),
			"dial_timeout": dur(cfgKeyBridgeDialTimeout),
			"call_timeout": dur(cfgKeyBridgeCallTimeout),
		},
		"motion": map[string]any{
			"settle_delay":      dur(cfgKeySettleDelay),
			"path_stabilize":    dur(cfgKeyPathStabilize),
			"post_path_delay":   dur(cfgKeyPostPathDelay),
			"visualize_hold":    dur(cfgKeyVisualizeHold),
			"visualize_steps":   v.GetInt(cfgKeyVisualizeSteps),
			"descent_step":      v.GetFloat64(cfgKeyDescentStep),
			"descent_max_steps": v.GetInt(cfgKeyDescentMaxSteps),
			"descent_timeout":   dur(cfgKeyDescentTimeout),
			"calibration_pause": dur(cfgKeyCalibrationPause),
		},
		"cache": map[string]any{
			"file": v.GetString(cfgKeyCacheFile),
		},
		"extractor": map[string]any{
			"backend":     v.GetString(cfgKeyExtractorBackend),
			"model":       v.GetString(cfgKeyExtractorModel),
			"api_key_env": v.GetString(cfgKeyExtractorAPIKeyEnv),
		},
		"items":     defaultItems,
		"locations": defaultLocations,
	}
	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	header := "# pickplace configuration\n" +
		"# data_dir may be set here; --data-dir and PICKPLACE_DATA_DIR also apply.\n\n"
	return append([]byte(header), body...), nil
}

// loadConfig reads config.yaml from configDir, creating the directory and a
// default file on first run.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// decodeSettings unmarshals and validates v.
func decodeSettings(v *viper.Viper) (*settings, error) {
	var s settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(s.Items) == 0 && !v.IsSet("items") {
		s.Items = defaultItems
	}
	if len(s.Locations) == 0 && !v.IsSet("locations") {
		s.Locations = defaultLocations
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the settings and returns one of the config errors.
func (s *settings) Validate() error {
	if s.Bridge.Address == "" {
		return errBridgeAddressEmpty
	}
	switch s.Extractor.Backend {
	case extractorRules, extractorGenAI:
	default:
		return fmt.Errorf("%w: %q", errUnknownExtractor, s.Extractor.Backend)
	}
	if s.Motion.DescentStep <= 0 {
		return errDescentStep
	}
	if s.Motion.DescentMaxSteps <= 0 {
		return errDescentMaxSteps
	}
	if len(s.Items) == 0 {
		return errNoItems
	}
	if len(s.Locations) == 0 {
		return errNoLocations
	}
	seen := map[string]bool{}
	for _, it := range s.Items {
		if it.Name == "" || seen["item:"+it.Name] {
			return fmt.Errorf("%w: item %q", errDuplicateName, it.Name)
		}
		seen["item:"+it.Name] = true
	}
	for _, loc := range s.Locations {
		if loc.Name == "" || seen["location:"+loc.Name] {
			return fmt.Errorf("%w: location %q", errDuplicateName, loc.Name)
		}
		seen["location:"+loc.Name] = true
	}
	return nil
}

// Catalog returns the configured items and locations.
func (s *settings) Catalog() types.Catalog {
	c := types.Catalog{
		Items:     make(map[types.ItemID]types.ItemSpec, len(s.Items)),
		Locations: make(map[types.LocationID]types.LocationSpec, len(s.Locations)),
	}
	for _, it := range s.Items {
		c.Items[types.ItemID(it.Name)] = types.ItemSpec{Tall: it.Tall, Aliases: it.Aliases}
	}
	for _, loc := range s.Locations {
		c.Locations[types.LocationID(loc.Name)] = types.LocationSpec{Position: loc.Position, Aliases: loc.Aliases}
	}
	return c
}

// MotionOptions returns the controller options.
func (s *settings) MotionOptions(visualize bool) motion.Options {
	return motion.Options{
		SettleDelay:      s.Motion.SettleDelay,
		PathStabilize:    s.Motion.PathStabilize,
		PostPathDelay:    s.Motion.PostPathDelay,
		VisualizePath:    visualize,
		VisualizeHold:    s.Motion.VisualizeHold,
		VisualizeSteps:   s.Motion.VisualizeSteps,
		DescentStep:      s.Motion.DescentStep,
		DescentMaxSteps:  s.Motion.DescentMaxSteps,
		DescentTimeout:   s.Motion.DescentTimeout,
		CalibrationPause: s.Motion.CalibrationPause,
	}
}

// cachePath returns the trajectory cache file inside dataDir.
func (s *settings) cachePath(dataDir string) string {
	return paths.InDir(dataDir, s.Cache.File)
}

// ensureConfigDir creates the config directory if it does not exist.
func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile writes the default config.yaml if the config
// directory has none.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, paths.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return fmt.Errorf("render default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
