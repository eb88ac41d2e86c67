package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/nebulastream/nebulastream-sub003/internal/passes"
)

// ConfigFile is the name looked up by FindConfig.
const ConfigFile = "nautc.toml"

// Config mirrors nautc.toml.
type Config struct {
	Path     string        `toml:"-"`
	Pipeline PipelineTable `toml:"pipeline"`
	Trace    TraceTable    `toml:"trace"`
	Cache    CacheTable    `toml:"cache"`
}

type PipelineTable struct {
	Passes              []string `toml:"passes"`
	CountedLoops        bool     `toml:"counted_loops"`
	ConstPropIterations int      `toml:"constprop_iterations"`
	Verify              bool     `toml:"verify"`
	Jobs                int      `toml:"jobs"`
}

type TraceTable struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Output string `toml:"output"`
}

type CacheTable struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// FindConfig walks up from startDir to locate nautc.toml.
func FindConfig(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// LoadConfig parses a nautc.toml. Keys left out keep the values of
// DefaultOptions, so an explicit `verify = false` differs from no key.
func LoadConfig(path string) (*Config, error) {
	def := DefaultOptions()
	cfg := &Config{
		Path: path,
		Pipeline: PipelineTable{
			Passes:              def.Passes,
			CountedLoops:        def.Pass.CountedLoops,
			ConstPropIterations: def.Pass.ConstPropIterations,
			Verify:              def.Verify,
		},
	}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("pipeline", "passes") {
		for _, name := range cfg.Pipeline.Passes {
			if _, ok := passes.Lookup(name); !ok {
				return nil, fmt.Errorf("%s: [pipeline].passes: unknown pass %q", path, name)
			}
		}
	}
	if cfg.Pipeline.ConstPropIterations < 0 {
		return nil, fmt.Errorf("%s: [pipeline].constprop_iterations must not be negative", path)
	}
	if cfg.Pipeline.Jobs < 0 {
		return nil, fmt.Errorf("%s: [pipeline].jobs must not be negative", path)
	}
	return cfg, nil
}

// Options converts the [pipeline] table.
func (c *Config) Options() Options {
	return Options{
		Passes: append([]string(nil), c.Pipeline.Passes...),
		Pass: passes.Options{
			CountedLoops:        c.Pipeline.CountedLoops,
			ConstPropIterations: c.Pipeline.ConstPropIterations,
		},
		Verify: c.Pipeline.Verify,
		Jobs:   c.Pipeline.Jobs,
	}
}
