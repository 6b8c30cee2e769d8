package cli

import (
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/internal/server"
	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

// Config is the on-disk configuration. Every value can be overridden by the
// matching command-line flag.
//
//	topology = "data/clusters.topojson"
//	table    = "data/capacity.csv"
//	year     = "2016"
//	cluster_floor = 0.75
//
//	[keys]
//	school_id = "s_id3"
//
//	[server]
//	addr = "0.0.0.0:8080"
//	session_ttl = "1h"
//
//	[redis]
//	url = "redis://localhost:6379/0"
type Config struct {
	pipeline.Options
	Server server.Config      `toml:"server"`
	Redis  *cache.RedisConfig `toml:"redis"`
}

// loadConfig reads the config file at path. An empty path falls back to the
// default location, where a missing file is not an error.
func loadConfig(path string) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		dir, err := configDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, defaultConfigName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		if stderrors.Is(err, fs.ErrNotExist) {
			return cfg, errors.New(errors.ErrCodeFileNotFound, "config file not found: %s", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidInput, "unknown config key %q in %s", undecoded[0].String(), path)
	}
	return cfg, nil
}

// optionFields maps flag names to the Options field they set, so values from
// the config file fill in every flag the user did not pass.
var optionFields = map[string]func(dst, src *pipeline.Options){
	"year":           func(d, s *pipeline.Options) { d.Year = s.Year },
	"floor":          func(d, s *pipeline.Options) { d.ClusterFloor = s.ClusterFloor },
	"palette":        func(d, s *pipeline.Options) { d.Palette = s.Palette },
	"bins":           func(d, s *pipeline.Options) { d.Bins = s.Bins },
	"assign-missing": func(d, s *pipeline.Options) { d.AssignMissing = s.AssignMissing },
	"refresh":        func(d, s *pipeline.Options) { d.Refresh = s.Refresh },
	"format":         func(d, s *pipeline.Options) { d.Formats = s.Formats },
	"width":          func(d, s *pipeline.Options) { d.Width = s.Width },
	"height":         func(d, s *pipeline.Options) { d.Height = s.Height },
	"projection":     func(d, s *pipeline.Options) { d.Projection = s.Projection },
	"cluster":        func(d, s *pipeline.Options) { d.Cluster = s.Cluster },
	"school":         func(d, s *pipeline.Options) { d.School = s.School },
	"all-schools":    func(d, s *pipeline.Options) { d.AllSchools = s.AllSchools },
	"legend":         func(d, s *pipeline.Options) { d.Legend = s.Legend },
	"stats":          func(d, s *pipeline.Options) { d.Stats = s.Stats },
	"png-scale":      func(d, s *pipeline.Options) { d.PNGScale = s.PNGScale },
}

// mergeOptions returns the config file options overridden by every flag the
// user set explicitly. Inputs given as positional arguments always win.
func (c *CLI) mergeOptions(cmd *cobra.Command, flags pipeline.Options, args []string) pipeline.Options {
	opts := flags
	file := c.config.Options
	for name, set := range optionFields {
		f := cmd.Flags().Lookup(name)
		if f == nil || f.Changed {
			continue
		}
		set(&opts, &file)
	}
	opts.Keys = file.Keys

	opts.Topology, opts.Table = file.Topology, file.Table
	if len(args) > 0 {
		opts.Topology = args[0]
	}
	if len(args) > 1 {
		opts.Table = args[1]
	}
	opts.Logger = c.Logger
	return opts
}
