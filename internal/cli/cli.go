package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/pkg/buildinfo"
	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/httputil"
	"github.com/schoolmaps/overcrowding/pkg/observability"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = buildinfo.Name

	// defaultConfigName is looked up in the config directory when --config
	// is not given.
	defaultConfigName = "config.toml"

	// httpCacheTTL is how long downloaded inputs are reused.
	httpCacheTTL = 24 * time.Hour
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Overcrowding maps school enrollment against capacity",
		Long: `Overcrowding renders a choropleth of school clusters colored by
enrollment over capacity, with school markers colored by their own ratio.

Inputs are a TopoJSON file of cluster boundaries and school points, and a
CSV capacity table with one row per school, year and figure.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(c.configPath)
			if err != nil {
				return err
			}
			c.config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			observability.SetPipelineHooks(logHooks{c.Logger})
			observability.SetCacheHooks(logHooks{c.Logger})
			observability.SetHTTPHooks(logHooks{c.Logger})
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+defaultConfigPathHint()+")")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.assignCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	cache, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	r := pipeline.NewRunner(cache, nil, c.Logger)
	if !noCache {
		if hc, err := newHTTPCache(); err == nil {
			r.Fetcher.Cache = hc
		}
	}
	return r, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newRedisRunner creates a runner whose artifact cache lives in Redis.
func (c *CLI) newRedisRunner(ctx context.Context, cfg cache.RedisConfig) (*pipeline.Runner, error) {
	rc, err := cache.NewRedisCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), appName)
	r := pipeline.NewRunner(rc, keyer, c.Logger)
	if hc, err := newHTTPCache(); err == nil {
		r.Fetcher.Cache = hc
	}
	return r, nil
}

// newHTTPCache opens the download cache under the cache directory.
func newHTTPCache() (*httputil.Cache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return httputil.NewCache(filepath.Join(dir, httpCacheDir), httpCacheTTL)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/overcrowding/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory using XDG standard (~/.config/overcrowding/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

func defaultConfigPathHint() string {
	return filepath.Join("~", ".config", appName, defaultConfigName)
}

// =============================================================================
// Output Helpers
// =============================================================================

// basePath derives the base output path from the output and input file paths.
// If output is empty, it strips the extension from input.
// If output has a format extension (.svg, .pdf, etc.), it strips that extension.
func basePath(output, input string) string {
	if output == "" {
		if errors.IsURL(input) {
			input = filepath.Base(input)
		}
		return strings.TrimSuffix(input, filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		base := strings.TrimSuffix(output, ext)
		return strings.TrimSuffix(base, ".adjacency")
	}
	return output
}

// outputPath returns where an artifact of the given format is written.
// A single requested format goes to output verbatim when it is set.
func outputPath(output, input, format string, single bool) string {
	if single && output != "" {
		return output
	}
	return basePath(output, input) + "." + pipeline.Extension(format)
}
