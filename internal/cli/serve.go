package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/schoolmaps/overcrowding/internal/server"
	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/pipeline"
)

// serveFlags holds the command-line flags for the serve command.
type serveFlags struct {
	inputFlags
	addr       string
	redisURL   string
	sessionTTL time.Duration
	origins    []string
}

// serveCommand creates the serve command that runs the HTTP viewer.
func (c *CLI) serveCommand() *cobra.Command {
	flags := serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve [topology] [table]",
		Short: "Run the interactive map viewer",
		Long: `Run the HTTP map viewer.

The viewer serves the map at /, the raw SVG at /map.svg and a JSON API
under /api. POST /api/reload re-reads the inputs; when that fails the
current map stays online.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := c.mergeOptions(cmd, flags.opts, args)
			cfg := c.config.Server
			if cmd.Flags().Changed("addr") || cfg.Addr == "" {
				cfg.Addr = flags.addr
			}
			if cmd.Flags().Changed("session-ttl") {
				cfg.SessionTTL = flags.sessionTTL
			}
			if cmd.Flags().Changed("origin") {
				cfg.AllowedOrigins = flags.origins
			}
			return c.runServe(cmd.Context(), opts, cfg, &flags)
		},
	}

	flags.register(cmd)
	fl := cmd.Flags()
	fl.StringVar(&flags.addr, "addr", server.DefaultAddr, "listen address")
	fl.StringVar(&flags.redisURL, "redis", "", "cache rendered maps in Redis at this URL (redis://host:port/db)")
	fl.DurationVar(&flags.sessionTTL, "session-ttl", 0, "idle lifetime of selection sessions")
	fl.StringSliceVar(&flags.origins, "origin", nil, "allowed CORS origins (default any)")
	fl.Float64Var(&flags.opts.Width, "width", pipeline.DefaultWidth, "frame width")
	fl.Float64Var(&flags.opts.Height, "height", pipeline.DefaultHeight, "frame height")
	fl.StringVar(&flags.opts.Projection, "projection", pipeline.DefaultProjection, "projection: albers, equirectangular, identity")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts pipeline.Options, cfg server.Config, flags *serveFlags) error {
	runner, err := c.serveRunner(ctx, flags)
	if err != nil {
		return err
	}
	defer runner.Close()

	if err := opts.ValidateForLoad(); err != nil {
		return err
	}

	srv := server.New(runner, opts, cfg, c.Logger)

	spinner := startSpinner(ctx, "Loading dataset...")
	ds, err := srv.Load(ctx)
	if err != nil {
		spinner.Fail("Load failed")
		return err
	}
	spinner.Stop()
	printSuccess("Loaded %s", StyleHighlight.Render(opts.Topology))
	printStats(len(ds.Clusters), len(ds.Schools), false)
	printNextStep("Open", "http://"+srvAddr(cfg))

	return srv.Run(ctx)
}

// serveRunner picks the artifact cache: Redis when configured, the local
// file cache otherwise.
func (c *CLI) serveRunner(ctx context.Context, flags *serveFlags) (*pipeline.Runner, error) {
	redisCfg := c.config.Redis
	if flags.redisURL != "" {
		redisCfg = &cache.RedisConfig{URL: flags.redisURL}
	}
	if redisCfg != nil && !flags.noCache {
		c.Logger.Debug("using redis cache", "addr", redisCfg.Addr, "url", redisCfg.URL != "")
		return c.newRedisRunner(ctx, *redisCfg)
	}
	return c.newRunner(flags.noCache)
}

func srvAddr(cfg server.Config) string {
	if cfg.Addr == "" {
		return server.DefaultAddr
	}
	return cfg.Addr
}
