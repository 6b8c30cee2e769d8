// Package cli implements the overcrowding command-line interface.
//
// The CLI is built using cobra and logs through charmbracelet/log. Every
// command that reads data takes the topology and the capacity table as
// positional arguments (local paths or URLs) or from the config file.
//
// # Commands
//
// The main commands are:
//   - render: Write the map as SVG, JSON, PNG or PDF, plus the cluster
//     adjacency graph as DOT or SVG
//   - stats: Print county statistics and the most crowded clusters
//   - explore: Browse clusters and schools in the terminal
//   - serve: Run the interactive HTTP viewer
//   - assign: Recompute school cluster membership from geometry
//   - export: Write per-cluster and per-school ratios as CSV or JSON
//   - cache: Manage the artifact and download cache
//
// # Configuration
//
// --config names a TOML file (default ~/.config/overcrowding/config.toml).
// Flags given on the command line override file values.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context, and pipeline events reach the log through
// the observability hooks.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/schoolmaps/overcrowding/pkg/observability"
)

// newLogger returns a logger writing to w with short timestamps
// ("14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs a completion message with the time since it was created.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Loaded 212 schools (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the command logger, or log.Default() outside a
// command.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}

// logHooks reports observability events as debug log lines.
type logHooks struct {
	logger *log.Logger
}

var (
	_ observability.PipelineHooks = logHooks{}
	_ observability.CacheHooks    = logHooks{}
	_ observability.HTTPHooks     = logHooks{}
)

func (h logHooks) OnLoadStart(_ context.Context, topology, table string) {
	h.logger.Debug("load started", "topology", topology, "table", table)
}

func (h logHooks) OnLoadComplete(_ context.Context, _, _ int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("load failed", "duration", d, "err", err)
		return
	}
	h.logger.Debug("load finished", "duration", d)
}

func (h logHooks) OnBuildStart(_ context.Context, year string, _ int) {
	h.logger.Debug("build started", "year", year)
}

func (h logHooks) OnBuildComplete(_ context.Context, contributing int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("build failed", "duration", d, "err", err)
		return
	}
	h.logger.Debug("build finished", "contributing", contributing, "duration", d)
}

func (h logHooks) OnRenderStart(_ context.Context, formats []string) {
	h.logger.Debug("render started", "formats", formats)
}

func (h logHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("render failed", "formats", formats, "err", err)
		return
	}
	h.logger.Debug("render finished", "formats", formats, "duration", d)
}

func (h logHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h logHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h logHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h logHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h logHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http response", "method", method, "host", host, "path", path, "status", status, "duration", d)
}

func (h logHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}
