// Package source fetches the map inputs from local files or http(s) URLs.
//
// Remote fetches get a per-request timeout, retries with exponential
// backoff for transient failures, and an optional body cache. [LoadAll]
// fetches every input concurrently and returns either all of them or the
// first error; it never returns a partial set.
package source

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/schoolmaps/overcrowding/pkg/buildinfo"
	"github.com/schoolmaps/overcrowding/pkg/cache"
	"github.com/schoolmaps/overcrowding/pkg/errors"
	"github.com/schoolmaps/overcrowding/pkg/httputil"
	"github.com/schoolmaps/overcrowding/pkg/observability"
)

// Defaults for remote fetches.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultAttempts = 3
	DefaultBackoff  = 500 * time.Millisecond
	DefaultMaxBody  = 64 << 20
)

// Fetcher reads inputs. The zero value is usable.
type Fetcher struct {
	// Client defaults to a client without a global timeout; Timeout bounds
	// each attempt instead.
	Client   *http.Client
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
	// MaxBody caps a single remote body in bytes.
	MaxBody int64

	// Cache, when set, stores remote bodies. Refresh skips cached reads
	// but still writes fresh bodies back.
	Cache   *httputil.Cache
	Keyer   cache.Keyer
	Refresh bool

	Logger *log.Logger
}

func (f *Fetcher) timeout() time.Duration {
	if f.Timeout > 0 {
		return f.Timeout
	}
	return DefaultTimeout
}

func (f *Fetcher) attempts() int {
	if f.Attempts > 0 {
		return f.Attempts
	}
	return DefaultAttempts
}

func (f *Fetcher) backoff() time.Duration {
	if f.Backoff > 0 {
		return f.Backoff
	}
	return DefaultBackoff
}

func (f *Fetcher) maxBody() int64 {
	if f.MaxBody > 0 {
		return f.MaxBody
	}
	return DefaultMaxBody
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return http.DefaultClient
}

func (f *Fetcher) keyer() cache.Keyer {
	if f.Keyer != nil {
		return f.Keyer
	}
	return cache.NewDefaultKeyer()
}

func (f *Fetcher) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.Default()
}

// Fetch returns the contents of a local path or http(s) URL.
func (f *Fetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := errors.ValidateLocation(location); err != nil {
		return nil, err
	}
	if errors.IsURL(location) {
		return f.fetchURL(ctx, location)
	}
	return readFile(location)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "file not found: %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", path)
	}
	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	key := f.keyer().HTTPKey("resource", rawURL)
	if f.Cache != nil && !f.Refresh {
		var body []byte
		ok, err := f.Cache.Get(key, &body)
		switch {
		case ok:
			observability.Cache().OnCacheHit(ctx, "http")
			f.logger().Debug("cache hit", "url", rawURL, "bytes", len(body))
			return body, nil
		case err != nil && !stderrors.Is(err, httputil.ErrExpired):
			f.logger().Warn("cache read failed", "url", rawURL, "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "http")
	}

	u, _ := url.Parse(rawURL)
	var body []byte
	err := httputil.Retry(ctx, f.attempts(), f.backoff(), func() error {
		var err error
		body, err = f.get(ctx, u)
		if err != nil && isRetryable(err) {
			f.logger().Debug("retrying fetch", "url", rawURL, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, classify(ctx, rawURL, err)
	}

	if f.Cache != nil {
		if err := f.Cache.Set(key, body); err != nil {
			f.logger().Warn("cache write failed", "url", rawURL, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "http", len(body))
		}
	}
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, u *url.URL) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()

	resp, err := f.client().Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
		if ctx.Err() != nil && stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &httputil.RetryableError{Err: context.DeadlineExceeded}
		}
		return nil, &httputil.RetryableError{Err: err}
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, err
	}
	limit := f.maxBody()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &httputil.RetryableError{Err: err}
	}
	if int64(len(body)) > limit {
		return nil, errors.New(errors.ErrCodeTooLarge, "response from %s exceeds %d bytes", u.Redacted(), limit)
	}
	return body, nil
}

func isRetryable(err error) bool {
	return stderrors.As(err, new(*httputil.RetryableError))
}

// classify turns a fetch failure into a coded error.
func classify(ctx context.Context, rawURL string, err error) error {
	if errors.GetCode(err) != "" {
		return err
	}
	if ctx.Err() != nil {
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "fetch %s", rawURL)
		}
		return errors.Wrap(errors.ErrCodeNetwork, ctx.Err(), "fetch %s cancelled", rawURL)
	}
	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Wrap(errors.ErrCodeTimeout, err, "fetch %s timed out", rawURL)
	}
	var se *httputil.StatusError
	if stderrors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound:
			return errors.Wrap(errors.ErrCodeNotFound, err, "fetch %s", rawURL)
		case se.StatusCode == http.StatusTooManyRequests:
			return errors.Wrap(errors.ErrCodeRateLimited, err, "fetch %s", rawURL)
		}
	}
	return errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", rawURL)
}

// Request names the inputs of one map.
type Request struct {
	Topology string
	Table    string
}

// Resources holds the fetched inputs.
type Resources struct {
	Topology []byte
	Table    []byte
}

// LoadAll fetches every input of req concurrently. The first failure
// cancels the remaining fetches and is returned alone.
func (f *Fetcher) LoadAll(ctx context.Context, req Request) (*Resources, error) {
	var res Resources
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := f.Fetch(gctx, req.Topology)
		if err != nil {
			return err
		}
		res.Topology = data
		return nil
	})
	g.Go(func() error {
		data, err := f.Fetch(gctx, req.Table)
		if err != nil {
			return err
		}
		res.Table = data
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	f.logger().Debug("inputs loaded", "topology_bytes", len(res.Topology), "table_bytes", len(res.Table))
	return &res, nil
}

// LoadAll fetches req with a default Fetcher.
func LoadAll(ctx context.Context, req Request) (*Resources, error) {
	var f Fetcher
	return f.LoadAll(ctx, req)
}
