// Package httputil provides the plumbing used to fetch remote map inputs.
//
//   - [Cache]: file-based caching of resource bodies with a TTL
//   - [Retry]: retry with exponential backoff for transient failures
//   - [CheckStatus]: classify HTTP responses as retryable or fatal
//
// Transient failures are network errors, 5xx responses and 429 rate
// limits. [CheckStatus] wraps them in [RetryableError] so [Retry] attempts
// them again; every other failure stops immediately:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return &httputil.RetryableError{Err: err}
//	    }
//	    defer resp.Body.Close()
//	    if err := httputil.CheckStatus(resp); err != nil {
//	        return err
//	    }
//	    body, err = io.ReadAll(resp.Body)
//	    return err
//	})
//
// The cache lives in ~/.cache/overcrowding/ by default and is cleared by
// `overcrowding cache clear`.
package httputil
