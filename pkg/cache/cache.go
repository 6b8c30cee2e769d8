// Package cache stores rendered map artifacts and derived datasets.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON file per entry under the XDG cache directory,
//     used by the CLI.
//   - [RedisCache]: a shared Redis instance, used by the viewer when several
//     processes render the same inputs.
//   - [NullCache]: stores nothing, used for --no-cache.
//
// Keys come from a [Keyer] so every backend agrees on the key layout:
//
//	http:<namespace>:<key>            remote resource bodies
//	dataset:<sha256(inputs, opts)>    aggregated datasets
//	artifact:<sha256(dataset, opts)>  rendered SVG/PNG/PDF/JSON/DOT
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
type Cache interface {
	// Get returns the value for key. A miss returns (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs.
const (
	DatasetTTL  = 24 * time.Hour
	ArtifactTTL = 7 * 24 * time.Hour
)

// DatasetKeyOpts are the inputs that determine an aggregated dataset.
type DatasetKeyOpts struct {
	TopologyHash string  `json:"topology"`
	TableHash    string  `json:"table"`
	Year         string  `json:"year"`
	ClusterFloor float64 `json:"floor"`
	Palette      string  `json:"palette"`
	Bins         int     `json:"bins"`

	// Keys maps each identifying topology key to its resolved value.
	Keys          map[string]string `json:"keys,omitempty"`
	AssignMissing bool              `json:"assign_missing,omitempty"`
}

// ArtifactKeyOpts are the render options that determine one artifact.
type ArtifactKeyOpts struct {
	Format     string  `json:"format"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Projection string  `json:"projection"`
	Cluster    string  `json:"cluster,omitempty"`
	School     string  `json:"school,omitempty"`
	AllSchools bool    `json:"all_schools,omitempty"`
	Legend     bool    `json:"legend,omitempty"`
	Stats      bool    `json:"stats,omitempty"`
	Scale      float64 `json:"scale,omitempty"`
}

// Keyer builds cache keys.
type Keyer interface {
	HTTPKey(namespace, key string) string
	DatasetKey(opts DatasetKeyOpts) string
	ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer is the standard key layout.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// HTTPKey keys a remote resource body.
func (DefaultKeyer) HTTPKey(namespace, key string) string {
	return "http:" + namespace + ":" + key
}

// DatasetKey keys an aggregated dataset by its inputs.
func (DefaultKeyer) DatasetKey(opts DatasetKeyOpts) string {
	return hashKey("dataset", opts)
}

// ArtifactKey keys a rendered artifact by dataset and render options.
func (DefaultKeyer) ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", datasetHash, opts)
}
