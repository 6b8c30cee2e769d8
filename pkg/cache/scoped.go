package cache

// ScopedKeyer prefixes every key of an inner Keyer, so several viewers can
// share one Redis instance without colliding:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "viewer:montgomery:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner uses
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// HTTPKey implements Keyer.
func (k *ScopedKeyer) HTTPKey(namespace, key string) string {
	return k.prefix + k.inner.HTTPKey(namespace, key)
}

// DatasetKey implements Keyer.
func (k *ScopedKeyer) DatasetKey(opts DatasetKeyOpts) string {
	return k.prefix + k.inner.DatasetKey(opts)
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(datasetHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(datasetHash, opts)
}
