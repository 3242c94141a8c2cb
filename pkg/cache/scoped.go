package cache

// ScopedKeyer wraps a Keyer with a prefix so several tools can share one
// backend:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "nixpkgs-vault:")
//	keyer.EvalKey(url, "nixos-unstable") // "nixpkgs-vault:eval:..."
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer means [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// EvalKey returns the prefixed evaluation key.
func (k *ScopedKeyer) EvalKey(gitURL, revision string) string {
	return k.prefix + k.inner.EvalKey(gitURL, revision)
}
