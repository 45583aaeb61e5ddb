package kv

// PrefixedStore namespaces every key of an underlying Store with a fixed
// application prefix, so dashboard keys never collide with keys owned by
// other applications sharing the same backend.
type PrefixedStore struct {
	prefix string
	inner  Store
}

// Prefixed wraps s so that key "theme" is stored as prefix+"theme".
func Prefixed(s Store, prefix string) *PrefixedStore {
	return &PrefixedStore{prefix: prefix, inner: s}
}

// Prefix returns the namespace prefix.
func (p *PrefixedStore) Prefix() string { return p.prefix }

func (p *PrefixedStore) Get(key string) (string, bool) {
	return p.inner.Get(p.prefix + key)
}

func (p *PrefixedStore) Set(key, value string) error {
	return p.inner.Set(p.prefix+key, value)
}

func (p *PrefixedStore) Remove(key string) error {
	return p.inner.Remove(p.prefix + key)
}

var _ Store = (*PrefixedStore)(nil)
