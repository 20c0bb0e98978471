package dedup

import "context"

// SeenSet is the persisted dedup state: fingerprints and canonical URLs of
// every article ever accepted.
type SeenSet struct {
	Fingerprints []string
	URLs         []string
}

// SeenStore persists the seen-set across runs. Load runs at start, Save at
// end; the in-memory Detector does the actual dedup work in between.
type SeenStore interface {
	Load(ctx context.Context) (SeenSet, error)
	Save(ctx context.Context, set SeenSet) error
	Close() error
}

// MemoryStore is a SeenStore that forgets everything when the process exits.
// Used by tests and --no-persist runs.
type MemoryStore struct {
	set SeenSet
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored set.
func (m *MemoryStore) Load(_ context.Context) (SeenSet, error) {
	return m.set, nil
}

// Save replaces the stored set.
func (m *MemoryStore) Save(_ context.Context, set SeenSet) error {
	m.set = set
	return nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }
