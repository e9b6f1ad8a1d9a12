package vectorsearch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// snapshot is the full persisted state of a Store, serialised wholesale on
// every mutation. Spec §4.10 requires the index to survive process
// restarts; it does not require per-entry durability, so a whole-snapshot
// write is a faithful and simple way to satisfy it.
type snapshot struct {
	Entries map[string][]entry               `json:"entries"`
	Files   map[string]map[string]fileRecord `json:"files"`
}

// Persister loads and saves a Store's full snapshot. Two implementations
// back spec §6's ephemeral ("disk") and durable ("redis") modes.
type Persister interface {
	Load(ctx context.Context) (*snapshot, error)
	Save(ctx context.Context, snap *snapshot) error
}

// diskPersister is the ephemeral-mode backend: a single JSON file on disk,
// used when config.VectorStoreBackend is "disk" (its default).
type diskPersister struct {
	path string
}

// NewDiskPersister builds a Persister that snapshots to a JSON file at path.
func NewDiskPersister(path string) Persister {
	return &diskPersister{path: path}
}

func (d *diskPersister) Load(ctx context.Context) (*snapshot, error) {
	data, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (d *diskPersister) Save(ctx context.Context, snap *snapshot) error {
	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}

// redisPersister is the durable-mode backend, keeping the same whole-snapshot
// shape as diskPersister but behind a single Redis key so the index survives
// restarts of an ephemeral container.
type redisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister builds a Persister backed by a single Redis key.
func NewRedisPersister(client *redis.Client, key string) Persister {
	if key == "" {
		key = "vectorsearch:snapshot"
	}
	return &redisPersister{client: client, key: key}
}

func (r *redisPersister) Load(ctx context.Context) (*snapshot, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return emptySnapshot(), nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *redisPersister) Save(ctx context.Context, snap *snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, data, 0).Err()
}

func emptySnapshot() *snapshot {
	return &snapshot{
		Entries: make(map[string][]entry),
		Files:   make(map[string]map[string]fileRecord),
	}
}
