package governance

import (
	"context"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

type modelKey struct {
	name    string
	version string
}

// MemoryModelRepository is a thread-safe in-memory ModelRepository.
type MemoryModelRepository struct {
	mu      sync.RWMutex
	records map[modelKey]ModelRecord
}

func NewMemoryModelRepository() *MemoryModelRepository {
	return &MemoryModelRepository{records: make(map[modelKey]ModelRecord)}
}

func (r *MemoryModelRepository) Save(ctx context.Context, record ModelRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[modelKey{record.ModelName, record.Version}] = record
	return nil
}

func (r *MemoryModelRepository) Get(ctx context.Context, name, version string) (*ModelRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[modelKey{name, version}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

// GetLatest returns the highest version for a name. Versions that parse as
// semver are ordered semantically; non-semver versions fall back to the
// most recently registered record.
func (r *MemoryModelRepository) GetLatest(ctx context.Context, name string) (*ModelRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *ModelRecord
	var latestVer *semver.Version
	var fallback *ModelRecord
	for key, record := range r.records {
		if key.name != name {
			continue
		}
		record := record
		if fallback == nil || record.RegisteredAt.After(fallback.RegisteredAt) {
			fallback = &record
		}
		v, err := semver.NewVersion(record.Version)
		if err != nil {
			continue
		}
		if latestVer == nil || v.GreaterThan(latestVer) {
			latest = &record
			latestVer = v
		}
	}
	if latest != nil {
		return latest, nil
	}
	return fallback, nil
}

type promptKey struct {
	name    string
	version int
}

// MemoryPromptRepository is a thread-safe in-memory PromptRepository.
type MemoryPromptRepository struct {
	mu      sync.RWMutex
	records map[promptKey]PromptRecord
}

func NewMemoryPromptRepository() *MemoryPromptRepository {
	return &MemoryPromptRepository{records: make(map[promptKey]PromptRecord)}
}

func (r *MemoryPromptRepository) Save(ctx context.Context, record PromptRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[promptKey{record.PromptName, record.Version}] = record
	return nil
}

func (r *MemoryPromptRepository) Get(ctx context.Context, name string, version int) (*PromptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[promptKey{name, version}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *MemoryPromptRepository) GetLatest(ctx context.Context, name string) (*PromptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *PromptRecord
	for key, record := range r.records {
		if key.name != name {
			continue
		}
		record := record
		if latest == nil || record.Version > latest.Version {
			latest = &record
		}
	}
	return latest, nil
}

func (r *MemoryPromptRepository) GetVersions(ctx context.Context, name string) ([]PromptRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []PromptRecord
	for key, record := range r.records {
		if key.name == name {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Version < records[j].Version
	})
	return records, nil
}
