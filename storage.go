package aegisx

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"sort"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Durable client state keys. These mirror the keys the web client
// keeps in local storage.
const (
	StateKeyAccessToken     = "access_token"
	StateKeyRememberedEmail = "remembered_email"
	StateKeyTheme           = "theme"
	StateKeyPendingReports  = "pending_error_reports"
)

// Theme values persisted under StateKeyTheme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// ErrStateKeyNotFound is returned when a key has no stored value.
var ErrStateKeyNotFound = goerrors.New("state key not found", goerrors.CategoryNotFound).
	WithTextCode("STATE_KEY_NOT_FOUND").
	WithCode(goerrors.CodeNotFound)

// StateStore is the durable client-state surface (the local-storage
// analog): access token, remembered email, theme preference.
type StateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StateEntry is a single durable key/value row.
type StateEntry struct {
	bun.BaseModel `bun:"table:client_state,alias:cs"`
	Key           string    `bun:"key,pk" json:"key"`
	Value         string    `bun:"value,notnull" json:"value"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

// BunStateStore persists client state in a sqlite file through bun.
type BunStateStore struct {
	db  *bun.DB
	now func() time.Time
}

var _ StateStore = (*BunStateStore)(nil)

// OpenStateDB opens (or creates) the sqlite database backing the
// durable client state. Use ":memory:" for throwaway stores.
func OpenStateDB(path string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "unable to open state database")
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// NewBunStateStore wraps db. Call Init before first use.
func NewBunStateStore(db *bun.DB) *BunStateStore {
	return &BunStateStore{db: db, now: time.Now}
}

// Init applies the embedded migrations in filename order.
func (s *BunStateStore) Init(ctx context.Context) error {
	var files []string
	root := "data/sql/migrations"

	err := fs.WalkDir(migrationsFS, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to list state migrations")
	}

	sort.Strings(files)

	for _, file := range files {
		ddl, err := migrationsFS.ReadFile(file)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to read state migration").
				WithMetadata(map[string]any{"file": file})
		}
		if _, err := s.db.ExecContext(ctx, string(ddl)); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to apply state migration").
				WithMetadata(map[string]any{"file": file})
		}
	}

	return nil
}

// Get returns the value stored under key, or ErrStateKeyNotFound.
func (s *BunStateStore) Get(ctx context.Context, key string) (string, error) {
	entry := &StateEntry{}
	err := s.db.NewSelect().
		Model(entry).
		Where("key = ?", key).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errWithMetadata(ErrStateKeyNotFound, map[string]any{"key": key})
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "state read failed").
			WithMetadata(map[string]any{"key": key})
	}

	return entry.Value, nil
}

// Set upserts the value stored under key.
func (s *BunStateStore) Set(ctx context.Context, key, value string) error {
	entry := &StateEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}

	_, err := s.db.NewInsert().
		Model(entry).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "state write failed").
			WithMetadata(map[string]any{"key": key})
	}

	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *BunStateStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.NewDelete().
		Model((*StateEntry)(nil)).
		Where("key = ?", key).
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "state delete failed").
			WithMetadata(map[string]any{"key": key})
	}

	return nil
}

// MemoryStateStore is the in-memory StateStore used by tests and
// non-persistent runs.
type MemoryStateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore returns an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: map[string]string{}}
}

func (s *MemoryStateStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return "", errWithMetadata(ErrStateKeyNotFound, map[string]any{"key": key})
	}
	return value, nil
}

func (s *MemoryStateStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
