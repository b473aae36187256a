package store

import "context"

// SessionFactory is the injected capability through which the core obtains
// a store session. It exists so the Queue and Worker never open their own
// database connections or cache them in package-level globals — the
// factory owns the connection lifecycle, and Close is the only
// process-lifecycle hook it needs.
//
// A session is affine to the goroutine/request that requested it in the
// sense the spec describes, but because database/sql connection pools are
// already safe for concurrent use from any goroutine, the default
// FileSessionFactory below simply hands out the same pooled *DB handle to
// every caller rather than maintaining a per-thread cache — there is
// nothing unsafe about that reuse in Go the way there would be in a
// runtime with thread-affine driver handles.
type SessionFactory interface {
	// Session returns a store handle usable for the duration of one
	// logical operation (a submit, a claim loop iteration, a query).
	Session(ctx context.Context) (*DB, error)

	// Close releases all resources held by the factory. Safe to call once
	// during process shutdown.
	Close() error
}

// FileSessionFactory opens a single SQLite file and reuses the resulting
// connection pool for every Session call.
type FileSessionFactory struct {
	db *DB
}

// NewFileSessionFactory opens path and returns a factory backed by it.
func NewFileSessionFactory(path string) (*FileSessionFactory, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSessionFactory{db: db}, nil
}

// NewInMemorySessionFactory is a convenience for tests: a private,
// file-backed SQLite database at path (tests pass a t.TempDir() path), since SQLite's
// ":memory:" mode doesn't survive the multiple connections a realistic
// test (multiple "workers") needs to share.
func NewInMemorySessionFactory(path string) (*FileSessionFactory, error) {
	return NewFileSessionFactory(path)
}

func (f *FileSessionFactory) Session(ctx context.Context) (*DB, error) {
	return f.db, nil
}

func (f *FileSessionFactory) Close() error {
	return f.db.Close()
}
