package appversion

import (
	"context"

	"github.com/cosmos-archival/reindexer/internal/xerrors"
)

// migrationKey identifies a registered (from, to) migration pair.
type migrationKey struct {
	From, To string
}

// Registry is the closed, build-time-registered set of protocol versions
// and the migrations between adjacent pairs, assembled once at process
// start.
type Registry struct {
	order      []string
	versions   map[string]Version
	migrations map[migrationKey]MigrateFunc
}

// NewRegistry returns an empty registry. Callers register concrete
// versions in the order they should be probed when recovering a working
// directory's current version.
func NewRegistry() *Registry {
	return &Registry{
		versions:   make(map[string]Version),
		migrations: make(map[migrationKey]MigrateFunc),
	}
}

// Register adds a version to the registry.
func (r *Registry) Register(v Version) {
	r.order = append(r.order, v.Name())
	r.versions[v.Name()] = v
}

// RegisterMigration adds the migrate function for the ordered pair
// (from, to).
func (r *Registry) RegisterMigration(from, to string, fn MigrateFunc) {
	r.migrations[migrationKey{from, to}] = fn
}

// Get returns the named version, if registered.
func (r *Registry) Get(name string) (Version, bool) {
	v, ok := r.versions[name]
	return v, ok
}

// Names returns the registered version names in registration order, the
// order the regenerator probes a working directory in.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Migrate looks up and invokes the migration from "from" to "to" against
// workingDir. It fails with VersionRuntime if no such migration was
// registered.
func (r *Registry) Migrate(ctx context.Context, from, to, workingDir string) error {
	fn, ok := r.migrations[migrationKey{from, to}]
	if !ok {
		return xerrors.VersionRuntime.Newf("no migration registered from %q to %q", from, to)
	}
	return fn(ctx, workingDir)
}
