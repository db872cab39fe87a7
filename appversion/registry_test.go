package appversion

import (
	"context"
	"testing"

	"gotest.tools/v3/assert"
)

type fakeVersion struct{ name string }

func (f fakeVersion) Name() string { return f.name }
func (f fakeVersion) Load(ctx context.Context, workingDir string) (Instance, error) {
	return nil, nil
}

func TestRegistryNamesPreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeVersion{"vone"})
	r.Register(fakeVersion{"vtwo"})
	r.Register(fakeVersion{"vthree"})

	assert.DeepEqual(t, r.Names(), []string{"vone", "vtwo", "vthree"})
}

func TestRegistryGetUnknownVersion(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nope")
	assert.Assert(t, !ok)
}

func TestRegistryMigrateRequiresRegisteredPair(t *testing.T) {
	r := NewRegistry()
	err := r.Migrate(context.Background(), "vone", "vtwo", t.TempDir())
	assert.ErrorContains(t, err, "no migration registered")
}

func TestRegistryMigrateInvokesRegisteredFunc(t *testing.T) {
	r := NewRegistry()
	var calledWith string
	r.RegisterMigration("vone", "vtwo", func(ctx context.Context, workingDir string) error {
		calledWith = workingDir
		return nil
	})

	dir := t.TempDir()
	assert.NilError(t, r.Migrate(context.Background(), "vone", "vtwo", dir))
	assert.Equal(t, calledWith, dir)
}
