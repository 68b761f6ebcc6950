package resilience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryGetCreatesOnce(t *testing.T) {
	registry := NewRegistry(testConfig())

	a := registry.Get("convert.pdf")
	b := registry.Get("convert.pdf")
	assert.Same(t, a, b)

	registry.Get("convert.html")
	assert.Equal(t, []string{"convert.html", "convert.pdf"}, registry.Names())
}

func TestRegistrySnapshotsAndReset(t *testing.T) {
	registry := NewRegistry(testConfig())
	_, _ = registry.Get("a").Execute(context.Background(), fail)
	_, _ = registry.Get("b").Execute(context.Background(), succeed)

	snaps := registry.Snapshots()
	assert.Len(t, snaps, 2)
	assert.Equal(t, "a", snaps[0].Name)
	assert.Equal(t, int64(1), snaps[0].TotalFailures)

	registry.ResetAll()
	for _, snap := range registry.Snapshots() {
		assert.Zero(t, snap.TotalCalls)
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(testConfig())
	_, ok := registry.Lookup("convert.pdf")
	assert.False(t, ok)
	assert.Empty(t, registry.Names())

	created := registry.Get("convert.pdf")
	found, ok := registry.Lookup("convert.pdf")
	assert.True(t, ok)
	assert.Same(t, created, found)
}
