package memcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextInterning(t *testing.T) {
	cm := newContextManager(2, 64)

	root := cm.Root()
	assert.Same(t, root, cm.Root())
	assert.Equal(t, "[]", root.String())

	a := cm.Select(root, 1, "f")
	b := cm.Select(root, 1, "f")
	assert.Same(t, a, b)

	c := cm.Select(root, 2, "f")
	assert.NotSame(t, a, c)

	assert.Equal(t, 3, cm.count())
}

func TestContextDepthLimit(t *testing.T) {
	cm := newContextManager(2, 64)

	root := cm.Root()
	c1 := cm.Select(root, 1, "f")
	c12 := cm.Select(c1, 2, "g")
	c123 := cm.Select(c12, 3, "h")
	require.Len(t, c123.sites, 2)
	assert.Equal(t, []SiteID{2, 3}, c123.sites)

	// Truncation makes deep chains converge.
	again := cm.Select(c123, 3, "h")
	deeper := cm.Select(again, 3, "h")
	assert.Same(t, again, deeper)
}

func TestContextWidening(t *testing.T) {
	cm := newContextManager(2, 2)

	root := cm.Root()
	a := cm.Select(root, 1, "f")
	b := cm.Select(root, 2, "f")
	assert.NotSame(t, a, b)

	// Third distinct context for f exceeds the cap.
	w := cm.Select(root, 3, "f")
	assert.Equal(t, "⟨f:widened⟩", w.String())
	assert.Same(t, w, cm.Select(root, 4, "f"))

	// Other functions are unaffected.
	g := cm.Select(root, 3, "g")
	assert.NotSame(t, w, g)

	// Known call strings keep resolving to their interned context.
	assert.Same(t, a, cm.Select(root, 1, "f"))
}
