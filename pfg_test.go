package memcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wrybill/memcheck/ir"
)

func TestPFGNodeIdentity(t *testing.T) {
	cm := newContextManager(2, 64)
	g := newPFG(8)
	ctx := cm.Root()

	a, isNew := g.ensure(ctx, "f", 0, nil)
	assert.True(t, isNew)
	b, isNew := g.ensure(ctx, "f", 0, nil)
	assert.False(t, isNew)
	assert.Equal(t, a, b)

	path := ir.Path{{Kind: ir.Field, Index: 1}, {Kind: ir.Deref}}
	c, isNew := g.ensure(ctx, "f", 0, path)
	assert.True(t, isNew)
	assert.NotEqual(t, a, c)

	other := cm.Select(ctx, 1, "f")
	d, isNew := g.ensure(other, "f", 0, nil)
	assert.True(t, isNew)
	assert.NotEqual(t, a, d)

	assert.ElementsMatch(t, []NodeID{a, c}, g.varNodes(ctx, "f", 0))
}

func TestPFGPathTruncation(t *testing.T) {
	g := newPFG(2)
	ctx := newContextManager(2, 64).Root()

	deep := ir.Path{{Kind: ir.Field}, {Kind: ir.Field, Index: 1}, {Kind: ir.Deref}}
	a, _ := g.ensure(ctx, "f", 0, deep)
	require.Len(t, g.node(a).path, 2)

	// The truncated tuple and the explicit prefix coincide.
	b, isNew := g.ensure(ctx, "f", 0, deep[:2])
	assert.False(t, isNew)
	assert.Equal(t, a, b)
}

func TestPFGEdgeIdempotence(t *testing.T) {
	g := newPFG(8)
	ctx := newContextManager(2, 64).Root()

	a, _ := g.ensure(ctx, "f", 0, nil)
	b, _ := g.ensure(ctx, "f", 1, nil)

	assert.True(t, g.addEdge(a, b))
	assert.False(t, g.addEdge(a, b))
	assert.Len(t, g.node(a).succs, 1)

	assert.False(t, g.addEdge(a, a), "self edges are pointless")
}
