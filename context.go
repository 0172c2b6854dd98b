package memcheck

import (
	"fmt"
	"strings"
)

// SiteID identifies one call site across the whole program.
type SiteID int

// Context distinguishes call instances of the same function. It is an
// interned, immutable chain of the most recent call sites (a k-limited call
// string); two contexts are equal iff they are the same pointer.
type Context struct {
	id      int
	sites   []SiteID
	widened string // non-empty for the collapsed per-function context
}

func (c *Context) String() string {
	if c.widened != "" {
		return fmt.Sprintf("⟨%s:widened⟩", c.widened)
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range c.sites {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", int(s))
	}
	b.WriteByte(']')
	return b.String()
}

// contextManager mints contexts. Selection is deterministic and the number
// of distinct contexts per callee is bounded: call strings are truncated to
// the last k sites, and once a callee has accumulated maxPerFunc contexts
// any further selection widens to a single collapsed context for it.
type contextManager struct {
	k         int
	maxPerFn  int
	byKey     map[string]*Context
	all       []*Context
	perCallee map[string]int
}

func newContextManager(k, maxPerFn int) *contextManager {
	return &contextManager{
		k:         k,
		maxPerFn:  maxPerFn,
		byKey:     make(map[string]*Context),
		perCallee: make(map[string]int),
	}
}

func (cm *contextManager) intern(key string, mk func() *Context) *Context {
	if c, ok := cm.byKey[key]; ok {
		return c
	}
	c := mk()
	c.id = len(cm.all)
	cm.all = append(cm.all, c)
	cm.byKey[key] = c
	return c
}

// Root returns the empty context used for entry functions.
func (cm *contextManager) Root() *Context {
	return cm.intern("[]", func() *Context { return &Context{} })
}

func callStringKey(sites []SiteID) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, s := range sites {
		fmt.Fprintf(&b, "%d,", int(s))
	}
	b.WriteByte(']')
	return b.String()
}

// Select derives the context for invoking callee from caller at site.
func (cm *contextManager) Select(caller *Context, site SiteID, callee string) *Context {
	sites := make([]SiteID, 0, len(caller.sites)+1)
	sites = append(sites, caller.sites...)
	sites = append(sites, site)
	if len(sites) > cm.k {
		sites = sites[len(sites)-cm.k:]
	}

	key := callStringKey(sites)
	if c, ok := cm.byKey[key]; ok {
		return c
	}
	if cm.perCallee[callee] >= cm.maxPerFn {
		return cm.widened(callee)
	}
	cm.perCallee[callee]++
	return cm.intern(key, func() *Context { return &Context{sites: sites} })
}

// widened returns the collapsed context for callee, used once the
// per-function bound is exceeded.
func (cm *contextManager) widened(callee string) *Context {
	return cm.intern("w:"+callee, func() *Context { return &Context{widened: callee} })
}

func (cm *contextManager) count() int { return len(cm.all) }
