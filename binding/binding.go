// Package binding holds the named inputs a host surface sets on a component
// and re-invokes registered callbacks whenever one of them changes.
package binding

import "sync"

// Well-known input names shared by the components in this module.
const (
	RecordID      = "recordId"
	ObjectAPIName = "objectApiName"
	DocumentID    = "documentId"
	DocumentName  = "documentName"
	JournalID     = "journalId"
	AccountID     = "accountId"
	MarketUnit    = "marketUnit"
)

type watcher struct {
	id    int
	names []string
	fn    func()
}

// Context is a set of host-bound string inputs. The zero value is not usable;
// call New.
type Context struct {
	mu       sync.Mutex
	values   map[string]string
	watchers []watcher
	nextID   int
}

func New() *Context {
	return &Context{values: make(map[string]string)}
}

// Get returns the current value of name, or "" when unset.
func (c *Context) Get(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[name]
}

// Set assigns value to name and fires every watcher of name whose inputs are
// all set. Assigning the current value is a no-op.
func (c *Context) Set(name, value string) {
	c.mu.Lock()
	if prev, ok := c.values[name]; ok && prev == value {
		c.mu.Unlock()
		return
	}
	c.values[name] = value

	var fire []func()
	for _, w := range c.watchers {
		if contains(w.names, name) && c.resolvedLocked(w.names) {
			fire = append(fire, w.fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Watch registers fn against names. fn runs immediately when every name is
// already set, and again after each change to any of them while all are set.
// The returned func unregisters the watcher.
func (c *Context) Watch(fn func(), names ...string) (cancel func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher{id: id, names: names, fn: fn})
	ready := c.resolvedLocked(names)
	c.mu.Unlock()

	if ready {
		fn()
	}

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, w := range c.watchers {
			if w.id == id {
				c.watchers = append(c.watchers[:i], c.watchers[i+1:]...)
				return
			}
		}
	}
}

func (c *Context) resolvedLocked(names []string) bool {
	for _, n := range names {
		if c.values[n] == "" {
			return false
		}
	}
	return true
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
