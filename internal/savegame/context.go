package savegame

import (
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/wippyai/scriptbridge/script"
)

var _ script.FieldTransfer = (*Context)(nil)

// Context is the transfer context one environment's OnPersist hook sees.
type Context struct {
	fields map[string]string
	owner  string
	saving bool
}

func newContext(owner string, saving bool) *Context {
	return &Context{owner: owner, saving: saving, fields: make(map[string]string)}
}

// Owner returns the owner key the context belongs to.
func (c *Context) Owner() string { return c.owner }

func (c *Context) Saving() bool { return c.saving }

func (c *Context) Get(key string) (string, bool) {
	v, ok := c.fields[key]
	return v, ok
}

// Set records a field. It is ignored while loading.
func (c *Context) Set(key, value string) {
	if !c.saving {
		return
	}
	c.fields[key] = value
}

// Keys returns the field names in order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.fields))
	for k := range c.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *Context) put(scripts *bbolt.Bucket) error {
	if len(c.fields) == 0 {
		return nil
	}
	b, err := scripts.CreateBucket([]byte(c.owner))
	if err != nil {
		return err
	}
	for _, k := range c.Keys() {
		if err := b.Put([]byte(k), []byte(c.fields[k])); err != nil {
			return err
		}
	}
	return nil
}
