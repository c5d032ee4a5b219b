// Package savegame persists the global store and per-script fields in a
// bbolt file. It is the host side of the persistence routing: scripts see a
// Context through their OnPersist hook.
package savegame

import (
	"fmt"
	"strconv"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/wippyai/scriptbridge/globals"
	"github.com/wippyai/scriptbridge/script"
)

var (
	bucketGlobals = []byte("globals")
	bucketScripts = []byte("scripts")
)

// Store wraps a bbolt save file.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates the save file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("savegame: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketGlobals, bucketScripts} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("savegame: create buckets: %w", err)
	}
	return &Store{bolt: db}, nil
}

// Close closes the save file.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the save file's path.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Save writes the global store and the fields every environment sets from
// OnPersist, replacing the previous save in one transaction.
func (s *Store) Save(reg *script.Registry, g *globals.Store) error {
	var ctxs []*Context
	reg.PersistAll(func(o script.Owner) any {
		c := newContext(o.String(), true)
		ctxs = append(ctxs, c)
		return c
	})

	err := s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := putGlobals(tx, g.Snapshot()); err != nil {
			return err
		}
		if err := tx.DeleteBucket(bucketScripts); err != nil {
			return err
		}
		scripts, err := tx.CreateBucket(bucketScripts)
		if err != nil {
			return err
		}
		for _, c := range ctxs {
			if err := c.put(scripts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("savegame: save: %w", err)
	}
	Logger().Debug("saved",
		zap.String("path", s.Path()),
		zap.Int("globals", g.Len()),
		zap.Int("scripts", len(ctxs)))
	return nil
}

// Restore replaces the global store with the saved one and hands every live
// environment its saved fields.
func (s *Store) Restore(reg *script.Registry, g *globals.Store) error {
	saved := make(map[string]globals.Value)
	fields := make(map[string]map[string]string)
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		err := tx.Bucket(bucketGlobals).ForEach(func(k, v []byte) error {
			val, err := decodeValue(v)
			if err != nil {
				return fmt.Errorf("global %q: %w", k, err)
			}
			saved[string(k)] = val
			return nil
		})
		if err != nil {
			return err
		}
		return tx.Bucket(bucketScripts).ForEachBucket(func(owner []byte) error {
			m := make(map[string]string)
			err := tx.Bucket(bucketScripts).Bucket(owner).ForEach(func(k, v []byte) error {
				m[string(k)] = string(v)
				return nil
			})
			fields[string(owner)] = m
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("savegame: restore: %w", err)
	}

	g.Restore(saved)
	for _, o := range reg.Owners() {
		c := newContext(o.String(), false)
		c.fields = fields[o.String()]
		if c.fields == nil {
			c.fields = make(map[string]string)
		}
		reg.Persist(o, c)
	}
	return nil
}

// Fields returns the fields saved for owner.
func (s *Store) Fields(owner string) (map[string]string, error) {
	out := make(map[string]string)
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketScripts).Bucket([]byte(owner))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out[string(k)] = string(v)
			return nil
		})
	})
	return out, err
}

func putGlobals(tx *bbolt.Tx, m map[string]globals.Value) error {
	if err := tx.DeleteBucket(bucketGlobals); err != nil {
		return err
	}
	b, err := tx.CreateBucket(bucketGlobals)
	if err != nil {
		return err
	}
	for k, v := range m {
		if err := b.Put([]byte(k), encodeValue(v)); err != nil {
			return err
		}
	}
	return nil
}

// encodeValue stores a one-byte type tag followed by the value's text.
func encodeValue(v globals.Value) []byte {
	switch v.Type() {
	case globals.TypeBool:
		b, _ := v.AsBool()
		if b {
			return []byte{byte(globals.TypeBool), '1'}
		}
		return []byte{byte(globals.TypeBool), '0'}
	case globals.TypeInt:
		i, _ := v.AsInt()
		return strconv.AppendInt([]byte{byte(globals.TypeInt)}, i, 10)
	default:
		s, _ := v.AsString()
		return append([]byte{byte(globals.TypeString)}, s...)
	}
}

func decodeValue(data []byte) (globals.Value, error) {
	if len(data) == 0 {
		return globals.Value{}, fmt.Errorf("empty value")
	}
	body := string(data[1:])
	switch globals.Type(data[0]) {
	case globals.TypeBool:
		return globals.Bool(body == "1"), nil
	case globals.TypeInt:
		i, err := strconv.ParseInt(body, 10, 64)
		if err != nil {
			return globals.Value{}, err
		}
		return globals.Int(i), nil
	case globals.TypeString:
		return globals.String(body), nil
	}
	return globals.Value{}, fmt.Errorf("unknown type tag %d", data[0])
}
