package script

import (
	"fmt"
	"strconv"
	"strings"
)

// OwnerKind distinguishes the two kinds of script owner.
type OwnerKind uint8

const (
	OwnerEntity OwnerKind = iota + 1
	OwnerQuest
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerEntity:
		return "entity"
	case OwnerQuest:
		return "quest"
	}
	return "unknown"
}

// Owner identifies the entity or quest an environment belongs to.
type Owner struct {
	Kind OwnerKind
	ID   uint64
}

// EntityOwner returns the owner key for an entity script.
func EntityOwner(id uint64) Owner { return Owner{Kind: OwnerEntity, ID: id} }

// QuestOwner returns the owner key for a quest script.
func QuestOwner(id uint64) Owner { return Owner{Kind: OwnerQuest, ID: id} }

func (o Owner) String() string {
	return o.Kind.String() + ":" + strconv.FormatUint(o.ID, 10)
}

// Less orders entities before quests, then by id.
func (o Owner) Less(p Owner) bool {
	if o.Kind != p.Kind {
		return o.Kind < p.Kind
	}
	return o.ID < p.ID
}

// ParseOwner parses "entity:42" or "quest:7".
func ParseOwner(s string) (Owner, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Owner{}, fmt.Errorf("owner %q: missing ':'", s)
	}
	var o Owner
	switch kind {
	case "entity":
		o.Kind = OwnerEntity
	case "quest":
		o.Kind = OwnerQuest
	default:
		return Owner{}, fmt.Errorf("owner %q: unknown kind %q", s, kind)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return Owner{}, fmt.Errorf("owner %q: %w", s, err)
	}
	o.ID = n
	return o, nil
}
