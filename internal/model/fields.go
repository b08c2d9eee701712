package model

import (
	"fmt"
	"sort"
)

// Field names accepted in a partial update.
const (
	FieldName     = "name"
	FieldItemType = "item_type"
	FieldComplete = "complete"
)

// Fields is a raw partial update as it arrives from a transport (usually
// decoded JSON). Use Decode to validate it.
type Fields map[string]any

// Patch is a validated partial update. Nil members are left unchanged.
type Patch struct {
	Name     *string
	Complete *bool

	// SetItemType distinguishes "item_type": null (clear) from an absent key.
	SetItemType bool
	ItemType    *string
}

// FieldError describes the first offending key of a Fields value.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Decode checks every key and value type. Unknown keys are rejected.
// Keys are visited in sorted order so the reported field is deterministic.
func (f Fields) Decode() (Patch, error) {
	var p Patch
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := f[k]
		switch k {
		case FieldName:
			s, ok := v.(string)
			if !ok {
				return Patch{}, &FieldError{Field: k, Reason: "expected str"}
			}
			p.Name = &s
		case FieldItemType:
			p.SetItemType = true
			if v == nil {
				p.ItemType = nil
				continue
			}
			s, ok := v.(string)
			if !ok {
				return Patch{}, &FieldError{Field: k, Reason: "expected str or null"}
			}
			p.ItemType = &s
		case FieldComplete:
			b, ok := v.(bool)
			if !ok {
				return Patch{}, &FieldError{Field: k, Reason: "expected bool"}
			}
			p.Complete = &b
		default:
			return Patch{}, &FieldError{Field: k, Reason: "extra keys not allowed"}
		}
	}
	return p, nil
}

// Apply writes the patch onto it and returns the result.
func (p Patch) Apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.SetItemType {
		if p.ItemType == nil {
			it.ItemType = nil
		} else {
			t := *p.ItemType
			it.ItemType = &t
		}
	}
	if p.Complete != nil {
		it.Complete = *p.Complete
	}
	return it
}

// CompleteFields is the update used by the complete/incomplete commands.
func CompleteFields(done bool) Fields {
	return Fields{FieldComplete: done}
}
