package model

// Item is the domain model for a check list entry.
// Index records the list length at creation time and is not kept in sync
// with the item's position after reorders or clears.
type Item struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ItemType *string `json:"item_type"`
	Complete bool    `json:"complete"`
	Index    int     `json:"index"`
}

// Clone returns a deep copy so callers never share ItemType with the store.
func (it Item) Clone() Item {
	if it.ItemType != nil {
		t := *it.ItemType
		it.ItemType = &t
	}
	return it
}

// Type returns the item type or "" when unset.
func (it Item) Type() string {
	if it.ItemType == nil {
		return ""
	}
	return *it.ItemType
}

// CloneItems deep-copies a list, never returning nil.
func CloneItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		out = append(out, it.Clone())
	}
	return out
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string { return &s }
