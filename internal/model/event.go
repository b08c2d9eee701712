package model

import "encoding/json"

// Action names the mutation an Event announces.
type Action string

const (
	ActionAdd            Action = "add"
	ActionUpdate         Action = "update"
	ActionClearCompleted Action = "clear_completed"
	ActionListItems      Action = "list_items"
	ActionUpdateList     Action = "update_list"
	ActionReorder        Action = "reorder"
)

// Event is published after every store mutation. Exactly one of Item or
// Items is set depending on the action.
type Event struct {
	Action Action `json:"action"`
	Item   *Item  `json:"item,omitempty"`
	Items  []Item `json:"items,omitempty"`
}

// MarshalJSON writes "item" for single-item actions and "items" for list
// actions. An empty list is written as [], never omitted.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Item != nil {
		return json.Marshal(struct {
			Action Action `json:"action"`
			Item   *Item  `json:"item"`
		}{e.Action, e.Item})
	}
	items := e.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(struct {
		Action Action `json:"action"`
		Items  []Item `json:"items"`
	}{e.Action, items})
}
