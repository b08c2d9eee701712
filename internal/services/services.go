// Package services exposes the check list's named commands. They look items
// up by name and never surface a missing item to the caller: the miss is
// logged and the call becomes a no-op.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/idilsaglam/checklist/internal/checklist"
	"github.com/idilsaglam/checklist/internal/model"
)

// Command names as registered with callers.
const (
	AddItem        = "add_item"
	CompleteItem   = "complete_item"
	IncompleteItem = "incomplete_item"
	CompleteAll    = "complete_all"
	IncompleteAll  = "incomplete_all"
	ClearComplete  = "clear_complete"
	ListItems      = "list_items"
)

// ErrUnknownService is returned by Call for an unregistered name.
var ErrUnknownService = errors.New("unknown service")

// Call carries the optional data of a service call.
type Call struct {
	Name     *string `json:"name"`
	ItemType *string `json:"item_type"`
}

type Service struct {
	store  *checklist.Store
	logger *zap.Logger
}

func New(store *checklist.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Call dispatches a command by name.
func (s *Service) Call(ctx context.Context, name string, data Call) error {
	switch name {
	case AddItem:
		if data.Name != nil {
			s.Add(ctx, *data.Name, data.ItemType)
		}
	case CompleteItem:
		if data.Name != nil {
			s.Complete(ctx, *data.Name)
		}
	case IncompleteItem:
		if data.Name != nil {
			s.Incomplete(ctx, *data.Name)
		}
	case CompleteAll:
		s.CompleteAll(ctx)
	case IncompleteAll:
		s.IncompleteAll(ctx)
	case ClearComplete:
		s.ClearCompleted(ctx)
	case ListItems:
		s.List(ctx)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return nil
}

func (s *Service) Add(ctx context.Context, name string, itemType *string) model.Item {
	return s.store.Add(ctx, name, itemType)
}

// Complete marks the first item called name as done. It reports false when
// no such item exists.
func (s *Service) Complete(ctx context.Context, name string) (model.Item, bool) {
	return s.setComplete(ctx, name, true)
}

// Incomplete is the inverse of Complete.
func (s *Service) Incomplete(ctx context.Context, name string) (model.Item, bool) {
	return s.setComplete(ctx, name, false)
}

func (s *Service) CompleteAll(ctx context.Context) []model.Item {
	return s.updateAll(ctx, true)
}

func (s *Service) IncompleteAll(ctx context.Context) []model.Item {
	return s.updateAll(ctx, false)
}

// ClearCompleted drops completed items and reports how many were removed.
func (s *Service) ClearCompleted(ctx context.Context) int {
	before := len(s.store.Items())
	return before - len(s.store.ClearCompleted(ctx))
}

func (s *Service) List(ctx context.Context) []model.Item {
	return s.store.ListItems(ctx)
}

func (s *Service) setComplete(ctx context.Context, name string, done bool) (model.Item, bool) {
	verb := "Marking"
	if !done {
		verb = "Restoring"
	}
	it, ok := s.store.FindByName(name)
	if !ok {
		s.logger.Error(verb+" of item failed: item cannot be found", zap.String("name", name))
		return model.Item{}, false
	}
	updated, err := s.store.Update(ctx, it.ID, model.CompleteFields(done))
	if err != nil {
		// the item can vanish between lookup and update
		s.logger.Error(verb+" of item failed", zap.String("name", name), zap.Error(err))
		return model.Item{}, false
	}
	return updated, true
}

func (s *Service) updateAll(ctx context.Context, done bool) []model.Item {
	items, err := s.store.UpdateAll(ctx, model.CompleteFields(done))
	if err != nil {
		// CompleteFields always decodes
		s.logger.Error("update of all items failed", zap.Error(err))
		return s.store.Items()
	}
	return items
}
