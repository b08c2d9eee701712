// Package tui is the interactive check list. It edits the shared store
// directly and redraws on every store event, so changes made by other
// clients show up while it runs.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/idilsaglam/checklist/internal/checklist"
	"github.com/idilsaglam/checklist/internal/model"
	"github.com/idilsaglam/checklist/internal/ui"
)

// listItem adapts model.Item to bubbles/list.Item.
type listItem struct {
	item model.Item
}

func (i listItem) Title() string       { return i.item.Name }
func (i listItem) Description() string { return i.item.Type() }
func (i listItem) FilterValue() string { return i.item.Name }

type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	theme := ui.Current()
	box := mutedStyle.Render(theme.BoxUnchecked)
	text := it.item.Name
	if it.item.Complete {
		box = successStyle.Render(theme.BoxChecked)
		text = doneStyle.Render(text)
	}
	line := box + " " + text
	if typ := it.item.Type(); typ != "" {
		line += " " + mutedStyle.Render("["+typ+"]")
	}
	prefix := "  "
	if index == m.Index() {
		prefix = selectedStyle.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type mode int

const (
	browsing mode = iota
	adding
	editing
)

// storeEventMsg carries a store event into the update loop.
type storeEventMsg model.Event

// eventsClosedMsg reports that the subscription ended.
type eventsClosedMsg struct{}

type keyMap struct {
	toggle, add, edit, clear, completeAll, incompleteAll, moveUp, moveDown key.Binding
}

var keys = keyMap{
	toggle:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
	add:           key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	edit:          key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
	clear:         key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear done")),
	completeAll:   key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "all done")),
	incompleteAll: key.NewBinding(key.WithKeys("U"), key.WithHelp("U", "all pending")),
	moveUp:        key.NewBinding(key.WithKeys("K"), key.WithHelp("K", "move up")),
	moveDown:      key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "move down")),
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{k.toggle, k.add, k.edit, k.clear, k.completeAll, k.incompleteAll, k.moveUp, k.moveDown}
}

type Model struct {
	ctx    context.Context
	store  *checklist.Store
	events <-chan model.Event
	logger *zap.Logger

	list   list.Model
	ti     textinput.Model
	mode   mode
	editID string
	status string
	width  int
	height int
}

// New builds the model. events may be nil when no live refresh is wanted.
func New(ctx context.Context, store *checklist.Store, events <-chan model.Event, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := list.New(nil, itemDelegate{}, 80, 20)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	l.Styles.HelpStyle = helpStyle
	l.Styles.PaginationStyle = helpStyle
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("item", "items")
	l.AdditionalShortHelpKeys = func() []key.Binding { return keys.bindings()[:4] }
	l.AdditionalFullHelpKeys = keys.bindings

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	m := Model{
		ctx:    ctx,
		store:  store,
		events: events,
		logger: logger,
		list:   l,
		ti:     ti,
		width:  80,
		height: 24,
	}
	m.refresh()
	return m
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, store *checklist.Store, logger *zap.Logger) error {
	events, cancel := store.Subscribe(0)
	defer cancel()

	p := tea.NewProgram(New(ctx, store, events, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// cancelled from outside, not a failure
		return nil
	}
	return err
}

func waitForEvent(events <-chan model.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return storeEventMsg(ev)
	}
}

func (m Model) Init() tea.Cmd { return waitForEvent(m.events) }

// refresh reloads items from the store, keeping the cursor on the same item.
func (m *Model) refresh() {
	selected := m.selectedID()
	items := m.store.Items()
	li := make([]list.Item, 0, len(items))
	cursor := 0
	for i, it := range items {
		li = append(li, listItem{item: it})
		if it.ID == selected {
			cursor = i
		}
	}
	m.list.SetItems(li)
	if m.list.FilterState() == list.Unfiltered && len(li) > 0 {
		m.list.Select(cursor)
	}
	m.list.Title = m.header(items)
}

func (m Model) header(items []model.Item) string {
	done, pending := ui.Stats(items)
	theme := ui.Current()
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		"Check list",
		successStyle.Render(theme.SymDone), done,
		pendingStyle.Render(theme.SymUnchecked), pending,
		accentStyle.Render("Total"), len(items),
	)
}

func (m Model) selected() (model.Item, bool) {
	li, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return model.Item{}, false
	}
	return li.item, true
}

func (m Model) selectedID() string {
	it, _ := m.selected()
	return it.ID
}

// Items returns the rows currently shown, in display order.
func (m Model) Items() []model.Item {
	out := make([]model.Item, 0, len(m.list.Items()))
	for _, it := range m.list.Items() {
		if li, ok := it.(listItem); ok {
			out = append(out, li.item)
		}
	}
	return out
}

// Status is the last message shown under the list.
func (m Model) Status() string { return m.status }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case storeEventMsg:
		m.refresh()
		return m, waitForEvent(m.events)
	case eventsClosedMsg:
		m.events = nil
		return m, nil
	}

	if m.mode != browsing {
		return m.updateInput(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok || m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	m.status = ""
	switch {
	case key.Matches(km, keys.toggle):
		if it, ok := m.selected(); ok {
			m.apply(m.store.Update(m.ctx, it.ID, model.CompleteFields(!it.Complete)))
		}
		return m, nil
	case key.Matches(km, keys.add):
		m.startInput(adding, "", "New item name...")
		return m, textinput.Blink
	case key.Matches(km, keys.edit):
		if it, ok := m.selected(); ok {
			m.editID = it.ID
			m.startInput(editing, it.Name, "Item name...")
			return m, textinput.Blink
		}
		return m, nil
	case key.Matches(km, keys.clear):
		before := len(m.store.Items())
		kept := m.store.ClearCompleted(m.ctx)
		m.status = fmt.Sprintf("cleared %d completed", before-len(kept))
		m.refresh()
		return m, nil
	case key.Matches(km, keys.completeAll):
		m.applyAll(true)
		return m, nil
	case key.Matches(km, keys.incompleteAll):
		m.applyAll(false)
		return m, nil
	case key.Matches(km, keys.moveUp):
		m.move(-1)
		return m, nil
	case key.Matches(km, keys.moveDown):
		m.move(1)
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) startInput(md mode, value, placeholder string) {
	m.mode = md
	m.status = ""
	m.ti.SetValue(value)
	m.ti.CursorEnd()
	m.ti.Placeholder = placeholder
	m.ti.Focus()
	m.resize()
}

func (m *Model) stopInput() {
	m.mode = browsing
	m.editID = ""
	m.ti.SetValue("")
	m.ti.Blur()
	m.resize()
}

func (m Model) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.Type {
		case tea.KeyEsc:
			m.stopInput()
			return m, nil
		case tea.KeyEnter:
			name := strings.TrimSpace(m.ti.Value())
			if name == "" {
				m.status = "Name cannot be empty"
				return m, nil
			}
			if m.mode == adding {
				it := m.store.Add(m.ctx, name, nil)
				m.stopInput()
				m.refresh()
				m.selectID(it.ID)
				return m, nil
			}
			id := m.editID
			m.stopInput()
			m.apply(m.store.Update(m.ctx, id, model.Fields{model.FieldName: name}))
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.ti, cmd = m.ti.Update(msg)
	return m, cmd
}

func (m *Model) apply(_ model.Item, err error) {
	if err != nil {
		m.logger.Info("item update rejected", zap.Error(err))
		m.status = err.Error()
	}
	m.refresh()
}

func (m *Model) applyAll(done bool) {
	if _, err := m.store.UpdateAll(m.ctx, model.CompleteFields(done)); err != nil {
		m.status = err.Error()
	}
	m.refresh()
}

// move swaps the selected item with its neighbour and reorders the store.
func (m *Model) move(delta int) {
	if m.list.FilterState() != list.Unfiltered {
		m.status = "clear the filter to move items"
		return
	}
	items := m.store.Items()
	i := m.list.Index()
	j := i + delta
	if i < 0 || i >= len(items) || j < 0 || j >= len(items) {
		return
	}
	items[i], items[j] = items[j], items[i]
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	if err := m.store.Reorder(m.ctx, ids); err != nil {
		m.status = err.Error()
		m.refresh()
		return
	}
	m.refresh()
	m.list.Select(j)
}

func (m *Model) selectID(id string) {
	for i, it := range m.list.Items() {
		if li, ok := it.(listItem); ok && li.item.ID == id {
			m.list.Select(i)
			return
		}
	}
}

func (m *Model) resize() {
	h := m.height - 4
	if m.mode != browsing {
		h -= 3
	}
	if h < 1 {
		h = 1
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) View() string {
	content := m.list.View()
	if m.mode != browsing {
		title := "Add item"
		if m.mode == editing {
			title = "Rename item"
		}
		content += "\n" + panelStyle.Render(title+"\n"+m.ti.View())
	}
	if m.status != "" {
		content += "\n" + errorStyle.Render(m.status)
	}
	return panelStyle.Render(content)
}
