package ui

import (
	"fmt"

	"github.com/idilsaglam/checklist/internal/model"
)

const maxNameWidth = 80

// Stats counts completed and pending items.
func Stats(items []model.Item) (done, pending int) {
	for _, it := range items {
		if it.Complete {
			done++
		} else {
			pending++
		}
	}
	return
}

// ListLines renders the header, progress bar and items for Panel.
func ListLines(items []model.Item, group bool) []string {
	t := Current()
	d, p := Stats(items)
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d",
		C(t.Title, "Check list"),
		C(t.Success, t.SymDone), d,
		C(t.Pending, t.SymUnchecked), p,
		C(t.Accent, "Total"), len(items),
	)

	lines := []string{header, C(t.Muted, ProgressBar(d, d+p, 28)), ""}
	if group {
		lines = append(lines, groupLines(items)...)
	} else {
		lines = append(lines, flatLines(items)...)
	}
	return lines
}

func flatLines(items []model.Item) []string {
	t := Current()
	if len(items) == 0 {
		return []string{C(t.Muted, "no items")}
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		idx := fmt.Sprintf("%2d.", i+1)
		box, color := t.BoxUnchecked, t.Muted
		if it.Complete {
			box, color = t.BoxChecked, t.Success
		}
		name := []rune(it.Name)
		if len(name) > maxNameWidth {
			name = append(name[:maxNameWidth-3], []rune("...")...)
		}
		line := fmt.Sprintf("%s %s %s", C(dim, idx), C(color, box), string(name))
		if typ := it.Type(); typ != "" {
			line += " " + C(t.Muted, "["+typ+"]")
		}
		out = append(out, line)
	}
	return out
}

func groupLines(items []model.Item) []string {
	t := Current()
	var pend, done []model.Item
	for _, it := range items {
		if it.Complete {
			done = append(done, it)
		} else {
			pend = append(pend, it)
		}
	}
	var lines []string
	lines = append(lines, C(t.Accent, "Pending"))
	if len(pend) == 0 {
		lines = append(lines, C(t.Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, C(t.Accent, "Done"))
	if len(done) == 0 {
		lines = append(lines, C(t.Muted, "(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
