package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/checklist/internal/model"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░   0%", ProgressBar(0, 0, 5))
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(1, 2, 10))
	assert.Equal(t, "██████████ 100%", ProgressBar(3, 3, 10))
}

func TestPanelAlignsRows(t *testing.T) {
	SetColorForcing(false, true)
	SetTheme("mono")
	t.Cleanup(func() {
		SetColorForcing(false, false)
		SetTheme("classic")
	})

	var buf bytes.Buffer
	Panel(&buf, []string{"short", "a longer line", "☑ wide"})
	rows := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, rows, 5)
	assert.Equal(t, "+---------------+", rows[0])
	assert.Equal(t, "| short         |", rows[1])
	assert.Equal(t, "| ☑ wide        |", rows[3])
}

func TestListLines(t *testing.T) {
	SetColorForcing(false, true)
	SetTheme("mono")
	t.Cleanup(func() {
		SetColorForcing(false, false)
		SetTheme("classic")
	})

	items := []model.Item{
		{ID: "a", Name: "milk", ItemType: model.StringPtr("dairy")},
		{ID: "b", Name: "bread", Complete: true},
	}

	flat := ListLines(items, false)
	assert.Equal(t, "Check list  x 1  - 1  Total 2", flat[0])
	assert.Equal(t, " 1. [ ] milk [dairy]", flat[3])
	assert.Equal(t, " 2. [x] bread", flat[4])

	grouped := ListLines(items, true)
	assert.Contains(t, grouped, "Pending")
	assert.Contains(t, grouped, "Done")
	assert.Contains(t, grouped, " 1. [x] bread")

	empty := ListLines(nil, false)
	assert.Equal(t, "no items", empty[len(empty)-1])
}

func TestOKAndFail(t *testing.T) {
	SetColorForcing(false, true)
	t.Cleanup(func() { SetColorForcing(false, false) })

	var buf bytes.Buffer
	OK(&buf, "added")
	Fail(&buf, "nope")
	assert.Equal(t, "✔ added\n✖ nope\n", buf.String())
}
