package printer

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	m.Run()
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		var buf bytes.Buffer
		err := Error(&buf, "Invalid schema", "models: required", nil)
		require.Error(t, err)
		assert.Equal(t, "Invalid schema", err.Error())
		assert.Equal(t, "Invalid schema\n\nmodels: required\n", buf.String())
	})

	t.Run("single suggestion", func(t *testing.T) {
		var buf bytes.Buffer
		_ = Error(&buf, "Unknown model", "", []string{"Run arbor validate"})
		assert.Equal(t, "Unknown model\n\n\nRun arbor validate\n", buf.String())
	})

	t.Run("numbers multiple suggestions", func(t *testing.T) {
		var buf bytes.Buffer
		_ = Error(&buf, "Unknown model", "Book2", []string{"First", "Second"})
		assert.Contains(t, buf.String(), "Either:\n  1. First\n  2. Second\n")
	})
}

func TestPrefixes(t *testing.T) {
	var buf bytes.Buffer
	Success(&buf, "2 models\n")
	Success(&buf, "✓ done\n")
	Warning(&buf, "no references\n")
	Step(&buf, "Book\n")
	Info(&buf, "%d\n", 3)

	assert.Equal(t, "✓ 2 models\n✓ done\n⚠️  no references\n→ Book\n3\n", buf.String())
}
