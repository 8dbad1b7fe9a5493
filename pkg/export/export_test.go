package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRendersInHeaderOrder(t *testing.T) {
	data := Dataset{
		Headers: []string{"Student ID", "Award"},
		Rows: []map[string]string{
			{"Award": "First", "Student ID": "S1"},
			{"Student ID": "S2"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "Student ID,Award\nS1,First\nS2,\n", string(out))
}

func TestCSVExporterNeutralisesFormulas(t *testing.T) {
	data := Dataset{
		Headers: []string{"Note", "Delta"},
		Rows:    []map[string]string{{"Note": "=HYPERLINK(\"x\")", "Delta": "-2.5"}},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], `"'=HYPERLINK`))
	assert.True(t, strings.HasSuffix(lines[1], ",-2.5"))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterPaginates(t *testing.T) {
	data := Dataset{Headers: []string{"Student ID", "Override"}}
	for i := 0; i < 120; i++ {
		data.Rows = append(data.Rows, map[string]string{"Student ID": "S", "Override": strings.Repeat("long note ", 30)})
	}
	out, err := NewPDFExporter().Render(data, "Award report 2024/2025")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
