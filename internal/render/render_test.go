package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func TestFormatFromFlags(t *testing.T) {
	f, err := FormatFromFlags(false, false)
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = FormatFromFlags(true, false)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = FormatFromFlags(false, true)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = FormatFromFlags(true, true)
	assert.Error(t, err)
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatJSON})
	require.NoError(t, r.Render(sample{Name: "aliases", Count: 3}))
	assert.JSONEq(t, `{"name":"aliases","count":3}`, buf.String())
	assert.True(t, r.Structured())
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatYAML})
	require.NoError(t, r.Render(sample{Name: "aliases", Count: 3}))
	assert.YAMLEq(t, "name: aliases\ncount: 3\n", buf.String())
}

func TestRender_TableRejectsStructured(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, Options{Format: FormatTable})
	assert.False(t, r.Structured())
	assert.Error(t, r.Render(sample{}))
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatTable})
	require.NoError(t, r.RenderTable(
		[]string{"TABLE", "ROWS"},
		[][]string{{"heartbeats", "2,500"}, {"aliases", "1"}},
	))
	want := "TABLE       ROWS \n" +
		"----------  -----\n" +
		"heartbeats  2,500\n" +
		"aliases     1    \n"
	assert.Equal(t, want, buf.String())
}

func TestRenderTable_PorcelainAndEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{Format: FormatTable, Porcelain: true})
	require.NoError(t, r.RenderTable([]string{"A", "B"}, [][]string{{"x", "y"}}))
	assert.Equal(t, "A\tB\nx\ty\n", buf.String())

	buf.Reset()
	require.NoError(t, r.RenderTable([]string{"A"}, nil))
	assert.Empty(t, buf.String())
}

func TestCount(t *testing.T) {
	assert.Equal(t, "0", Count(0))
	assert.Equal(t, "999", Count(999))
	assert.Equal(t, "1,000", Count(1000))
	assert.Equal(t, "12,345,678", Count(12345678))
	assert.Equal(t, "event", Plural(1, "event", "events"))
	assert.Equal(t, "events", Plural(2, "event", "events"))
}
