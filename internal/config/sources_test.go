package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/newsdigest/internal/collector"
)

func TestDefaultSources(t *testing.T) {
	srcs, err := LoadSources("", nil)
	require.NoError(t, err)
	require.NotEmpty(t, srcs)

	byName := map[string]collector.Source{}
	for _, s := range srcs {
		byName[s.Name] = s
	}

	ln, ok := byName["La Nación"]
	require.True(t, ok)
	assert.Equal(t, collector.KindFeed, ln.Kind)
	assert.Equal(t, "https://www.lanacion.com.ar/arcio/rss/", ln.FeedURL)
	assert.True(t, ln.FallbackToPage)

	ib, ok := byName["Infobae"]
	require.True(t, ok)
	assert.Equal(t, collector.KindPage, ib.Kind)
	assert.Contains(t, ib.Selectors, "h2 a")
	assert.Len(t, srcs, len(byName), "names are unique")
}

func TestParseSourcesSkipsInvalid(t *testing.T) {
	yml := `
- name: Good Feed
  kind: feed
  feed_url: https://example.com/rss
- name: No URL
  kind: feed
- name: ""
  kind: page
  page_url: https://example.com
- name: Weird Kind
  kind: api
  page_url: https://example.com
- name: Bad URL
  kind: page
  page_url: "not a url"
- name: Good Page
  kind: page
  page_url: https://www.perfil.com/seccion/politica
  domain: perfil.com
  placeholder: Nota de Perfil
  selectors: ["h2 a"]
- name: Good Feed
  kind: feed
  feed_url: https://example.com/other
`
	srcs, err := ParseSources([]byte(yml), nil)
	require.NoError(t, err)
	require.Len(t, srcs, 2)

	assert.Equal(t, "Good Feed", srcs[0].Name)
	assert.Equal(t, "https://example.com/rss", srcs[0].FeedURL, "first entry wins on duplicate names")
	assert.Equal(t, collector.Source{
		Name:        "Good Page",
		Kind:        collector.KindPage,
		PageURL:     "https://www.perfil.com/seccion/politica",
		Selectors:   []string{"h2 a"},
		Domain:      "perfil.com",
		Placeholder: "Nota de Perfil",
	}, srcs[1])
}

func TestParseSourcesMalformed(t *testing.T) {
	_, err := ParseSources([]byte("name: [unterminated"), nil)
	assert.Error(t, err)
}

func TestLoadSourcesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: Solo
  kind: feed
  feed_url: https://example.com/rss
`), 0o644))

	srcs, err := LoadSources(path, nil)
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "Solo", srcs[0].Name)

	_, err = LoadSources(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}
