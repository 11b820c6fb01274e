package sites

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoader_Defaults(t *testing.T) {
	got, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults, got)

	// callers may not mutate the package defaults
	got[0].Name = "changed"
	assert.Equal(t, "Apple", Defaults[0].Name)
}

func TestLoader_Load(t *testing.T) {
	path := writeFile(t, `
sites:
  - name: " GitHub "
    url: https://github.com/
  - url: https://example.com/ping
  - name: GitHub
    url: https://github.com/duplicate
`)

	got, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []Site{
		{Name: "GitHub", URL: "https://github.com/"},
		{Name: "https://example.com/ping", URL: "https://example.com/ping"},
	}, got)
}

func TestLoader_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "missing url", content: "sites:\n  - name: nothing\n"},
		{name: "empty list", content: "sites: []\n"},
		{name: "invalid yaml", content: "sites: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(writeFile(t, tt.content)).Load()
			assert.Error(t, err)
		})
	}

	_, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	assert.Error(t, err)
}
