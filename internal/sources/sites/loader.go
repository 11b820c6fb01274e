// Package sites loads the list of named URLs a group can be latency-tested against.
package sites

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Site is a named test target.
type Site struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// File is the on-disk layout:
//
//	sites:
//	  - name: GitHub
//	    url: https://github.com/
type File struct {
	Sites []Site `yaml:"sites"`
}

// Defaults is used when no sites file is configured.
var Defaults = []Site{
	{Name: "Apple", URL: "http://www.apple.com/library/test/success.html"},
	{Name: "GitHub", URL: "https://github.com/"},
	{Name: "Google", URL: "http://www.gstatic.com/generate_204"},
	{Name: "Youtube", URL: "https://www.youtube.com/"},
}

// Loader reads a sites file.
type Loader struct {
	filePath string
}

// NewLoader creates a loader for filePath. An empty path yields Defaults.
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and validates the sites file.
func (l *Loader) Load() ([]Site, error) {
	if l.filePath == "" {
		return append([]Site(nil), Defaults...), nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse sites yaml: %w", err)
	}

	out := make([]Site, 0, len(f.Sites))
	seen := make(map[string]bool, len(f.Sites))
	for i, s := range f.Sites {
		s.Name = strings.TrimSpace(s.Name)
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			return nil, fmt.Errorf("site %d (%q): url is required", i, s.Name)
		}
		if s.Name == "" {
			s.Name = s.URL
		}
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sites file %s defines no sites", l.filePath)
	}
	return out, nil
}
