// Package harvestconfig loads a file of saved searches to run in one
// harvest.
package harvestconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lisanmuaddib/twitanalysis/pkg/interfaces/twitter"
	"gopkg.in/yaml.v3"
)

// Query is one saved search
type Query struct {
	// Terms is the search string
	Terms string `yaml:"terms"`

	// Geofilter is an optional "lat,long,radiuskm" restriction
	Geofilter string `yaml:"geofilter,omitempty"`

	// Pages overrides the file-level page limit
	Pages int `yaml:"pages,omitempty"`

	// PageSize overrides the file-level page size
	PageSize int `yaml:"page_size,omitempty"`

	// Cursor resumes an earlier search
	Cursor string `yaml:"cursor,omitempty"`
}

// File is the top level of a queries file
type File struct {
	Pages    int     `yaml:"pages,omitempty"`
	PageSize int     `yaml:"page_size,omitempty"`
	Queries  []Query `yaml:"queries"`
}

// Load reads and validates a queries file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queries file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a queries document. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing queries file: %w", err)
	}

	if len(f.Queries) == 0 {
		return nil, errors.New("queries file lists no queries")
	}
	for i, q := range f.Queries {
		if strings.TrimSpace(q.Terms) == "" && q.Cursor == "" {
			return nil, fmt.Errorf("query %d: terms are required", i+1)
		}
		if q.Geofilter != "" {
			if _, err := twitter.ParseGeofilter(q.Geofilter); err != nil {
				return nil, fmt.Errorf("query %d: %w", i+1, err)
			}
		}
	}
	return &f, nil
}

// SearchParams expands the file into one parameter set per query, applying
// the file-level limits where a query sets none
func (f *File) SearchParams() []twitter.SearchParams {
	params := make([]twitter.SearchParams, 0, len(f.Queries))
	for _, q := range f.Queries {
		p := twitter.SearchParams{
			Terms:     q.Terms,
			Geofilter: q.Geofilter,
			PageSize:  q.PageSize,
			MaxPages:  q.Pages,
			Cursor:    q.Cursor,
		}
		if p.PageSize == 0 {
			p.PageSize = f.PageSize
		}
		if p.MaxPages == 0 {
			p.MaxPages = f.Pages
		}
		params = append(params, p)
	}
	return params
}
