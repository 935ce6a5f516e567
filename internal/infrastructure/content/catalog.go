// Package content loads lesson templates from YAML.
package content

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/lingoleap/lingoleap-hub/internal/domain/lesson"
	"github.com/lingoleap/lingoleap-hub/internal/domain/shared"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

type document struct {
	Languages map[string][]lesson.Template `yaml:"languages"`
}

// Catalog is an immutable lesson.Catalog.
type Catalog struct {
	lessons map[shared.LanguageCode][]lesson.Template
	index   map[shared.LanguageCode]map[int]int
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a catalog from r.
func Read(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Lesson order within a
// language is preserved.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{
		lessons: make(map[shared.LanguageCode][]lesson.Template, len(doc.Languages)),
		index:   make(map[shared.LanguageCode]map[int]int, len(doc.Languages)),
	}
	for raw, templates := range doc.Languages {
		lang, err := shared.NewLanguageCode(raw)
		if err != nil {
			return nil, fmt.Errorf("catalog language %q: %w", raw, err)
		}
		if _, dup := c.lessons[lang]; dup {
			return nil, fmt.Errorf("catalog language %q listed twice", lang)
		}

		idx := make(map[int]int, len(templates))
		for i, t := range templates {
			if err := validate(t); err != nil {
				return nil, fmt.Errorf("catalog %s lesson %d: %w", lang, t.ID, err)
			}
			if _, dup := idx[t.ID]; dup {
				return nil, fmt.Errorf("catalog %s: duplicate lesson id %d", lang, t.ID)
			}
			idx[t.ID] = i
		}
		c.lessons[lang] = templates
		c.index[lang] = idx
	}
	return c, nil
}

func validate(t lesson.Template) error {
	if t.ID <= 0 {
		return fmt.Errorf("id must be positive")
	}
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if !t.Level.IsValid() {
		return fmt.Errorf("unknown level %q", t.Level)
	}
	seen := make(map[string]bool, len(t.Activities))
	for _, a := range t.Activities {
		if a.Title == "" {
			return fmt.Errorf("activity title is required")
		}
		if seen[a.Title] {
			return fmt.Errorf("duplicate activity %q", a.Title)
		}
		seen[a.Title] = true
	}
	return nil
}

// Lessons implements lesson.Catalog. The returned slice is a copy.
func (c *Catalog) Lessons(lang shared.LanguageCode) []lesson.Template {
	return slices.Clone(c.lessons[lang])
}

// Lesson implements lesson.Catalog.
func (c *Catalog) Lesson(lang shared.LanguageCode, id int) (lesson.Template, bool) {
	i, ok := c.index[lang][id]
	if !ok {
		return lesson.Template{}, false
	}
	return c.lessons[lang][i], true
}

// Languages returns the languages that have lessons, sorted.
func (c *Catalog) Languages() []shared.LanguageCode {
	out := make([]shared.LanguageCode, 0, len(c.lessons))
	for l := range c.lessons {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var _ lesson.Catalog = (*Catalog)(nil)
