// Package generator produces suggested tasks for a day from a YAML catalog
// of templates. It stands in for a model-backed generator: output is
// deterministic per day so repeated runs rotate through the catalog.
package generator

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tableflip.dev/daylog/pkg/task"
	"tableflip.dev/daylog/pkg/timeutil"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is the root of a template file.
type Catalog struct {
	Version   int                          `yaml:"version"`
	Templates map[task.Category][]Template `yaml:"templates"`
}

// Template describes one suggestion.
type Template struct {
	Title    string     `yaml:"title"`
	Subtitle string     `yaml:"subtitle,omitempty"`
	At       string     `yaml:"at,omitempty"` // HH:MM, local time
	Items    []DietItem `yaml:"items,omitempty"`
	Sets     []SetItem  `yaml:"sets,omitempty"`
}

type DietItem struct {
	Name     string `yaml:"name"`
	Calories int    `yaml:"calories"`
	Quantity string `yaml:"quantity,omitempty"`
}

type SetItem struct {
	Name    string  `yaml:"name"`
	Reps    int     `yaml:"reps,omitempty"`
	Weight  float64 `yaml:"weight,omitempty"`
	Minutes int     `yaml:"minutes,omitempty"`
}

// Generator picks templates from a Catalog.
type Generator struct {
	catalog *Catalog

	mu sync.Mutex
	// calls advances the rotation so a replace run does not repeat the
	// batch it replaces.
	calls int
}

// Default returns a Generator over the built-in catalog.
func Default() *Generator {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("generator: built-in catalog: %v", err))
	}
	return New(c)
}

// New returns a Generator over c.
func New(c *Catalog) *Generator {
	return &Generator{catalog: c}
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	for cat, templates := range c.Templates {
		if _, err := task.ParseCategory(string(cat)); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		for i, t := range templates {
			if strings.TrimSpace(t.Title) == "" {
				return fmt.Errorf("catalog: %s[%d]: title is required", cat, i)
			}
			if _, _, err := parseClock(t.At); err != nil {
				return fmt.Errorf("catalog: %s[%d]: %w", cat, i, err)
			}
		}
	}
	return nil
}

// Generate returns one task per requested category that has templates.
func (g *Generator) Generate(ctx context.Context, day timeutil.Day, categories []task.Category) ([]task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	offset := timeutil.Date(1970, time.January, 1).DaysUntil(day) + g.calls
	g.calls++
	g.mu.Unlock()

	out := make([]task.Task, 0, len(categories))
	for _, cat := range categories {
		templates := g.catalog.Templates[cat]
		if len(templates) == 0 {
			continue
		}
		i := (offset%len(templates) + len(templates)) % len(templates)
		out = append(out, instantiate(templates[i], cat, day))
	}
	return out, nil
}

func instantiate(tpl Template, cat task.Category, day timeutil.Day) task.Task {
	h, m, _ := parseClock(tpl.At)
	t := task.New(tpl.Title, day.At(h, m))
	t.Subtitle = tpl.Subtitle
	t.Category = cat
	t.IsAIGenerated = true
	for _, item := range tpl.Items {
		t.DietItems = append(t.DietItems, task.DietItem{Name: item.Name, Calories: item.Calories, Quantity: item.Quantity})
	}
	for _, set := range tpl.Sets {
		t.ExerciseSets = append(t.ExerciseSets, task.ExerciseSet{
			Name:     set.Name,
			Reps:     set.Reps,
			Weight:   set.Weight,
			Duration: time.Duration(set.Minutes) * time.Minute,
		})
	}
	return t
}

// parseClock reads HH:MM. Empty means 09:00.
func parseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 9, 0, nil
	}
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("time %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("time %q: bad minute", s)
	}
	return h, m, nil
}
