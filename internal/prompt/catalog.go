// Package prompt holds the shaping functions and wraps task context into the
// system message sent to the completion gateway.
package prompt

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ShaperName identifies one shaping function in the catalog.
type ShaperName string

// The closed set of shaping functions.
const (
	ConvertUserInputToGoal     ShaperName = "convert_user_input_to_goal"
	PrintProjectScope          ShaperName = "print_project_scope"
	PrintSiteURLs              ShaperName = "print_site_urls"
	PrintBackendWebserverCode  ShaperName = "print_backend_webserver_code"
	PrintImprovedWebserverCode ShaperName = "print_improved_webserver_code"
	PrintFixedCode             ShaperName = "print_fixed_code"
	PrintRestAPIEndpoints      ShaperName = "print_rest_api_endpoints"
)

//go:embed shapers.yaml
var builtinCatalog []byte

// Shaper renders the fixed instruction describing a request's output format.
type Shaper interface {
	Name() ShaperName
	// Operation is a human-readable label used in status lines.
	Operation() string
	Render(input string) string
}

type catalogEntry struct {
	Operation   string `yaml:"operation"`
	Instruction string `yaml:"instruction"`
}

type catalogFile struct {
	Shapers map[ShaperName]catalogEntry `yaml:"shapers"`
}

// Catalog maps shaper names to their instructions.
type Catalog struct {
	shapers map[ShaperName]*namedShaper
}

type namedShaper struct {
	name        ShaperName
	operation   string
	instruction string
}

func (s *namedShaper) Name() ShaperName  { return s.name }
func (s *namedShaper) Operation() string { return s.operation }

// Render ignores its input: the instruction is fixed per shaper.
func (s *namedShaper) Render(string) string {
	return fmt.Sprintf("%s:\n%s", s.name, s.instruction)
}

// ParseCatalog reads a YAML catalog. Every name in the closed set must be present.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse shaper catalog: %w", err)
	}
	c := &Catalog{shapers: make(map[ShaperName]*namedShaper, len(f.Shapers))}
	for name, e := range f.Shapers {
		instr := strings.TrimSpace(e.Instruction)
		if instr == "" {
			return nil, fmt.Errorf("shaper %q has no instruction", name)
		}
		op := e.Operation
		if op == "" {
			op = string(name)
		}
		c.shapers[name] = &namedShaper{name: name, operation: op, instruction: instr}
	}
	for _, name := range Names() {
		if _, ok := c.shapers[name]; !ok {
			return nil, fmt.Errorf("shaper catalog is missing %q", name)
		}
	}
	return c, nil
}

// Lookup returns the shaper with the given name.
func (c *Catalog) Lookup(name ShaperName) (Shaper, bool) {
	s, ok := c.shapers[name]
	if !ok {
		return nil, false
	}
	return s, true
}

// MustLookup is Lookup for names from the closed set.
func (c *Catalog) MustLookup(name ShaperName) Shaper {
	s, ok := c.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("prompt: unknown shaper %q", name))
	}
	return s
}

// Names returns the closed set of shaper names, sorted.
func Names() []ShaperName {
	names := []ShaperName{
		ConvertUserInputToGoal,
		PrintProjectScope,
		PrintSiteURLs,
		PrintBackendWebserverCode,
		PrintImprovedWebserverCode,
		PrintFixedCode,
		PrintRestAPIEndpoints,
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(builtinCatalog)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Get returns a shaper from the built-in catalog.
func Get(name ShaperName) Shaper {
	return Default().MustLookup(name)
}
