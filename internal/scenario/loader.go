package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"petcontract/internal/apiclient"
	"petcontract/internal/schema"
)

// suiteFile is the on-disk format of a YAML suite.
type suiteFile struct {
	Scenarios []scenarioDef `yaml:"scenarios"`
}

type scenarioDef struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Tags        []string       `yaml:"tags"`
	Vars        map[string]any `yaml:"vars"`
	Steps       []stepDef      `yaml:"steps"`
}

type stepDef struct {
	Name    string            `yaml:"name"`
	Request requestDef        `yaml:"request"`
	Capture map[string]string `yaml:"capture"`
	Expect  expectDef         `yaml:"expect"`
}

type requestDef struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	Query   map[string]string `yaml:"query"`
	Headers map[string]string `yaml:"headers"`
	Body    any               `yaml:"body"`
	Upload  *uploadDef        `yaml:"upload"`
}

type uploadDef struct {
	Field    string            `yaml:"field"`
	FileName string            `yaml:"filename"`
	Content  string            `yaml:"content"`
	File     string            `yaml:"file"`
	Fields   map[string]string `yaml:"fields"`
}

type expectDef struct {
	Status       int               `yaml:"status"`
	StatusText   string            `yaml:"status_text"`
	HasHeaders   []string          `yaml:"has_headers"`
	Headers      map[string]string `yaml:"headers"`
	HasFields    []string          `yaml:"has_fields"`
	Body         map[string]any    `yaml:"body"`
	BodyEquals   any               `yaml:"body_equals"`
	BodyContains string            `yaml:"body_contains"`
	Schema       string            `yaml:"schema"`
	MaxLatency   time.Duration     `yaml:"max_latency"`
}

// Loader reads scenarios from YAML suite files.
type Loader struct {
	// Schemas resolves `expect.schema` names. Required when a suite references schemas.
	Schemas *schema.Registry
	// BaseDir resolves relative `upload.file` paths.
	BaseDir string
}

// LoadFile reads a suite file. Relative upload paths resolve against the file's directory
// unless BaseDir is set.
func (l *Loader) LoadFile(path string) ([]*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite %s: %w", path, err)
	}
	loader := *l
	if loader.BaseDir == "" {
		loader.BaseDir = filepath.Dir(path)
	}
	scenarios, err := loader.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("suite %s: %w", path, err)
	}
	return scenarios, nil
}

// Load decodes a suite and validates every scenario in it.
func (l *Loader) Load(r io.Reader) ([]*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file suiteFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("suite is empty")
		}
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("suite declares no scenarios")
	}

	scenarios := make([]*Scenario, 0, len(file.Scenarios))
	for _, def := range file.Scenarios {
		sc, err := l.build(def)
		if err != nil {
			return nil, err
		}
		if err := sc.Validate(); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func (l *Loader) build(def scenarioDef) (*Scenario, error) {
	sc := &Scenario{
		Name:        def.Name,
		Description: def.Description,
		Tags:        def.Tags,
		Vars:        def.Vars,
		Steps:       make([]Step, 0, len(def.Steps)),
	}
	for _, sd := range def.Steps {
		step := Step{
			Name: sd.Name,
			Request: Request{
				Method:  sd.Request.Method,
				Path:    sd.Request.Path,
				Query:   sd.Request.Query,
				Headers: sd.Request.Headers,
				Body:    sd.Request.Body,
			},
			Capture: sd.Capture,
		}
		if sd.Request.Upload != nil {
			up, err := l.upload(sd.Request.Upload)
			if err != nil {
				return nil, fmt.Errorf("scenario %q step %q: %w", def.Name, sd.Name, err)
			}
			step.Request.Upload = up
		}
		expect, err := l.assertions(sd.Expect)
		if err != nil {
			return nil, fmt.Errorf("scenario %q step %q: %w", def.Name, sd.Name, err)
		}
		step.Expect = expect
		sc.Steps = append(sc.Steps, step)
	}
	return sc, nil
}

func (l *Loader) upload(def *uploadDef) (*apiclient.Upload, error) {
	up := &apiclient.Upload{
		FieldName: def.Field,
		FileName:  def.FileName,
		Content:   []byte(def.Content),
		Fields:    def.Fields,
	}
	if def.File != "" {
		path := def.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(l.BaseDir, path)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload file: %w", err)
		}
		up.Content = content
		if up.FileName == "" {
			up.FileName = filepath.Base(path)
		}
	}
	return up, nil
}

// assertions converts an expect block into checks, in a fixed order: status first so a
// wrong status is reported before anything that depends on the body.
func (l *Loader) assertions(def expectDef) ([]Assertion, error) {
	var out []Assertion
	if def.Status != 0 {
		out = append(out, Status(def.Status))
	}
	if def.StatusText != "" {
		out = append(out, StatusText(def.StatusText))
	}
	for _, name := range def.HasHeaders {
		out = append(out, HasHeader(name))
	}
	for _, name := range sortedKeys(def.Headers) {
		out = append(out, HeaderContains(name, def.Headers[name]))
	}
	for _, path := range def.HasFields {
		out = append(out, BodyHasField(path))
	}
	for _, path := range sortedKeys(def.Body) {
		out = append(out, BodyField(path, def.Body[path]))
	}
	if def.BodyEquals != nil {
		out = append(out, BodyEquals(def.BodyEquals))
	}
	if def.BodyContains != "" {
		out = append(out, BodyContains(def.BodyContains))
	}
	if def.Schema != "" {
		if l.Schemas == nil {
			return nil, fmt.Errorf("schema %q referenced but no schema registry configured", def.Schema)
		}
		s, err := l.Schemas.Lookup(def.Schema)
		if err != nil {
			return nil, err
		}
		out = append(out, MatchesSchema(s))
	}
	if def.MaxLatency > 0 {
		out = append(out, LatencyBelow(def.MaxLatency))
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
