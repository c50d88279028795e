package orchestrator

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/cns-iu/dvl-llm/sandbox"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPromptsYAML []byte

var ErrIncompletePrompts = errors.New("prompt set needs system, initial and refine templates")

// InitialVars fills the first user instruction of an iteration-1 run.
type InitialVars struct {
	Environment string
	Library     string
	OutputName  string
	OutputPath  string
	Task        string
}

// RefineVars fills the user message appended by Refine.
type RefineVars struct {
	Instruction string
	OutputName  string
	OutputPath  string
}

// RetryVars fills a correction prompt after a failed attempt.
type RetryVars struct {
	Stdout     string
	Stderr     string
	Message    string
	OutputName string
	OutputPath string
	Attempt    int
}

type promptFile struct {
	System      string            `yaml:"system"`
	DefaultTask string            `yaml:"default_task"`
	Initial     string            `yaml:"initial"`
	Refine      string            `yaml:"refine"`
	Retry       map[string]string `yaml:"retry"`
}

// Prompts is the parsed prompt table. The retry map is keyed by error kind
// name (EXECUTION_ERROR, LOGICAL_ERROR, ...); a kind without an entry is
// not repairable.
type Prompts struct {
	System      string
	DefaultTask string

	initial *template.Template
	refine  *template.Template
	retry   map[string]*template.Template
}

// DefaultPrompts returns the table compiled into the binary.
func DefaultPrompts() *Prompts {
	p, err := ParsePrompts(defaultPromptsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts.yaml: %v", err))
	}
	return p
}

func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	p, err := ParsePrompts(data)
	if err != nil {
		return nil, fmt.Errorf("prompts %s: %w", path, err)
	}
	return p, nil
}

func ParsePrompts(data []byte) (*Prompts, error) {
	var f promptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}
	if strings.TrimSpace(f.System) == "" || f.Initial == "" || f.Refine == "" {
		return nil, ErrIncompletePrompts
	}

	p := &Prompts{
		System:      strings.TrimSpace(f.System),
		DefaultTask: strings.TrimSpace(f.DefaultTask),
		retry:       make(map[string]*template.Template, len(f.Retry)),
	}
	var err error
	if p.initial, err = template.New("initial").Option("missingkey=error").Parse(f.Initial); err != nil {
		return nil, fmt.Errorf("initial template: %w", err)
	}
	if p.refine, err = template.New("refine").Option("missingkey=error").Parse(f.Refine); err != nil {
		return nil, fmt.Errorf("refine template: %w", err)
	}
	for kind, text := range f.Retry {
		t, err := template.New(kind).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("retry template %s: %w", kind, err)
		}
		p.retry[strings.ToUpper(kind)] = t
	}
	return p, nil
}

// HasRetry reports whether kind has a correction template.
func (p *Prompts) HasRetry(kind sandbox.ErrorKind) bool {
	_, ok := p.retry[kind.String()]
	return ok
}

func (p *Prompts) Initial(v InitialVars) (string, error) {
	return render(p.initial, v)
}

func (p *Prompts) Refine(v RefineVars) (string, error) {
	return render(p.refine, v)
}

func (p *Prompts) Retry(kind sandbox.ErrorKind, v RetryVars) (string, error) {
	t, ok := p.retry[kind.String()]
	if !ok {
		return "", fmt.Errorf("no retry template for %s", kind)
	}
	return render(t, v)
}

func render(t *template.Template, data interface{}) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}
