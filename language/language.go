// Package language describes how each supported language is laid out,
// compiled and run inside the sandbox.
package language

import (
	"fmt"
	"slices"
	"time"

	"github.com/codearena/judge/types"
	"github.com/google/shlex"
)

// Profile defines the sandbox parameters for one language
type Profile struct {
	ID      types.Language `yaml:"id" json:"id"`
	Name    string         `yaml:"name" json:"name"`
	Version string         `yaml:"version" json:"version"`

	// Image is the container image used for both compile and run steps
	Image string `yaml:"image" json:"-"`

	// SourceFile receives the submitted code unmodified, HarnessFile the
	// generated test runner
	SourceFile  string `yaml:"sourceFile" json:"-"`
	HarnessFile string `yaml:"harnessFile" json:"-"`

	// CompileCmd is empty for interpreted languages
	CompileCmd string `yaml:"compileCmd" json:"-"`
	RunCmd     string `yaml:"runCmd" json:"-"`

	// zero values fall back to the runner defaults
	CompileTimeout time.Duration `yaml:"compileTimeout" json:"-"`
	RunTimeout     time.Duration `yaml:"runTimeout" json:"-"`
	MemoryLimit    types.Size    `yaml:"memoryLimit" json:"-"`
}

// NeedCompile reports whether the language has a separate compile step
func (p *Profile) NeedCompile() bool {
	return p.CompileCmd != ""
}

// CompileArgs splits the compile command into argv
func (p *Profile) CompileArgs() ([]string, error) {
	if !p.NeedCompile() {
		return nil, nil
	}
	args, err := shlex.Split(p.CompileCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to parse compile command %q: %w", p.CompileCmd, err)
	}
	return args, nil
}

// RunArgs splits the run command into argv
func (p *Profile) RunArgs() ([]string, error) {
	args, err := shlex.Split(p.RunCmd)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run command %q: %w", p.RunCmd, err)
	}
	return args, nil
}

func (p *Profile) validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("language profile without id")
	case p.SourceFile == "" || p.HarnessFile == "":
		return fmt.Errorf("language %s: sourceFile and harnessFile are required", p.ID)
	case p.RunCmd == "":
		return fmt.Errorf("language %s: runCmd is required", p.ID)
	}
	if _, err := p.CompileArgs(); err != nil {
		return err
	}
	if _, err := p.RunArgs(); err != nil {
		return err
	}
	return nil
}

// Registry holds the language profiles in a stable order
type Registry struct {
	profiles map[types.Language]*Profile
	order    []types.Language
}

// NewRegistry creates a registry from the given profiles
func NewRegistry(profiles ...Profile) (*Registry, error) {
	r := &Registry{profiles: make(map[types.Language]*Profile)}
	for _, p := range profiles {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers or replaces a profile
func (r *Registry) Add(p Profile) error {
	if err := p.validate(); err != nil {
		return err
	}
	if _, ok := r.profiles[p.ID]; !ok {
		r.order = append(r.order, p.ID)
	}
	r.profiles[p.ID] = &p
	return nil
}

// Get returns the profile for the language
func (r *Registry) Get(lang types.Language) (*Profile, bool) {
	p, ok := r.profiles[lang]
	return p, ok
}

// List returns all profiles in registration order
func (r *Registry) List() []Profile {
	ret := make([]Profile, 0, len(r.order))
	for _, id := range r.order {
		ret = append(ret, *r.profiles[id])
	}
	return ret
}

// IDs returns the supported language identifiers
func (r *Registry) IDs() []types.Language {
	return slices.Clone(r.order)
}
