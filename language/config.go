package language

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// File is the layout of languages.yaml
type File struct {
	Languages []Profile `yaml:"languages"`
}

// Load reads profile overrides from a yaml file on top of the built-in
// profiles. Fields left empty in the file keep the built-in value.
func Load(p string) (*Registry, error) {
	d, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	return Parse(d)
}

// Parse parses yaml profile overrides on top of the built-in profiles
func Parse(d []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(d, &f); err != nil {
		return nil, fmt.Errorf("failed to parse language config: %w", err)
	}
	r := Default()
	for _, o := range f.Languages {
		p := o
		if base, ok := r.Get(o.ID); ok {
			p = merge(*base, o)
		}
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func merge(base, o Profile) Profile {
	if o.Name != "" {
		base.Name = o.Name
	}
	if o.Version != "" {
		base.Version = o.Version
	}
	if o.Image != "" {
		base.Image = o.Image
	}
	if o.SourceFile != "" {
		base.SourceFile = o.SourceFile
	}
	if o.HarnessFile != "" {
		base.HarnessFile = o.HarnessFile
	}
	if o.CompileCmd != "" {
		base.CompileCmd = o.CompileCmd
	}
	if o.RunCmd != "" {
		base.RunCmd = o.RunCmd
	}
	if o.CompileTimeout > 0 {
		base.CompileTimeout = o.CompileTimeout
	}
	if o.RunTimeout > 0 {
		base.RunTimeout = o.RunTimeout
	}
	if o.MemoryLimit > 0 {
		base.MemoryLimit = o.MemoryLimit
	}
	return base
}
