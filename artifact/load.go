package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
)

// ErrInvalidBundle indicates a bundle whose runtime IR is missing or inconsistent.
var ErrInvalidBundle = errors.New("invalid bundle")

// Load reads and checks the runtime IR of a bundle.
func Load(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, RuntimeFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidBundle, RuntimeFile, err)
	}
	if err := m.check(fsys); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadPackage reads manifest.json.
func LoadPackage(fsys fs.FS) (*Package, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}
	var p Package
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidBundle, ManifestFile, err)
	}
	return &p, nil
}

// LoadTransform reads a transform descriptor.
func LoadTransform(fsys fs.FS, file string) (TransformDescriptor, error) {
	var d TransformDescriptor
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return d, fmt.Errorf("%w: %w", ErrInvalidBundle, err)
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: decode %s: %w", ErrInvalidBundle, file, err)
	}
	return d, nil
}

// check verifies that every referenced file exists.
func (m *Manifest) check(fsys fs.FS) error {
	var refs []string
	for _, h := range m.Handlers {
		refs = append(refs, h.File)
	}
	for _, f := range m.Transforms {
		refs = append(refs, f)
	}
	for _, f := range m.Orchestrations {
		refs = append(refs, f)
	}
	for _, r := range m.Resources {
		refs = append(refs, r.File)
	}
	for _, ref := range refs {
		if _, err := fs.Stat(fsys, ref); err != nil {
			return fmt.Errorf("%w: missing %s", ErrInvalidBundle, ref)
		}
	}
	for _, name := range m.Synthetic {
		if _, ok := m.Orchestrations[name]; !ok {
			return fmt.Errorf("%w: synthetic tool %q has no orchestration", ErrInvalidBundle, name)
		}
	}
	return nil
}

// IsSynthetic reports whether name is answered by orchestration.
func (m *Manifest) IsSynthetic(name string) bool {
	_, ok := m.Orchestrations[name]
	return ok
}

// Tool returns the exposed tool entry with the given name.
func (m *Manifest) Tool(name string) (Tool, bool) {
	for _, t := range m.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Resource returns the resource with the given URI.
func (m *Manifest) Resource(uri string) (Resource, bool) {
	for _, r := range m.Resources {
		if r.URI == uri {
			return r, true
		}
	}
	return Resource{}, false
}
