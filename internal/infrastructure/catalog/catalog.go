// Package catalog loads smart code catalogs from YAML into a governance registry.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ledgerbase/backend/internal/domain/governance"
)

// ErrCatalogNotFound is returned when the configured catalog file does not exist
var ErrCatalogNotFound = errors.New("catalog: file not found")

//go:embed default.yaml
var defaultCatalog []byte

// File is the on-disk catalog layout
type File struct {
	// Mode overrides the configured enforcement mode when set
	Mode          string            `yaml:"mode,omitempty"`
	Codes         []Code            `yaml:"codes"`
	Organizations map[string][]Code `yaml:"organizations,omitempty"`
}

// Code is one catalog entry; a code without a version registers the whole family
type Code struct {
	Code        string `yaml:"code"`
	Kind        string `yaml:"kind,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Parse decodes a catalog document
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if f.Mode != "" {
		m := strings.ToLower(strings.TrimSpace(f.Mode))
		if m != string(governance.ModeStrict) && m != string(governance.ModeAdvisory) {
			return nil, fmt.Errorf("catalog: mode must be strict or advisory, got %q", f.Mode)
		}
		f.Mode = m
	}
	return &f, nil
}

// LoadFile reads and decodes the catalog at path
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Apply registers every entry of f into r
func (f *File) Apply(r *governance.Registry) error {
	if err := r.Register(toEntries(f.Codes)...); err != nil {
		return err
	}
	for rawID, codes := range f.Organizations {
		orgID, err := uuid.Parse(rawID)
		if err != nil {
			return fmt.Errorf("catalog: organization key %q is not a uuid", rawID)
		}
		if err := r.RegisterForOrganization(orgID, toEntries(codes)...); err != nil {
			return err
		}
	}
	return nil
}

func toEntries(codes []Code) []governance.Entry {
	out := make([]governance.Entry, 0, len(codes))
	for _, c := range codes {
		out = append(out, governance.Entry{
			Code:        strings.TrimSpace(c.Code),
			Kind:        governance.Kind(strings.ToUpper(strings.TrimSpace(c.Kind))),
			Description: c.Description,
		})
	}
	return out
}

// NewRegistry builds a registry holding the platform codes, the built-in
// catalog and, when path is not empty, the catalog file at path. The returned
// mode is the file's mode or fallback when the file does not set one.
func NewRegistry(path string, fallback governance.Mode) (*governance.Registry, governance.Mode, error) {
	r := governance.NewRegistry()
	if err := r.Register(governance.SystemEntries()...); err != nil {
		return nil, "", err
	}
	builtin, err := Parse(defaultCatalog)
	if err != nil {
		return nil, "", err
	}
	if err := builtin.Apply(r); err != nil {
		return nil, "", err
	}

	mode := fallback
	if path == "" {
		return r, mode, nil
	}
	f, err := LoadFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := f.Apply(r); err != nil {
		return nil, "", err
	}
	if f.Mode != "" {
		mode = governance.ParseMode(f.Mode)
	}
	return r, mode, nil
}
