package uvd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// DescriptorFile is the package descriptor expected at the workspace
// root.
const DescriptorFile = "uvd.toml"

// Descriptor is the package manifest read from uvd.toml and embedded
// into the archive as uvd.json. Field order is the wire order of the
// embedded JSON.
type Descriptor struct {
	Name        string   `toml:"name" json:"name"`
	Author      string   `toml:"author" json:"author"`
	Description string   `toml:"description" json:"description"`
	Version     string   `toml:"version" json:"version"`
	Arch        string   `toml:"arch" json:"arch"`
	Homepage    string   `toml:"homepage" json:"homepage"`
	Repository  string   `toml:"repository" json:"repository"`
	License     string   `toml:"license" json:"license"`
	Icon        *string  `toml:"icon" json:"icon"`
	Provides    []string `toml:"provides" json:"provides"`
	Optional    []string `toml:"optional" json:"optional"`
	Depends     []string `toml:"depends" json:"depends"`
	Conflicts   []string `toml:"conflicts" json:"conflicts"`
	Replaces    []string `toml:"replaces" json:"replaces"`
	Output      *string  `toml:"output" json:"output"`
}

// LoadDescriptor reads and validates the uvd.toml at path.
func LoadDescriptor(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptor: %w", err)
	}
	var d Descriptor
	if err := toml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	if d.Name == "" || d.Version == "" {
		return nil, fmt.Errorf("descriptor %s must set name and version", path)
	}
	d.normalize()
	return &d, nil
}

// normalize replaces nil list fields with empty slices so the embedded
// JSON always carries arrays.
func (d *Descriptor) normalize() {
	for _, s := range []*[]string{&d.Provides, &d.Optional, &d.Depends, &d.Conflicts, &d.Replaces} {
		if *s == nil {
			*s = []string{}
		}
	}
}

// ArchiveName is the canonical file name for this package version.
func (d *Descriptor) ArchiveName() string {
	return fmt.Sprintf("%s_%s%s", d.Name, d.Version, Extension)
}

// OutputDir is the directory archives are written to, defaulting to the
// current directory.
func (d *Descriptor) OutputDir() string {
	if d.Output == nil || *d.Output == "" {
		return "."
	}
	return *d.Output
}

// PackageName recovers the package name from an archive path by
// stripping the extension and the trailing version segment.
func PackageName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), Extension)
	if i := strings.LastIndex(stem, "_"); i > 0 {
		return stem[:i]
	}
	return stem
}
