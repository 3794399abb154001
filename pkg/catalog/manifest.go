package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	masterminds "github.com/Masterminds/semver/v3"
	"sigs.k8s.io/yaml"

	"github.com/morezero/valuestore/pkg/typeinfo"
)

const manifestLogPrefix = "catalog:manifest"

// SupportedManifestVersions is the range of manifest versions this build reads.
const SupportedManifestVersions = ">=1.0.0, <2.0.0"

// ManifestType declares a type known by name, with its direct supertypes.
type ManifestType struct {
	Kind        string   `json:"kind,omitempty"`
	Supertypes  []string `json:"supertypes,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Manifest is the on-disk catalog declaration (YAML or JSON).
type Manifest struct {
	Name        string                  `json:"name"`
	Version     string                  `json:"version"`
	Description string                  `json:"description,omitempty"`
	Types       map[string]ManifestType `json:"types"`
	// Aliases maps old or short type names to registered type names.
	Aliases map[string]string `json:"aliases,omitempty"`
}

// LoadManifest loads the catalog manifest. It tries paths in order: any
// paths passed in, then CATALOG_FILE, then the default locations. A file
// that cannot be parsed is skipped; a manifest with an unsupported version is
// an error.
func LoadManifest(paths ...string) (*Manifest, error) {
	all := make([]string, 0, len(paths)+4)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("CATALOG_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/catalog.yaml", "catalog.yaml", "catalog.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		var m Manifest
		if err := yaml.Unmarshal(data, &m); err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse catalog file %s: %v", manifestLogPrefix, p, err))
			continue
		}
		if err := CheckManifestVersion(m.Version); err != nil {
			return nil, fmt.Errorf("%s - %s: %w", manifestLogPrefix, p, err)
		}

		slog.Info(fmt.Sprintf("%s - Loaded catalog manifest from %s", manifestLogPrefix, p))
		return &m, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default catalog manifest", manifestLogPrefix))
	return DefaultManifest(), nil
}

// ParseManifest parses a YAML or JSON manifest and checks its version.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s - failed to parse manifest: %w", manifestLogPrefix, err)
	}
	if err := CheckManifestVersion(m.Version); err != nil {
		return nil, err
	}
	return &m, nil
}

// CheckManifestVersion verifies that version falls in SupportedManifestVersions.
func CheckManifestVersion(version string) error {
	v, err := masterminds.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%s - invalid manifest version %q: %w", manifestLogPrefix, version, err)
	}
	constraint, err := masterminds.NewConstraint(SupportedManifestVersions)
	if err != nil {
		return fmt.Errorf("%s - invalid supported range: %w", manifestLogPrefix, err)
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%s - manifest version %s is not supported (want %s)", manifestLogPrefix, version, SupportedManifestVersions)
	}
	return nil
}

// DefaultManifest returns the built-in empty manifest.
func DefaultManifest() *Manifest {
	return &Manifest{
		Name:        "valuestore-catalog",
		Version:     "1.0.0",
		Description: "Default type catalog",
		Types:       map[string]ManifestType{},
		Aliases:     map[string]string{},
	}
}

// MergeManifests merges override into base. Types and aliases in override win.
func MergeManifests(base, override *Manifest) *Manifest {
	merged := *base

	merged.Types = make(map[string]ManifestType, len(base.Types)+len(override.Types))
	for name, t := range base.Types {
		merged.Types[name] = t
	}
	for name, t := range override.Types {
		merged.Types[name] = t
	}

	merged.Aliases = make(map[string]string, len(base.Aliases)+len(override.Aliases))
	for alias, target := range base.Aliases {
		merged.Aliases[alias] = target
	}
	for alias, target := range override.Aliases {
		merged.Aliases[alias] = target
	}

	if override.Version != "" {
		merged.Version = override.Version
	}
	return &merged
}

// Apply registers the manifest's types, lineage and aliases. Types already
// registered from code keep their Go type and gain the declared supertypes.
// It returns the names of the types the manifest introduced.
func (c *Catalog) Apply(m *Manifest) ([]string, error) {
	names := make([]string, 0, len(m.Types))
	for name := range m.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	c.mu.Lock()
	defer c.mu.Unlock()

	var introduced []string
	for _, name := range names {
		mt := m.Types[name]
		kind, err := typeinfo.ParseKind(mt.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s - type %q: %w", manifestLogPrefix, name, err)
		}
		if _, exists := c.entries[name]; !exists {
			introduced = append(introduced, name)
		}
		if err := c.register(typeinfo.Named(name, kind)); err != nil {
			return nil, err
		}
		c.setDescription(name, mt.Description)
	}

	for _, name := range names {
		for _, super := range m.Types[name].Supertypes {
			superInfo := typeinfo.Named(super, typeinfo.Class)
			if e := c.entries[super]; e != nil {
				superInfo = e.info
			}
			if err := c.register(c.entries[name].info, superInfo); err != nil {
				return nil, err
			}
		}
	}

	aliases := make([]string, 0, len(m.Aliases))
	for alias := range m.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		target := m.Aliases[alias]
		if _, ok := c.entries[alias]; ok {
			return nil, fmt.Errorf("%s - alias %q collides with a registered type", manifestLogPrefix, alias)
		}
		if _, ok := c.entries[target]; !ok {
			return nil, fmt.Errorf("%s - alias %q targets unknown type %q", manifestLogPrefix, alias, target)
		}
		c.aliases[alias] = target
	}

	slog.Info(fmt.Sprintf("%s - Applied manifest %s@%s (%d types, %d aliases)",
		manifestLogPrefix, m.Name, m.Version, len(names), len(aliases)))
	return introduced, nil
}
