// Package changelog reads a Keep a Changelog markdown document and renders
// it for the terminal.
package changelog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmpty is returned when a document holds no version sections.
var ErrEmpty = errors.New("changelog has no versions")

// VersionNotFoundError is returned by GetVersion for an unknown version.
type VersionNotFoundError struct {
	Version string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("version %q not found in changelog", e.Version)
}

// Changelog is a parsed document. Versions keep document order, newest first.
type Changelog struct {
	Versions []Version
}

// Version is one "## [x.y.z] - date" section.
type Version struct {
	// Version is the bare version, or "unreleased".
	Version  string
	Date     string
	Sections []Section
}

// Section is one "### Added" style category with its bullet entries.
type Section struct {
	Category string
	Entries  []string
}

// IsUnreleased reports whether v is the Unreleased section.
func (v Version) IsUnreleased() bool {
	return v.Version == "unreleased"
}

// Count returns the number of entries across all sections.
func (v Version) Count() int {
	n := 0
	for _, s := range v.Sections {
		n += len(s.Entries)
	}
	return n
}

// "## [1.2.0] - 2026-01-02", "## 1.2.0", "## [Unreleased]"
var versionHeading = regexp.MustCompile(`^##\s+\[?([^\]\s]+)\]?(?:\s+-\s+(\S+))?`)

// Parse reads a Keep a Changelog document. Text outside version sections is
// ignored; wrapped bullet lines are joined to the previous entry.
func Parse(data []byte) (*Changelog, error) {
	log := &Changelog{}
	var version *Version
	var section *Section

	flush := func() {
		if version != nil {
			log.Versions = append(log.Versions, *version)
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "### "):
			if version == nil {
				continue
			}
			version.Sections = append(version.Sections, Section{
				Category: strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "### "))),
			})
			section = &version.Sections[len(version.Sections)-1]

		case strings.HasPrefix(trimmed, "## "):
			flush()
			m := versionHeading.FindStringSubmatch(trimmed)
			if m == nil {
				version, section = nil, nil
				continue
			}
			version = &Version{Version: normalize(m[1]), Date: m[2]}
			section = nil

		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			if section == nil {
				continue
			}
			section.Entries = append(section.Entries, strings.TrimSpace(trimmed[2:]))

		case trimmed != "" && section != nil && len(section.Entries) > 0 && line != trimmed:
			// indented continuation of the previous bullet
			last := len(section.Entries) - 1
			section.Entries[last] += " " + trimmed
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading changelog: %w", err)
	}
	flush()

	if len(log.Versions) == 0 {
		return nil, ErrEmpty
	}
	return log, nil
}

// GetVersion returns the named version. A leading "v" is optional and
// "Unreleased" matches case-insensitively.
func (c *Changelog) GetVersion(version string) (*Version, error) {
	want := normalize(version)
	for i := range c.Versions {
		if c.Versions[i].Version == want {
			return &c.Versions[i], nil
		}
	}
	return nil, &VersionNotFoundError{Version: version}
}

// ListVersions returns the version identifiers in document order.
func (c *Changelog) ListVersions() []string {
	versions := make([]string, len(c.Versions))
	for i, v := range c.Versions {
		versions[i] = v.Version
	}
	return versions
}

func normalize(version string) string {
	version = strings.TrimSpace(version)
	if strings.EqualFold(version, "unreleased") {
		return "unreleased"
	}
	return strings.TrimPrefix(version, "v")
}
