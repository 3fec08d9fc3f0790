// Package domain contains the core domain types for dcg.
package domain

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrInvalidName         = errors.New("invalid deployment name")
	ErrInvalidPath         = errors.New("invalid deployment path")
	ErrDeploymentExists    = errors.New("deployment already exists")
	ErrDeploymentNotFound  = errors.New("deployment not found")
	ErrComposeFileNotFound = errors.New("no docker-compose file found")
	ErrConflictingFlags    = errors.New("conflicting options")
)

// MaxNameLength is the longest deployment name accepted.
const MaxNameLength = 64

// =============================================================================
// Deployment Status
// =============================================================================

// Status is the coarse runtime state of a deployment.
type Status string

const (
	StatusUp      Status = "Up"
	StatusDown    Status = "Down"
	StatusUnknown Status = "N/A"
)

// =============================================================================
// Deployment
// =============================================================================

// Deployment is a named directory holding a docker-compose file.
type Deployment struct {
	Name     string    `json:"name" yaml:"-"`
	FilePath string    `json:"file_path" yaml:"file_path"`
	AddedAt  time.Time `json:"added_at,omitempty" yaml:"added_at,omitempty"`
}

// NewDeployment validates the inputs and returns a deployment ready to be registered.
func NewDeployment(name, filePath string) (*Deployment, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	path, err := NormalizePath(filePath)
	if err != nil {
		return nil, err
	}

	return &Deployment{
		Name:     name,
		FilePath: path,
		AddedAt:  time.Now().UTC(),
	}, nil
}

// ValidateName checks that a name can be used as a registry key and a CLI argument.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalidName, MaxNameLength)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("%w: name cannot start with '-'", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsSpace(r) || r == '/' || r == '\\' || !unicode.IsPrint(r) {
			return fmt.Errorf("%w: %q contains whitespace or path separators", ErrInvalidName, name)
		}
	}
	return nil
}

// NormalizePath expands a leading "~" and cleans the path.
// Relative paths are made absolute so the registry does not depend on the
// directory dcg was invoked from.
func NormalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidPath)
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: cannot expand ~: %v", ErrInvalidPath, err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	return filepath.Clean(path), nil
}

// SortByName sorts deployments alphabetically in place.
func SortByName(deployments []Deployment) {
	sort.SliceStable(deployments, func(i, j int) bool {
		return deployments[i].Name < deployments[j].Name
	})
}

// =============================================================================
// Views
// =============================================================================

// DeploymentView pairs a registered deployment with its observed status.
type DeploymentView struct {
	Deployment
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// StatusReport is the detailed status of one deployment.
type StatusReport struct {
	Name        string            `json:"name"`
	FilePath    string            `json:"file_path"`
	ComposeFile string            `json:"compose_file,omitempty"`
	Project     string            `json:"project,omitempty"`
	Status      Status            `json:"status"`
	Health      HealthStatus      `json:"health,omitempty"`
	Containers  []ContainerDetail `json:"containers,omitempty"`
}
