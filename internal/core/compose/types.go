package compose

import "sort"

// CandidateFiles lists the compose file names looked up in a deployment
// directory, in order of preference.
var CandidateFiles = []string{"docker-compose.yaml", "docker-compose.yml"}

// ProjectNameEnv overrides the project name when set in the environment or
// the deployment's .env file.
const ProjectNameEnv = "COMPOSE_PROJECT_NAME"

// =============================================================================
// ParsedSpec - Main Output Type
// =============================================================================

// ParsedSpec is the dcg view of a compose file, decoupled from compose-go types.
type ParsedSpec struct {
	ProjectName string    `json:"project_name"`
	Services    []Service `json:"services"`
	Networks    []string  `json:"networks,omitempty"`
	Volumes     []string  `json:"volumes,omitempty"`
}

// ParseOptions controls how a compose file is interpreted.
type ParseOptions struct {
	// WorkingDir is the directory holding the compose file. Its base name is
	// the project name unless the environment or the file names the project.
	WorkingDir string

	// Environment is used for ${VAR} interpolation and COMPOSE_PROJECT_NAME.
	Environment map[string]string
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition.
type Service struct {
	Name          string            `json:"name"`
	Image         string            `json:"image,omitempty"`
	Build         *BuildConfig      `json:"build,omitempty"`
	ContainerName string            `json:"container_name,omitempty"`
	Ports         []Port            `json:"ports,omitempty"`
	DependsOn     []string          `json:"depends_on,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

// BuildConfig represents build configuration.
type BuildConfig struct {
	Context    string `json:"context"`
	Dockerfile string `json:"dockerfile,omitempty"`
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 `json:"target"`              // Container port
	Published uint32 `json:"published,omitempty"` // Host port (0 = dynamic)
	Protocol  string `json:"protocol,omitempty"`  // tcp, udp
	HostIP    string `json:"host_ip,omitempty"`
}

// =============================================================================
// Queries
// =============================================================================

// ServiceCount returns the number of services defined.
func (s *ParsedSpec) ServiceCount() int {
	if s == nil {
		return 0
	}
	return len(s.Services)
}

// Images returns the unique image references used by the spec, sorted.
// Services that only define a build context are skipped.
func (s *ParsedSpec) Images() []string {
	if s == nil {
		return nil
	}

	seen := make(map[string]bool)
	images := make([]string, 0, len(s.Services))
	for _, svc := range s.Services {
		if svc.Image == "" || seen[svc.Image] {
			continue
		}
		seen[svc.Image] = true
		images = append(images, svc.Image)
	}
	sort.Strings(images)
	return images
}
