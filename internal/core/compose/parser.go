package compose

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// ParseComposeSpec parses Docker Compose YAML into a ParsedSpec.
// The content is never read from disk here; callers pass the file contents.
func ParseComposeSpec(yamlContent string, opts ParseOptions) (*ParsedSpec, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	dict, err := parseYAML(yamlContent)
	if err != nil {
		return nil, err
	}

	projectName := ProjectName(dict, opts)
	if projectName == "" {
		return nil, NewParseError("name", "project name is empty after normalization", ErrInvalidProjectName)
	}

	project, err := loadComposeSpec(yamlContent, dict, projectName, opts)
	if err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	spec := &ParsedSpec{
		ProjectName: project.Name,
		Services:    make([]Service, 0, len(project.Services)),
	}

	for _, svc := range project.Services {
		converted, err := convertService(svc)
		if err != nil {
			return nil, err
		}
		spec.Services = append(spec.Services, converted)
	}
	sort.Slice(spec.Services, func(i, j int) bool {
		return spec.Services[i].Name < spec.Services[j].Name
	})

	if err := detectCircularDependencies(spec.Services); err != nil {
		return nil, err
	}

	for name := range project.Networks {
		spec.Networks = append(spec.Networks, name)
	}
	sort.Strings(spec.Networks)

	for name := range project.Volumes {
		spec.Volumes = append(spec.Volumes, name)
	}
	sort.Strings(spec.Volumes)

	return spec, nil
}

// ProjectName derives the compose project name the same way "docker compose"
// does without -p: COMPOSE_PROJECT_NAME from the environment, then the
// top-level "name", then the directory name.
func ProjectName(dict map[string]interface{}, opts ParseOptions) string {
	if name := strings.TrimSpace(opts.Environment[ProjectNameEnv]); name != "" {
		return loader.NormalizeProjectName(name)
	}
	if name, ok := dict["name"].(string); ok && strings.TrimSpace(name) != "" {
		return loader.NormalizeProjectName(name)
	}
	if opts.WorkingDir == "" {
		return ""
	}
	return loader.NormalizeProjectName(filepath.Base(filepath.Clean(opts.WorkingDir)))
}

// Outline reads the project name and the number of services from a compose
// file without loading it. It accepts files ParseComposeSpec rejects, such as
// ones referencing undefined variables; unreadable YAML yields zero services.
func Outline(yamlContent string, opts ParseOptions) (projectName string, services int) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		dict = nil
	}
	if svcs, ok := dict["services"].(map[string]interface{}); ok {
		services = len(svcs)
	}
	return ProjectName(dict, opts), services
}

// parseYAML decodes the raw document into a generic map.
func parseYAML(yamlContent string) (map[string]interface{}, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	return dict, nil
}

// loadComposeSpec loads a compose spec using compose-go
func loadComposeSpec(yamlContent string, dict map[string]interface{}, projectName string, opts ParseOptions) (*types.Project, error) {
	env := types.Mapping{}
	for k, v := range opts.Environment {
		env[k] = v
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		WorkingDir: opts.WorkingDir,
		ConfigFiles: []types.ConfigFile{
			{
				Filename: filepath.Join(opts.WorkingDir, CandidateFiles[0]),
				Content:  []byte(yamlContent),
				Config:   dict,
			},
		},
		Environment: env,
	}, func(o *loader.Options) {
		o.SetProjectName(projectName, true)
		o.SkipValidation = false
		o.SkipInterpolation = false
		// Paths stay as written; the file is not being executed here.
		o.SkipNormalization = true
		o.SkipExtends = true
		o.SkipResolveEnvironment = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have image or build", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// convertService converts a compose-go service to our Service type
func convertService(svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:          svc.Name,
		Image:         svc.Image,
		ContainerName: svc.ContainerName,
		Labels:        make(map[string]string),
		DependsOn:     make([]string, 0, len(svc.DependsOn)),
	}

	if svc.Build != nil {
		service.Build = &BuildConfig{
			Context:    svc.Build.Context,
			Dockerfile: svc.Build.Dockerfile,
		}
	}

	if service.Image == "" && service.Build == nil {
		return Service{}, NewParseError("services."+svc.Name, "service must have image or build", ErrServiceNoImage)
	}

	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			if pub, err := strconv.ParseUint(p.Published, 10, 32); err == nil {
				published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}
	sort.Strings(service.DependsOn)

	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	return service, nil
}

// detectCircularDependencies detects circular dependencies in service dependencies
func detectCircularDependencies(services []Service) error {
	deps := make(map[string][]string)
	for _, svc := range services {
		deps[svc.Name] = svc.DependsOn
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}
