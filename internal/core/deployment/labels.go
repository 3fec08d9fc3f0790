package deployment

import (
	"sort"

	"github.com/artpar/dcg/internal/core/domain"
)

// =============================================================================
// Compose Labels
// =============================================================================

// Labels set by docker compose on every container it creates.
const (
	LabelProject    = "com.docker.compose.project"
	LabelService    = "com.docker.compose.service"
	LabelWorkingDir = "com.docker.compose.project.working_dir"
	LabelConfigFile = "com.docker.compose.project.config_files"
)

// ProjectFilter returns the label filter selecting a project's containers.
//
//	ProjectFilter("plex") // {"com.docker.compose.project": "plex"}
func ProjectFilter(project string) map[string]string {
	return map[string]string{LabelProject: project}
}

// ServiceOf returns the compose service a container belongs to, or "".
func ServiceOf(labels map[string]string) string {
	return labels[LabelService]
}

// OrderContainers sorts containers by the position of their service in
// serviceOrder, then by container name. Containers whose service is not in
// serviceOrder go last.
func OrderContainers(containers []domain.ContainerDetail, serviceOrder []string) {
	rank := make(map[string]int, len(serviceOrder))
	for i, name := range serviceOrder {
		rank[name] = i
	}
	position := func(service string) int {
		if r, ok := rank[service]; ok {
			return r
		}
		return len(serviceOrder)
	}

	sort.SliceStable(containers, func(i, j int) bool {
		pi, pj := position(containers[i].Service), position(containers[j].Service)
		if pi != pj {
			return pi < pj
		}
		return containers[i].Name < containers[j].Name
	})
}
