package deployment

import (
	"testing"

	"github.com/artpar/dcg/internal/core/compose"
	"github.com/stretchr/testify/assert"
)

func names(services []compose.Service) []string {
	return ServiceNames(services)
}

// =============================================================================
// TopologicalSort Tests
// =============================================================================

func TestTopologicalSort_Empty(t *testing.T) {
	assert.Empty(t, TopologicalSort(nil))
	assert.Empty(t, TopologicalSort([]compose.Service{}))
}

func TestTopologicalSort_NoDependenciesIsAlphabetical(t *testing.T) {
	services := []compose.Service{{Name: "web"}, {Name: "api"}, {Name: "db"}}

	assert.Equal(t, []string{"api", "db", "web"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_LinearDependencies(t *testing.T) {
	services := []compose.Service{
		{Name: "web", DependsOn: []string{"api"}},
		{Name: "api", DependsOn: []string{"db"}},
		{Name: "db"},
	}

	assert.Equal(t, []string{"db", "api", "web"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_Diamond(t *testing.T) {
	//       web
	//      /   \
	//    api   cache
	//      \   /
	//       db
	services := []compose.Service{
		{Name: "web", DependsOn: []string{"api", "cache"}},
		{Name: "cache", DependsOn: []string{"db"}},
		{Name: "api", DependsOn: []string{"db"}},
		{Name: "db"},
	}

	assert.Equal(t, []string{"db", "api", "cache", "web"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_MultipleRoots(t *testing.T) {
	services := []compose.Service{
		{Name: "web", DependsOn: []string{"api"}},
		{Name: "api"},
		{Name: "worker", DependsOn: []string{"db"}},
		{Name: "db"},
	}

	assert.Equal(t, []string{"api", "db", "web", "worker"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_CycleAppendedLast(t *testing.T) {
	services := []compose.Service{
		{Name: "b", DependsOn: []string{"a"}},
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "c"},
	}

	assert.Equal(t, []string{"c", "a", "b"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_MissingDependencyIgnored(t *testing.T) {
	services := []compose.Service{
		{Name: "web", DependsOn: []string{"api"}},
		{Name: "db"},
	}

	assert.Equal(t, []string{"db", "web"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_SelfDependencyIgnored(t *testing.T) {
	services := []compose.Service{{Name: "web", DependsOn: []string{"web"}}}

	assert.Equal(t, []string{"web"}, names(TopologicalSort(services)))
}

func TestTopologicalSort_PreservesServiceData(t *testing.T) {
	services := []compose.Service{
		{Name: "web", Image: "nginx:latest", DependsOn: []string{"api"}, ContainerName: "front"},
		{Name: "api", Image: "myapp:1.0"},
	}

	result := TopologicalSort(services)

	assert.Equal(t, "myapp:1.0", result[0].Image)
	assert.Equal(t, "nginx:latest", result[1].Image)
	assert.Equal(t, "front", result[1].ContainerName)
	assert.Equal(t, []string{"api"}, result[1].DependsOn)
}
