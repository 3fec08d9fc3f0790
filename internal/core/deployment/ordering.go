package deployment

import (
	"sort"

	"github.com/artpar/dcg/internal/core/compose"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// TopologicalSort orders services so that every service comes after the
// services it depends on (Kahn's algorithm). Among services that are ready at
// the same time, names are taken alphabetically, so the result is stable for
// a given input.
//
// Dependencies on services that are not in the input are ignored. Services
// caught in a cycle are appended at the end in name order.
//
//	// web -> api -> db
//	TopologicalSort(services) // [db, api, web]
func TopologicalSort(services []compose.Service) []compose.Service {
	if len(services) == 0 {
		return services
	}

	byName := make(map[string]compose.Service, len(services))
	for _, svc := range services {
		byName[svc.Name] = svc
	}

	inDegree := make(map[string]int, len(services))
	dependents := make(map[string][]string)
	for _, svc := range services {
		inDegree[svc.Name] += 0
		for _, dep := range svc.DependsOn {
			if _, ok := byName[dep]; !ok || dep == svc.Name {
				continue
			}
			inDegree[svc.Name]++
			dependents[dep] = append(dependents[dep], svc.Name)
		}
	}

	var ready []string
	for name, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	result := make([]compose.Service, 0, len(services))
	placed := make(map[string]bool, len(services))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]

		result = append(result, byName[name])
		placed[name] = true

		released := false
		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
				released = true
			}
		}
		if released {
			sort.Strings(ready)
		}
	}

	if len(result) < len(byName) {
		var rest []string
		for name := range byName {
			if !placed[name] {
				rest = append(rest, name)
			}
		}
		sort.Strings(rest)
		for _, name := range rest {
			result = append(result, byName[name])
		}
	}

	return result
}

// ServiceNames returns the names of services in the given order.
func ServiceNames(services []compose.Service) []string {
	names := make([]string, len(services))
	for i, svc := range services {
		names[i] = svc.Name
	}
	return names
}
