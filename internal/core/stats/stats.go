// Package stats computes the registry statistics shown by "dcg statistics".
package stats

import "fmt"

// Statistic keys, in display order.
const (
	KeyDeployments  = "Deployments"
	KeyImagesUsed   = "Images Used"
	KeyUniqueImages = "Unique Images"
	KeyMissingFiles = "Missing Compose Files"
)

// UnknownKeyError is returned by Lookup for a key that is not computed.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("Statistic with key '%s' not found.", e.Key)
}

// Entry is one statistic.
type Entry struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// Stats is an ordered list of statistics.
type Stats []Entry

// Project is what statistics need from one deployment's compose file.
type Project struct {
	// Services declared in the file.
	Services int
	// Images referenced by the file, when it could be resolved.
	Images []string
}

// Compute builds statistics for a registry of deployments. projects holds one
// element per deployment; a nil element counts as a deployment whose compose
// file is missing or unreadable.
//
// "Images Used" counts services across all compose files, so a service built
// from an image used elsewhere is counted again. "Unique Images" does not.
func Compute(deployments int, projects []*Project) Stats {
	services := 0
	missing := 0
	unique := make(map[string]struct{})

	for _, p := range projects {
		if p == nil {
			missing++
			continue
		}
		services += p.Services
		for _, image := range p.Images {
			unique[image] = struct{}{}
		}
	}

	return Stats{
		{Key: KeyDeployments, Value: deployments},
		{Key: KeyImagesUsed, Value: services},
		{Key: KeyUniqueImages, Value: len(unique)},
		{Key: KeyMissingFiles, Value: missing},
	}
}

// Lookup returns the value stored under key. Keys are matched exactly.
func (s Stats) Lookup(key string) (int, error) {
	for _, e := range s {
		if e.Key == key {
			return e.Value, nil
		}
	}
	return 0, &UnknownKeyError{Key: key}
}

// Map returns the statistics keyed by name.
func (s Stats) Map() map[string]int {
	m := make(map[string]int, len(s))
	for _, e := range s {
		m[e.Key] = e.Value
	}
	return m
}
