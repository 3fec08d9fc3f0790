// Package deployment holds the pure rules dcg applies to a compose project:
// the order its services come up in, and how its containers are found.
//
// Nothing here touches Docker or the filesystem. The shell adapters
// (internal/shell/docker, internal/shell/compose) feed values in and act on
// the results.
//
//	ordered := deployment.TopologicalSort(spec.Services)
//	filter := deployment.ProjectFilter(spec.ProjectName)
package deployment
