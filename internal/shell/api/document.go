package api

import (
	"net/http"

	"github.com/artpar/dcg/internal/core/domain"
	"github.com/artpar/dcg/internal/shell/api/openapi"
)

// newDocument describes the routes served by Handler.Routes.
func newDocument(version string) *openapi.Generator {
	if version == "" {
		version = "dev"
	}
	g := openapi.NewGenerator(
		openapi.WithTitle("dcg API"),
		openapi.WithVersion(version),
		openapi.WithDescription("Manage docker-compose deployments registered with dcg"),
		openapi.WithErrorModel(ErrorResponse{}),
	)

	const deployments = "/api/v1/deployments"
	item := deployments + "/{name}"

	ops := []openapi.Operation{
		{Method: http.MethodGet, Path: "/health", ID: "health", Summary: "Liveness probe", Tag: "system", Response: HealthResponse{}},
		{Method: http.MethodGet, Path: "/ready", ID: "ready", Summary: "Docker daemon reachability", Tag: "system", Response: ReadyResponse{}},
		{Method: http.MethodGet, Path: deployments, ID: "listDeployments", Summary: "List deployments with status", Tag: "deployments", Response: DeploymentListResponse{}},
		{Method: http.MethodPost, Path: deployments, ID: "addDeployment", Summary: "Register a deployment", Tag: "deployments", Request: AddDeploymentRequest{}, Response: AddDeploymentResponse{}, Status: http.StatusCreated},
		{Method: http.MethodGet, Path: item, ID: "getDeployment", Summary: "Deployment status", Tag: "deployments", Response: domain.StatusReport{},
			Query: []openapi.Param{{Name: "detailed", Type: "boolean", Description: "include per-container details"}}},
		{Method: http.MethodDelete, Path: item, ID: "removeDeployment", Summary: "Unregister a deployment", Tag: "deployments", Response: RemoveDeploymentResponse{},
			Query: []openapi.Param{{Name: "stop", Type: "boolean", Description: "run compose down first"}}},
		{Method: http.MethodPost, Path: item + "/start", ID: "startDeployment", Summary: "docker compose up -d", Tag: "lifecycle", Response: ActionResponse{}},
		{Method: http.MethodPost, Path: item + "/stop", ID: "stopDeployment", Summary: "docker compose down", Tag: "lifecycle", Response: ActionResponse{}},
		{Method: http.MethodPost, Path: item + "/restart", ID: "restartDeployment", Summary: "Stop then start", Tag: "lifecycle", Response: ActionResponse{}},
		{Method: http.MethodPost, Path: item + "/update", ID: "updateDeployment", Summary: "Pull images, optionally start or restart", Tag: "lifecycle", Request: UpdateDeploymentRequest{}, Response: ActionResponse{}},
		{Method: http.MethodPost, Path: deployments + "/actions/start-all", ID: "startAll", Summary: "Start every deployment", Tag: "lifecycle", Response: BulkResponse{},
			Description: "Replies 207 when at least one deployment failed."},
		{Method: http.MethodPost, Path: deployments + "/actions/stop-all", ID: "stopAll", Summary: "Stop every deployment", Tag: "lifecycle", Response: BulkResponse{},
			Description: "Replies 207 when at least one deployment failed."},
		{Method: http.MethodGet, Path: "/api/v1/stats", ID: "statistics", Summary: "Registry statistics", Tag: "statistics", Response: StatsResponse{},
			Query: []openapi.Param{{Name: "key", Type: "string", Description: "return a single statistic as {key, value}"}}},
		{Method: http.MethodGet, Path: "/api/v1/history", ID: "history", Summary: "Recorded actions, newest first", Tag: "history", Response: HistoryResponse{},
			Query: []openapi.Param{
				{Name: "deployment", Type: "string", Description: "only events of this deployment"},
				{Name: "limit", Type: "integer", Description: "maximum number of events"},
			}},
	}
	for _, op := range ops {
		g.Register(op)
	}

	return g
}
