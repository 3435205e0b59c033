package web

import (
	"github.com/dukex/stepflow/pkg/execution"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/services"
)

// UserHeader carries the id of the user making an edit.
const UserHeader = "X-User-ID"

// CreateFlowVersionRequest represents the request body for creating a new flow version.
type CreateFlowVersionRequest struct {
	FlowID      string `json:"flowId"      validate:"required"`
	DisplayName string `json:"displayName" validate:"required,min=1"`
	FolderID    string `json:"folderId"`
}

type FlowVersionListResponse struct {
	FlowVersions []*models.FlowVersion `json:"flowVersions"`
	TotalCount   int                   `json:"totalCount"`
}

type RunResponse struct {
	Summary *services.RunSummary `json:"summary"`
	Journal *execution.Journal   `json:"journal"`
}

type PieceResponse struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Actions     []string `json:"actions"`
	Triggers    []string `json:"triggers"`
}
