package dto

import (
	"time"

	"sale_inviter/internal/domain"
)

type UpdateSettingRequest struct {
	Value *string `json:"value" binding:"required"`
}

type UpdateSettingResponse struct {
	Key       string `json:"key"`
	Restarted bool   `json:"restarted"`
}

type MappingsRequest struct {
	Mappings []domain.RepoMapping `json:"mappings" binding:"dive"`
}

type MappingsResponse struct {
	Mappings []domain.RepoMapping `json:"mappings"`
}

type LogsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type LogsResponse struct {
	Logs []domain.LogEntry `json:"logs"`
}

type GitHubTestRequest struct {
	Token string `json:"token" binding:"required"`
	Owner string `json:"owner" binding:"required"`
	Repo  string `json:"repo" binding:"required"`
}

type GumroadTestRequest struct {
	Token string `json:"token" binding:"required"`
}

type CycleResultDTO struct {
	Status        string `json:"status"`
	SkipReason    string `json:"skip_reason,omitempty"`
	StartedAt     string `json:"started_at,omitempty"`
	Fetched       int    `json:"fetched"`
	New           int    `json:"new"`
	Invited       int    `json:"invited"`
	Failed        int    `json:"failed"`
	Unextracted   int    `json:"unextracted"`
	GivenUp       int    `json:"given_up"`
	ResetDetected bool   `json:"reset_detected"`
	DurationMS    int64  `json:"duration_ms"`
}

func FromCycleResult(r *domain.CycleResult) CycleResultDTO {
	out := CycleResultDTO{
		Status:        string(r.Status),
		SkipReason:    r.SkipReason,
		Fetched:       r.Fetched,
		New:           r.New,
		Invited:       r.Invited,
		Failed:        r.Failed,
		Unextracted:   r.Unextracted,
		GivenUp:       r.GivenUp,
		ResetDetected: r.ResetDetected,
		DurationMS:    r.Duration.Milliseconds(),
	}
	if !r.StartedAt.IsZero() {
		out.StartedAt = r.StartedAt.UTC().Format(time.RFC3339)
	}
	return out
}
