package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"
	"approval-ledger/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs returns one page of the log, newest first, with users preloaded
func (s *auditService) GetAuditLogs(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

// AuditRecorder writes one audit row per ledger event.
type AuditRecorder struct {
	repo repository.AuditRepository
}

func NewAuditRecorder(repo repository.AuditRepository) *AuditRecorder {
	return &AuditRecorder{repo: repo}
}

var auditActions = map[ledger.EventKind]string{
	ledger.EventSubmitted:    model.ActionSubmitDocument,
	ledger.EventTransitioned: model.ActionTransitionDocument,
	ledger.EventDeleted:      model.ActionDeleteDocument,
}

// DocumentChanged implements ledger.Listener. Failures are logged; the
// document change itself is already committed.
func (r *AuditRecorder) DocumentChanged(ctx context.Context, ev ledger.Event) {
	entry := auditEntry(ev)
	if err := r.repo.Log(ctx, &entry); err != nil {
		slog.Error("failed to write audit log", "action", entry.Action, "document", ev.Document.ID, "error", err)
	}
}

func auditEntry(ev ledger.Event) model.AuditLog {
	details := map[string]interface{}{
		"pr_no":  ev.Document.PurchaseRequestNo,
		"status": ev.Document.Status,
		"actor":  ev.Actor,
	}
	if ev.Kind == ledger.EventTransitioned {
		details["from"] = ev.Previous
		details["version"] = ev.Document.Version
	}
	encoded, _ := json.Marshal(details)

	entry := model.AuditLog{
		Action:     auditActions[ev.Kind],
		EntityID:   ev.Document.ID,
		EntityName: ev.Document.PurchaseRequestNo,
		Details:    string(encoded),
		CreatedAt:  ev.At,
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if parsed, err := uuid.Parse(ev.ActorID); err == nil {
		entry.UserID = &parsed
	}
	return entry
}
