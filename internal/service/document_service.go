package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"approval-ledger/internal/export"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/middleware"
	"approval-ledger/internal/model"
	"approval-ledger/pkg/pagination"
)

// ErrForbidden is returned when the caller's role does not own the action.
var ErrForbidden = errors.New("access denied for this role")

// Roles allowed to move a document into each status. Admin may do anything.
var statusOwners = map[model.Status][]string{
	model.StatusChecked:     {model.RoleChecker},
	model.StatusAcknowledge: {model.RoleAcknowledger},
	model.StatusApproved:    {model.RoleApprover},
	model.StatusReceived:    {model.RoleReceiver},
	model.StatusReject:      {model.RoleChecker, model.RoleAcknowledger, model.RoleApprover},
	model.StatusClose:       {model.RoleApprover, model.RoleReceiver},
}

// Roles allowed to open each dashboard. The combined view is open to everyone.
var stageOwners = map[ledger.Stage][]string{
	ledger.StageCheck:       {model.RoleChecker},
	ledger.StageAcknowledge: {model.RoleAcknowledger},
	ledger.StageApprove:     {model.RoleApprover},
	ledger.StageReceive:     {model.RoleReceiver},
}

// CanTransition reports whether role may move a document into status.
func CanTransition(role string, status model.Status) bool {
	return role == model.RoleAdmin || hasRole(role, statusOwners[status])
}

// CanViewStage reports whether role may open the dashboard of stage.
func CanViewStage(role string, stage ledger.Stage) bool {
	owners, restricted := stageOwners[stage]
	return role == model.RoleAdmin || !restricted || hasRole(role, owners)
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type SubmitDocumentRequest struct {
	DocType           string           `json:"docType"`
	PurchaseRequestNo string           `json:"purchaseRequestNo"`
	RequesterName     string           `json:"requesterName" binding:"required"`
	RequesterEmail    string           `json:"requesterEmail" binding:"omitempty,email"`
	DepartmentName    string           `json:"departmentName"`
	SubmissionDate    model.Date       `json:"submissionDate"`
	RequiredDate      model.Date       `json:"requiredDate"`
	Items             []model.LineItem `json:"items"`
	Remarks           string           `json:"remarks"`
}

type TransitionRequest struct {
	Status       string      `json:"status" binding:"required"`
	ReceivedDate *model.Date `json:"receivedDate"`
	GRDate       *model.Date `json:"grDate"`
	PONumber     *string     `json:"poNumber"`
	Version      int64       `json:"version"`
}

type ExportRequest struct {
	Stage   ledger.Stage
	Format  export.Format
	Columns []ledger.Column
	Publish bool
}

// ExportResult carries the rendered file, plus its URL when published.
type ExportResult struct {
	FileName    string
	ContentType string
	Data        []byte
	URL         string
}

// Publisher stores an export file and returns where it can be fetched.
type Publisher interface {
	Upload(ctx context.Context, body io.Reader, name, contentType string) (string, error)
}

type DocumentPage struct {
	Stage ledger.Stage     `json:"stage"`
	Items []model.Document `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type DocumentService interface {
	List(ctx context.Context, caller middleware.Identity, stage ledger.Stage, page, limit int) (*DocumentPage, error)
	Counters(ctx context.Context, caller middleware.Identity, stage ledger.Stage) (ledger.Counters, error)
	Get(ctx context.Context, id string) (model.Document, error)
	PrintParams(ctx context.Context, id string) (url.Values, error)
	Submit(ctx context.Context, caller middleware.Identity, req SubmitDocumentRequest) (model.Document, error)
	Transition(ctx context.Context, caller middleware.Identity, id string, req TransitionRequest) (model.Document, error)
	Delete(ctx context.Context, caller middleware.Identity, id string) error
	Export(ctx context.Context, caller middleware.Identity, req ExportRequest) (*ExportResult, error)
}

type documentService struct {
	ledger    *ledger.Ledger
	publisher Publisher
	now       func() time.Time
}

// NewDocumentService wraps the ledger with role checks. publisher may be nil,
// in which case exports cannot be published.
func NewDocumentService(l *ledger.Ledger, publisher Publisher) DocumentService {
	return &documentService{ledger: l, publisher: publisher, now: time.Now}
}

// List returns one page of the stage view, most recent first
func (s *documentService) List(ctx context.Context, caller middleware.Identity, stage ledger.Stage, page, limit int) (*DocumentPage, error) {
	if !CanViewStage(caller.Role, stage) {
		return nil, ErrForbidden
	}
	view, err := s.ledger.List(ctx, stage)
	if err != nil {
		return nil, err
	}

	p := pagination.New(page, limit)
	start, end := p.Window(len(view))

	return &DocumentPage{
		Stage: stage,
		Items: view[start:end],
		Total: len(view),
		Page:  p.Page,
		Limit: p.Limit,
	}, nil
}

func (s *documentService) Counters(ctx context.Context, caller middleware.Identity, stage ledger.Stage) (ledger.Counters, error) {
	if !CanViewStage(caller.Role, stage) {
		return ledger.Counters{}, ErrForbidden
	}
	return s.ledger.Counters(ctx, stage)
}

func (s *documentService) Get(ctx context.Context, id string) (model.Document, error) {
	return s.ledger.Get(ctx, id)
}

func (s *documentService) PrintParams(ctx context.Context, id string) (url.Values, error) {
	return s.ledger.PrintParams(ctx, id)
}

// Submit files a new Draft on behalf of the caller
func (s *documentService) Submit(ctx context.Context, caller middleware.Identity, req SubmitDocumentRequest) (model.Document, error) {
	if caller.Role != model.RoleAdmin && caller.Role != model.RoleRequester {
		return model.Document{}, ErrForbidden
	}
	return s.ledger.Submit(ctx, ledger.SubmitInput{
		DocType:           req.DocType,
		PurchaseRequestNo: req.PurchaseRequestNo,
		RequesterName:     req.RequesterName,
		RequesterEmail:    req.RequesterEmail,
		DepartmentName:    req.DepartmentName,
		SubmissionDate:    req.SubmissionDate,
		RequiredDate:      req.RequiredDate,
		Items:             req.Items,
		Remarks:           req.Remarks,
		ActorID:           caller.UserID,
	})
}

// Transition moves a document into the requested status if the caller's role owns it
func (s *documentService) Transition(ctx context.Context, caller middleware.Identity, id string, req TransitionRequest) (model.Document, error) {
	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		return model.Document{}, err
	}
	if !CanTransition(caller.Role, status) {
		return model.Document{}, fmt.Errorf("%w: %s cannot set status %s", ErrForbidden, caller.Role, status)
	}
	return s.ledger.Transition(ctx, id, ledger.TransitionInput{
		Status:          status,
		ReceivedDate:    req.ReceivedDate,
		GRDate:          req.GRDate,
		PONumber:        req.PONumber,
		ExpectedVersion: req.Version,
		ActorID:         caller.UserID,
		Actor:           caller.Name,
	})
}

func (s *documentService) Delete(ctx context.Context, caller middleware.Identity, id string) error {
	if caller.Role != model.RoleAdmin {
		return ErrForbidden
	}
	return s.ledger.Delete(ctx, id, caller.UserID, caller.Name)
}

// Export renders the stage view and optionally publishes the file
func (s *documentService) Export(ctx context.Context, caller middleware.Identity, req ExportRequest) (*ExportResult, error) {
	if !CanViewStage(caller.Role, req.Stage) {
		return nil, ErrForbidden
	}
	if req.Publish && s.publisher == nil {
		return nil, fmt.Errorf("%w: export publishing is not configured", ledger.ErrMalformedInput)
	}

	projection, err := s.ledger.Export(ctx, req.Stage, req.Columns)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, req.Format, projection, string(req.Stage)); err != nil {
		return nil, err
	}
	res := &ExportResult{
		FileName:    export.FileName(req.Stage, req.Format, s.now()),
		ContentType: req.Format.ContentType(),
		Data:        buf.Bytes(),
	}

	if req.Publish {
		res.URL, err = s.publisher.Upload(ctx, bytes.NewReader(res.Data), res.FileName, res.ContentType)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}
