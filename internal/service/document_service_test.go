package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"approval-ledger/internal/export"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/middleware"
	"approval-ledger/internal/model"
	"approval-ledger/internal/repository"
)

var (
	admin     = middleware.Identity{UserID: "u-admin", Role: model.RoleAdmin, Name: "Ada"}
	requester = middleware.Identity{UserID: "u-req", Role: model.RoleRequester, Name: "Rae"}
	checker   = middleware.Identity{UserID: "u-chk", Role: model.RoleChecker, Name: "Chris"}
	approver  = middleware.Identity{UserID: "u-apr", Role: model.RoleApprover, Name: "Dana"}
	receiver  = middleware.Identity{UserID: "u-rcv", Role: model.RoleReceiver, Name: "Ravi"}
)

type fakePublisher struct {
	name string
	data string
}

func (p *fakePublisher) Upload(ctx context.Context, body io.Reader, name, contentType string) (string, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	p.name, p.data = name, string(raw)
	return "https://cdn.example.com/exports/" + name, nil
}

func newDocumentService(t *testing.T, publisher Publisher) *documentService {
	t.Helper()
	store := repository.NewDocumentFileStore(filepath.Join(t.TempDir(), "documents.json"))
	l := ledger.New(store, ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	svc := NewDocumentService(l, publisher).(*documentService)
	svc.now = func() time.Time { return time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC) }
	return svc
}

func submitN(t *testing.T, svc DocumentService, n int) []model.Document {
	t.Helper()
	docs := make([]model.Document, 0, n)
	for i := 1; i <= n; i++ {
		doc, err := svc.Submit(context.Background(), requester, SubmitDocumentRequest{
			PurchaseRequestNo: "PR-" + strings.Repeat("0", 3) + string(rune('0'+i)),
			RequesterName:     "Rae",
			DepartmentName:    "Ops",
		})
		if err != nil {
			t.Fatalf("Submit error: %v", err)
		}
		docs = append(docs, doc)
	}
	return docs
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		role   string
		status model.Status
		want   bool
	}{
		{model.RoleChecker, model.StatusChecked, true},
		{model.RoleChecker, model.StatusApproved, false},
		{model.RoleAcknowledger, model.StatusReject, true},
		{model.RoleReceiver, model.StatusReject, false},
		{model.RoleReceiver, model.StatusClose, true},
		{model.RoleRequester, model.StatusChecked, false},
		{model.RoleAdmin, model.StatusReceived, true},
		{model.RoleChecker, model.StatusDraft, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.role, tt.status); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.role, tt.status, got, tt.want)
		}
	}
}

func TestCanViewStage(t *testing.T) {
	if !CanViewStage(model.RoleRequester, ledger.StageAll) {
		t.Errorf("everyone may open the combined view")
	}
	if CanViewStage(model.RoleChecker, ledger.StageApprove) {
		t.Errorf("checker must not open the approve queue")
	}
	if !CanViewStage(model.RoleApprover, ledger.StageApprove) || !CanViewStage(model.RoleAdmin, ledger.StageReceive) {
		t.Errorf("owner and admin must open their queues")
	}
}

func TestDocumentService_ListPages(t *testing.T) {
	svc := newDocumentService(t, nil)
	docs := submitN(t, svc, 5)
	ctx := context.Background()

	page, err := svc.List(ctx, checker, ledger.StageCheck, 2, 2)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	// Most recent first: page 2 holds the 3rd and 2nd submissions.
	if page.Items[0].ID != docs[2].ID || page.Items[1].ID != docs[1].ID {
		t.Fatalf("unexpected order %s, %s", page.Items[0].ID, page.Items[1].ID)
	}

	page, err = svc.List(ctx, checker, ledger.StageCheck, 9, 2)
	if err != nil || len(page.Items) != 0 || page.Total != 5 {
		t.Fatalf("past the end: %+v, %v", page, err)
	}

	if _, err := svc.List(ctx, checker, ledger.StageApprove, 1, 20); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestDocumentService_TransitionOwnership(t *testing.T) {
	svc := newDocumentService(t, nil)
	doc := submitN(t, svc, 1)[0]
	ctx := context.Background()

	if _, err := svc.Transition(ctx, approver, doc.ID, TransitionRequest{Status: "Checked"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Transition(ctx, checker, doc.ID, TransitionRequest{Status: "Finished"}); !errors.Is(err, ledger.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}

	checked, err := svc.Transition(ctx, checker, doc.ID, TransitionRequest{Status: "checked", Version: doc.Version})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if checked.Status != model.StatusChecked || checked.CheckedBy != "Chris" {
		t.Fatalf("unexpected document %+v", checked)
	}

	if _, err := svc.Transition(ctx, checker, doc.ID, TransitionRequest{Status: "Reject", Version: doc.Version}); !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict for stale version, got %v", err)
	}

	received := model.MustDate("2024-06-01")
	got, err := svc.Transition(ctx, admin, doc.ID, TransitionRequest{Status: "Received", ReceivedDate: &received})
	if err != nil {
		t.Fatalf("admin Transition error: %v", err)
	}
	if got.ReceivedDate == nil || !got.ReceivedDate.Equal(received) {
		t.Fatalf("unexpected received date %v", got.ReceivedDate)
	}
}

func TestDocumentService_SubmitAndDeleteRoles(t *testing.T) {
	svc := newDocumentService(t, nil)
	ctx := context.Background()

	if _, err := svc.Submit(ctx, checker, SubmitDocumentRequest{RequesterName: "Chris"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	doc := submitN(t, svc, 1)[0]

	if err := svc.Delete(ctx, receiver, doc.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := svc.Delete(ctx, admin, doc.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := svc.Get(ctx, doc.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDocumentService_Export(t *testing.T) {
	ctx := context.Background()

	svc := newDocumentService(t, nil)
	submitN(t, svc, 2)
	res, err := svc.Export(ctx, checker, ExportRequest{
		Stage:   ledger.StageCheck,
		Format:  export.FormatCSV,
		Columns: []ledger.Column{ledger.ColumnPRNo, ledger.ColumnStatus},
	})
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if res.FileName != "checked-queue-20240603-1030.csv" || res.URL != "" {
		t.Fatalf("unexpected result %+v", res)
	}
	lines := strings.Split(strings.TrimSpace(string(res.Data)), "\n")
	if len(lines) != 3 || lines[1] != "PR-0002,Draft" {
		t.Fatalf("unexpected csv %q", res.Data)
	}

	if _, err := svc.Export(ctx, checker, ExportRequest{Stage: ledger.StageCheck, Format: export.FormatCSV, Publish: true}); !errors.Is(err, ledger.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput without publisher, got %v", err)
	}

	publisher := &fakePublisher{}
	svc = newDocumentService(t, publisher)
	submitN(t, svc, 1)
	res, err = svc.Export(ctx, admin, ExportRequest{Stage: ledger.StageAll, Format: export.FormatCSV, Publish: true})
	if err != nil {
		t.Fatalf("publish Export error: %v", err)
	}
	if res.URL != "https://cdn.example.com/exports/all-20240603-1030.csv" || publisher.data != string(res.Data) {
		t.Fatalf("unexpected publish %+v / %+v", res, publisher)
	}
}
