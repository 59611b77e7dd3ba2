package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"
	"approval-ledger/internal/repository"
)

// prepareStore points the CLI at a fresh file store and seeds it.
func prepareStore(t *testing.T, prNos ...string) (string, []model.Document) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "documents.json")
	t.Setenv("STORE_DRIVER", "file")
	t.Setenv("STORE_FILE", path)
	t.Setenv("LOG_LEVEL", "error")

	l := ledger.New(repository.NewDocumentFileStore(path))
	docs := make([]model.Document, 0, len(prNos))
	for _, no := range prNos {
		doc, err := l.Submit(context.Background(), ledger.SubmitInput{
			PurchaseRequestNo: no,
			RequesterName:     "Rae",
			DepartmentName:    "Ops",
		})
		if err != nil {
			t.Fatalf("seed %s: %v", no, err)
		}
		docs = append(docs, doc)
	}
	return path, docs
}

type auditLog struct {
	entries []model.AuditLog
}

func (a *auditLog) Log(ctx context.Context, entry *model.AuditLog) error {
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *auditLog) List(ctx context.Context, filter repository.AuditFilter, page, limit int) ([]model.AuditLog, int64, error) {
	return a.entries, int64(len(a.entries)), nil
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, &app{audit: &auditLog{}}, args...)
}

func executeWith(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestList_NewestFirst(t *testing.T) {
	_, docs := prepareStore(t, "PR-0001", "PR-0002")

	out, err := execute(t, "list", "--stage", "check")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	first := strings.Index(out, docs[1].ID)
	second := strings.Index(out, docs[0].ID)
	if first < 0 || second < 0 || first > second {
		t.Fatalf("expected %s before %s, got:\n%s", docs[1].ID, docs[0].ID, out)
	}
}

func TestList_Empty(t *testing.T) {
	prepareStore(t)
	out, err := execute(t, "list", "--stage", "approve-queue")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "No documents.") {
		t.Fatalf("expected empty message, got: %s", out)
	}
}

func TestTransition_ReceiveAndCount(t *testing.T) {
	path, docs := prepareStore(t, "PR-0001", "PR-0002")

	out, err := execute(t, "transition", docs[0].ID, "received", "--received-date", "2024-01-01", "--by", "Ravi", "--po", "PO-9")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !strings.Contains(out, "is Received (version 2)") {
		t.Fatalf("unexpected output: %s", out)
	}

	stored, err := repository.NewDocumentFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := stored[0]
	if got.ReceivedDate == nil || got.ReceivedDate.String() != "2024-01-01" || got.ReceivedBy != "Ravi" || got.PONumber == nil || *got.PONumber != "PO-9" {
		t.Fatalf("unexpected stored document %+v", got)
	}
	if stored[1].Status != model.StatusDraft {
		t.Fatalf("other document changed: %+v", stored[1])
	}

	out, err = execute(t, "counters", "--stage", "receive")
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	for _, want := range []string{"total: 2", "Approved: 0", "Received: 1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in counters, got:\n%s", want, out)
		}
	}
}

func TestTransition_Errors(t *testing.T) {
	_, docs := prepareStore(t, "PR-0001")

	if _, err := execute(t, "transition", "missing", "Checked"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := execute(t, "transition", docs[0].ID, "Done"); !errors.Is(err, ledger.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if _, err := execute(t, "transition", docs[0].ID, "Received", "--received-date", "01/02/2024"); !errors.Is(err, ledger.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput for bad date, got %v", err)
	}
	if _, err := execute(t, "transition", docs[0].ID, "Checked", "--version", "7"); !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	path, docs := prepareStore(t, "PR-0001", "PR-0002")

	if _, err := execute(t, "delete", docs[0].ID, "--by", "ops"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored, err := repository.NewDocumentFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != docs[1].ID {
		t.Fatalf("unexpected remaining documents %+v", stored)
	}
	if _, err := execute(t, "delete", docs[0].ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestExport_CSV(t *testing.T) {
	prepareStore(t, "PR-0001", "PR-0002")
	outPath := filepath.Join(t.TempDir(), "check.csv")

	out, err := execute(t, "export", "--stage", "check", "--format", "csv", "--columns", "purchaseRequestNo,status", "--out", outPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "Exported 2 documents") {
		t.Fatalf("unexpected output: %s", out)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(data) != "PR No,Status\nPR-0002,Draft\nPR-0001,Draft\n" {
		t.Fatalf("unexpected csv %q", data)
	}

	if _, err := execute(t, "export", "--format", "pdf"); !errors.Is(err, ledger.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestUnknownStoreDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := execute(t, "list"); err == nil || !strings.Contains(err.Error(), "store.driver") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestMutationsWriteAuditRows(t *testing.T) {
	_, docs := prepareStore(t, "PR-0001", "PR-0002")
	audit := &auditLog{}
	a := &app{audit: audit}

	if _, err := executeWith(t, a, "list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(audit.entries) != 0 {
		t.Fatalf("reads must not be audited, got %+v", audit.entries)
	}

	if _, err := executeWith(t, a, "transition", docs[0].ID, "Checked", "--by", "Chris"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if _, err := executeWith(t, a, "delete", docs[1].ID, "--by", "ops"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(audit.entries) != 2 {
		t.Fatalf("expected 2 audit rows, got %+v", audit.entries)
	}
	first, second := audit.entries[0], audit.entries[1]
	if first.Action != model.ActionTransitionDocument || first.EntityID != docs[0].ID || !strings.Contains(first.Details, `"actor":"Chris"`) {
		t.Fatalf("unexpected transition row %+v", first)
	}
	if second.Action != model.ActionDeleteDocument || second.EntityID != docs[1].ID || second.UserID != nil {
		t.Fatalf("unexpected delete row %+v", second)
	}
}

func TestNoAuditSkipsAuditLog(t *testing.T) {
	_, docs := prepareStore(t, "PR-0001")
	audit := &auditLog{}

	if _, err := executeWith(t, &app{audit: audit}, "transition", docs[0].ID, "Checked", "--no-audit"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(audit.entries) != 0 {
		t.Fatalf("expected no audit rows, got %+v", audit.entries)
	}
}
