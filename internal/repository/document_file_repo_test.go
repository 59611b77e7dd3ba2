package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"

	"github.com/shopspring/decimal"
)

func TestDocumentFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewDocumentFileStore(filepath.Join(t.TempDir(), "state", "documents.json"))

	docs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty collection, got %d", len(docs))
	}
}

func TestDocumentFileStore_RoundTripKeepsOrderAndFields(t *testing.T) {
	store := NewDocumentFileStore(filepath.Join(t.TempDir(), "state", "documents.json"))
	ctx := context.Background()

	po := "PO-1"
	received := model.MustDate("2024-01-01")
	in := []model.Document{
		{ID: "b", Seq: 1, Status: model.StatusReceived, PONumber: &po, ReceivedDate: &received, Version: 4},
		{ID: "a", Seq: 2, Status: model.StatusDraft, Version: 1, Items: []model.LineItem{
			{Description: "Chair", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("19.90")},
		}},
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "a" {
		t.Fatalf("unexpected order %+v", out)
	}
	if out[0].PONumber == nil || *out[0].PONumber != "PO-1" || out[0].ReceivedDate.String() != "2024-01-01" {
		t.Fatalf("unexpected first document %+v", out[0])
	}
	if !out[1].Total().Equal(decimal.RequireFromString("39.80")) {
		t.Fatalf("unexpected total %s", out[1].Total())
	}

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the store file, found %d entries", len(entries))
	}
}

func TestDocumentFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	store := NewDocumentFileStore(path)

	if _, err := store.Load(context.Background()); !errors.Is(err, ledger.ErrCorruptStore) {
		t.Fatalf("expected ErrCorruptStore, got %v", err)
	}

	l := ledger.New(store)
	view, err := l.List(context.Background(), ledger.StageAll)
	if err != nil || len(view) != 0 {
		t.Fatalf("expected empty view over corrupt store, got %v, %v", view, err)
	}
}

func TestDocumentFileStore_BacksLedger(t *testing.T) {
	store := NewDocumentFileStore(filepath.Join(t.TempDir(), "documents.json"))
	l := ledger.New(store)
	ctx := context.Background()

	doc, err := l.Submit(ctx, ledger.SubmitInput{RequesterName: "Jo", PurchaseRequestNo: "PR-9"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if _, err := l.Transition(ctx, doc.ID, ledger.TransitionInput{Status: model.StatusChecked, Actor: "Chris"}); err != nil {
		t.Fatalf("Transition error: %v", err)
	}

	reopened := ledger.New(NewDocumentFileStore(store.Path()))
	got, err := reopened.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != model.StatusChecked || got.CheckedBy != "Chris" || got.Version != 2 {
		t.Fatalf("unexpected persisted document %+v", got)
	}
}

func TestDocumentFileStore_StaleWriterIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	ctx := context.Background()
	seed := []model.Document{
		{ID: "d1", Seq: 1, Status: model.StatusDraft, Version: 1},
		{ID: "d2", Seq: 2, Status: model.StatusDraft, Version: 1},
	}
	if err := NewDocumentFileStore(path).Save(ctx, seed); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	api := NewDocumentFileStore(path)
	cli := NewDocumentFileStore(path)
	loadedByAPI, err := api.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	loadedByCLI, err := cli.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	rejected, err := ledger.TransitionStatus(loadedByCLI, "d1", model.StatusReject, ledger.Fields{}, ledger.ForwardOnly())
	if err != nil {
		t.Fatalf("TransitionStatus error: %v", err)
	}
	if err := cli.SaveChanges(ctx, ledger.Diff(loadedByCLI, rejected)); err != nil {
		t.Fatalf("first SaveChanges error: %v", err)
	}

	checked, err := ledger.TransitionStatus(loadedByAPI, "d1", model.StatusChecked, ledger.Fields{}, ledger.ForwardOnly())
	if err != nil {
		t.Fatalf("TransitionStatus error: %v", err)
	}
	if err := api.SaveChanges(ctx, ledger.Diff(loadedByAPI, checked)); !errors.Is(err, ledger.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	stored, err := api.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(stored) != 2 || stored[0].Status != model.StatusReject || stored[0].Version != 2 {
		t.Fatalf("expected the first writer's change to stand, got %+v", stored)
	}
}

func TestDocumentFileStore_DeleteSurvivesOtherWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "documents.json")
	ctx := context.Background()
	seed := []model.Document{
		{ID: "d1", Seq: 1, Status: model.StatusDraft, Version: 1},
		{ID: "d2", Seq: 2, Status: model.StatusDraft, Version: 1},
	}
	if err := NewDocumentFileStore(path).Save(ctx, seed); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	api := ledger.New(NewDocumentFileStore(path))
	cli := NewDocumentFileStore(path)
	loadedByCLI, err := cli.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if err := api.Delete(ctx, "d2", "", "ops"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	checked, err := ledger.TransitionStatus(loadedByCLI, "d1", model.StatusChecked, ledger.Fields{}, ledger.ForwardOnly())
	if err != nil {
		t.Fatalf("TransitionStatus error: %v", err)
	}
	if err := cli.SaveChanges(ctx, ledger.Diff(loadedByCLI, checked)); err != nil {
		t.Fatalf("SaveChanges error: %v", err)
	}

	stored, err := cli.Load(ctx)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(stored) != 1 || stored[0].ID != "d1" || stored[0].Status != model.StatusChecked {
		t.Fatalf("deleted document came back or update was lost: %+v", stored)
	}
}
