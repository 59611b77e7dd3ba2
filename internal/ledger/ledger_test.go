package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"approval-ledger/internal/model"

	"github.com/shopspring/decimal"
)

type memStore struct {
	mu      sync.Mutex
	docs    []model.Document
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) ([]model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]model.Document, len(m.docs))
	for i, d := range m.docs {
		out[i] = d.Clone()
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, docs []model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.docs = append([]model.Document(nil), docs...)
	m.saves++
	return nil
}

type recorder struct {
	events []Event
}

func (r *recorder) DocumentChanged(ctx context.Context, ev Event) {
	r.events = append(r.events, ev)
}

var fixedNow = time.Date(2024, 6, 3, 10, 30, 0, 0, time.UTC)

func newTestLedger(store Store, opts ...Option) *Ledger {
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	l := New(store, append(base, opts...)...)
	n := 0
	l.newID = func() string {
		n++
		return fmt.Sprintf("doc-%d", n)
	}
	return l
}

func TestLedger_SubmitAndWalkThroughStages(t *testing.T) {
	store := &memStore{}
	rec := &recorder{}
	l := newTestLedger(store, WithListener(rec))
	ctx := context.Background()

	doc, err := l.Submit(ctx, SubmitInput{
		PurchaseRequestNo: "PR-100",
		RequesterName:     "Jo",
		DepartmentName:    "Finance",
		RequiredDate:      model.MustDate("2024-07-01"),
		Items: []model.LineItem{
			{Description: "Laptop", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1200)},
		},
	})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if doc.ID != "doc-1" || doc.Status != model.StatusDraft || doc.Seq != 1 || doc.Version != 1 {
		t.Fatalf("unexpected submitted document %+v", doc)
	}
	if doc.SubmissionDate.String() != "2024-06-03" {
		t.Fatalf("submission date should default to today, got %s", doc.SubmissionDate)
	}

	steps := []struct {
		status model.Status
		actor  string
	}{
		{model.StatusChecked, "Chris"},
		{model.StatusAcknowledge, "Kim"},
		{model.StatusApproved, "Alex"},
		{model.StatusReceived, "Rae"},
	}
	for _, step := range steps {
		if _, err := l.Transition(ctx, doc.ID, TransitionInput{Status: step.status, Actor: step.actor}); err != nil {
			t.Fatalf("Transition to %s: %v", step.status, err)
		}
	}

	got, err := l.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Status != model.StatusReceived || got.ReceivedDate == nil || got.ReceivedDate.String() != "2024-06-03" {
		t.Fatalf("unexpected received document %+v", got)
	}
	if got.CheckedBy != "Chris" || got.AcknowledgedBy != "Kim" || got.ApprovedBy != "Alex" || got.ReceivedBy != "Rae" {
		t.Fatalf("stage actors not recorded: %+v", got)
	}
	if got.Version != 5 {
		t.Fatalf("expected version 5, got %d", got.Version)
	}

	if len(rec.events) != 5 {
		t.Fatalf("expected 5 events, got %d", len(rec.events))
	}
	last := rec.events[4]
	if last.Kind != EventTransitioned || last.Previous != model.StatusApproved || last.Document.Status != model.StatusReceived {
		t.Fatalf("unexpected last event %+v", last)
	}
}

func TestLedger_TransitionSameStatusWritesNothing(t *testing.T) {
	store := &memStore{docs: []model.Document{{ID: "1", Seq: 1, Status: model.StatusChecked, Version: 2}}}
	rec := &recorder{}
	l := newTestLedger(store, WithListener(rec))

	doc, err := l.Transition(context.Background(), "1", TransitionInput{Status: model.StatusChecked})
	if err != nil {
		t.Fatalf("Transition error: %v", err)
	}
	if doc.Version != 2 {
		t.Fatalf("expected version unchanged, got %d", doc.Version)
	}
	if store.saves != 0 {
		t.Fatalf("expected no save, got %d", store.saves)
	}
	if len(rec.events) != 0 {
		t.Fatalf("expected no events, got %d", len(rec.events))
	}
}

func TestLedger_TransitionErrors(t *testing.T) {
	store := &memStore{docs: []model.Document{{ID: "1", Seq: 1, Status: model.StatusApproved, Version: 1}}}
	l := newTestLedger(store)
	ctx := context.Background()

	if _, err := l.Transition(ctx, "missing-id", TransitionInput{Status: model.StatusReceived}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Transition(ctx, "1", TransitionInput{Status: model.StatusDraft}); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if _, err := l.Transition(ctx, "1", TransitionInput{Status: "Lost"}); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if _, err := l.Transition(ctx, "1", TransitionInput{Status: model.StatusReceived, ExpectedVersion: 9}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("failed transitions must not save, got %d saves", store.saves)
	}
}

func TestLedger_PermissiveRules(t *testing.T) {
	store := &memStore{docs: []model.Document{{ID: "1", Seq: 1, Status: model.StatusApproved, Version: 1}}}
	l := newTestLedger(store, WithTransitions(Permissive()))

	doc, err := l.Transition(context.Background(), "1", TransitionInput{Status: model.StatusDraft})
	if err != nil {
		t.Fatalf("permissive ledger rejected transition: %v", err)
	}
	if doc.Status != model.StatusDraft {
		t.Fatalf("expected Draft, got %s", doc.Status)
	}
}

func TestLedger_DeleteRemovesFromEveryStage(t *testing.T) {
	store := &memStore{docs: []model.Document{
		{ID: "1", Seq: 1, Status: model.StatusApproved},
		{ID: "2", Seq: 2, Status: model.StatusChecked},
	}}
	rec := &recorder{}
	l := newTestLedger(store, WithListener(rec))
	ctx := context.Background()

	if err := l.Delete(ctx, "1", "", "admin"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	for _, stage := range Stages {
		view, err := l.List(ctx, stage)
		if err != nil {
			t.Fatalf("List(%s): %v", stage, err)
		}
		for _, d := range view {
			if d.ID == "1" {
				t.Fatalf("deleted document still listed on %s", stage)
			}
		}
	}
	if err := l.Delete(ctx, "1", "", "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(rec.events) != 1 || rec.events[0].Kind != EventDeleted {
		t.Fatalf("unexpected events %+v", rec.events)
	}
}

func TestLedger_CorruptStoreReadsEmpty(t *testing.T) {
	store := &memStore{loadErr: fmt.Errorf("parse: %w", ErrCorruptStore)}
	l := newTestLedger(store)
	ctx := context.Background()

	view, err := l.List(ctx, StageAll)
	if err != nil {
		t.Fatalf("read path should fall back to empty, got %v", err)
	}
	if len(view) != 0 {
		t.Fatalf("expected empty view, got %d", len(view))
	}
	c, err := l.Counters(ctx, StageApprove)
	if err != nil || c.Total != 0 {
		t.Fatalf("unexpected counters %+v, %v", c, err)
	}

	if _, err := l.Submit(ctx, SubmitInput{RequesterName: "Jo"}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("write path should surface ErrStoreUnavailable, got %v", err)
	}
}

func TestLedger_StoreUnavailable(t *testing.T) {
	store := &memStore{loadErr: errors.New("connection refused")}
	l := newTestLedger(store)

	if _, err := l.List(context.Background(), StageAll); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	store.loadErr = nil
	store.docs = []model.Document{{ID: "1", Status: model.StatusDraft}}
	store.saveErr = errors.New("disk full")
	if _, err := l.Transition(context.Background(), "1", TransitionInput{Status: model.StatusChecked}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on save, got %v", err)
	}

	store.saveErr = fmt.Errorf("row 1: %w", ErrVersionConflict)
	if _, err := l.Transition(context.Background(), "1", TransitionInput{Status: model.StatusChecked}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict to pass through, got %v", err)
	}
}

func TestLedger_SubmitValidation(t *testing.T) {
	l := newTestLedger(&memStore{})
	ctx := context.Background()

	cases := []SubmitInput{
		{},
		{RequesterName: "Jo", DocType: "INVOICE"},
		{RequesterName: "Jo", Items: []model.LineItem{{Quantity: decimal.NewFromInt(1)}}},
		{RequesterName: "Jo", Items: []model.LineItem{{Description: "x", Quantity: decimal.NewFromInt(-1)}}},
	}
	for i, in := range cases {
		if _, err := l.Submit(ctx, in); !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("case %d: expected ErrMalformedInput, got %v", i, err)
		}
	}
}

func TestLedger_SubmitAppendsInInsertionOrder(t *testing.T) {
	store := &memStore{}
	l := newTestLedger(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.Submit(ctx, SubmitInput{RequesterName: fmt.Sprintf("r%d", i)}); err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}
	view, err := l.List(ctx, StageCheck)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(view) != 3 || view[0].ID != "doc-3" || view[2].ID != "doc-1" {
		t.Fatalf("unexpected order %+v", view)
	}
	if view[0].Seq != 3 {
		t.Fatalf("expected seq 3, got %d", view[0].Seq)
	}
}

func TestLedger_ExportAndPrint(t *testing.T) {
	store := &memStore{docs: []model.Document{
		{ID: "1", Seq: 1, Status: model.StatusApproved, PurchaseRequestNo: "PR-1"},
		{ID: "2", Seq: 2, Status: model.StatusReceived, PurchaseRequestNo: "PR-2", ReceivedDate: datePtr("2024-01-01")},
		{ID: "3", Seq: 3, Status: model.StatusDraft, PurchaseRequestNo: "PR-3"},
	}}
	l := newTestLedger(store)
	ctx := context.Background()

	p, err := l.Export(ctx, StageReceive, nil)
	if err != nil {
		t.Fatalf("Export error: %v", err)
	}
	if len(p.Rows) != 2 || p.Rows[0][0] != "2" || p.Rows[1][0] != "1" {
		t.Fatalf("unexpected rows %v", p.Rows)
	}
	if p.Header[len(p.Header)-2] != "Received Date" {
		t.Fatalf("expected trailing received date column, got %v", p.Header)
	}

	v, err := l.PrintParams(ctx, "2")
	if err != nil {
		t.Fatalf("PrintParams error: %v", err)
	}
	if v.Get("isReceived") != "true" || v.Get("receivedDate") != "01 Jan 2024" {
		t.Fatalf("unexpected print params %v", v)
	}
	if _, err := l.PrintParams(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
