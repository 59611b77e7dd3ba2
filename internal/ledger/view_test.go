package ledger

import (
	"errors"
	"testing"

	"approval-ledger/internal/model"
)

func mixedDocs() []model.Document {
	var docs []model.Document
	for i, st := range []model.Status{
		model.StatusDraft, model.StatusChecked, model.StatusAcknowledge, model.StatusApproved,
		model.StatusReceived, model.StatusReject, model.StatusClose, model.StatusApproved, model.StatusDraft,
	} {
		docs = append(docs, model.Document{ID: string(rune('a' + i)), Seq: int64(i + 1), Status: st})
	}
	return docs
}

func TestListByStage_ApproveExample(t *testing.T) {
	docs := []model.Document{
		{ID: "1", Status: model.StatusApproved},
		{ID: "2", Status: model.StatusChecked},
	}

	view, err := ListByStage(docs, StageApprove)
	if err != nil {
		t.Fatalf("ListByStage error: %v", err)
	}
	if len(view) != 1 || view[0].ID != "1" {
		t.Fatalf("unexpected approve view: %+v", view)
	}

	c, err := ComputeCounters(docs, StageApprove)
	if err != nil {
		t.Fatalf("ComputeCounters error: %v", err)
	}
	if c.Total != 2 {
		t.Fatalf("expected total 2, got %d", c.Total)
	}
	if c.Count(model.StatusApproved) != 1 || c.Count(model.StatusAcknowledge) != 0 {
		t.Fatalf("unexpected counters: %+v", c.ByStatus)
	}
}

func TestListByStage_MembershipMatchesFilterSet(t *testing.T) {
	docs := mixedDocs()

	for _, stage := range Stages {
		view, err := ListByStage(docs, stage)
		if err != nil {
			t.Fatalf("ListByStage(%s): %v", stage, err)
		}
		listed := make(map[string]bool, len(view))
		for _, d := range view {
			listed[d.ID] = true
		}
		for _, d := range docs {
			if listed[d.ID] != stage.Includes(d.Status) {
				t.Fatalf("%s: document %s (%s) listed=%v", stage, d.ID, d.Status, listed[d.ID])
			}
		}
	}
}

func TestListByStage_RecentFirst(t *testing.T) {
	docs := mixedDocs()

	view, err := ListByStage(docs, StageAll)
	if err != nil {
		t.Fatalf("ListByStage error: %v", err)
	}
	if len(view) != len(docs) {
		t.Fatalf("expected %d documents, got %d", len(docs), len(view))
	}
	for i := range view {
		if view[i].ID != docs[len(docs)-1-i].ID {
			t.Fatalf("position %d: expected %s, got %s", i, docs[len(docs)-1-i].ID, view[i].ID)
		}
	}

	check, _ := ListByStage(docs, StageCheck)
	if len(check) != 3 || check[0].ID != "i" || check[1].ID != "b" || check[2].ID != "a" {
		t.Fatalf("unexpected check queue order: %+v", check)
	}
}

func TestComputeCounters_TotalAlwaysLength(t *testing.T) {
	docs := mixedDocs()

	for _, stage := range Stages {
		c, err := ComputeCounters(docs, stage)
		if err != nil {
			t.Fatalf("ComputeCounters(%s): %v", stage, err)
		}
		if c.Total != len(docs) {
			t.Fatalf("%s: total %d, want %d", stage, c.Total, len(docs))
		}
		if len(c.ByStatus) != len(stage.Statuses()) {
			t.Fatalf("%s: expected %d tracked statuses, got %d", stage, len(stage.Statuses()), len(c.ByStatus))
		}
	}

	receive, _ := ComputeCounters(docs, StageReceive)
	if receive.Count(model.StatusApproved) != 2 || receive.Count(model.StatusReceived) != 1 {
		t.Fatalf("unexpected receive counters: %+v", receive.ByStatus)
	}

	empty, _ := ComputeCounters(nil, StageAll)
	if empty.Total != 0 {
		t.Fatalf("expected zero total, got %d", empty.Total)
	}
}

func TestParseStage(t *testing.T) {
	cases := map[string]Stage{
		"":                  StageAll,
		"all":               StageAll,
		"approve":           StageApprove,
		"Approve-Queue":     StageApprove,
		"checked-queue":     StageCheck,
		"acknowledge-queue": StageAcknowledge,
		" receive ":         StageReceive,
	}
	for raw, want := range cases {
		got, err := ParseStage(raw)
		if err != nil {
			t.Fatalf("ParseStage(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseStage(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, err := ParseStage("ship-queue"); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
	if _, err := ListByStage(nil, Stage("ship-queue")); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput from ListByStage, got %v", err)
	}
}

func TestStyleFor(t *testing.T) {
	want := map[model.Status]Style{
		model.StatusDraft:       StyleWarning,
		model.StatusChecked:     StyleSuccess,
		model.StatusAcknowledge: StyleInfo,
		model.StatusApproved:    StylePrimary,
		model.StatusReceived:    StyleSpecial,
		model.StatusReject:      StyleDanger,
		model.StatusClose:       StyleNeutral,
		model.Status("Pending"): StyleNeutral,
		model.Status(""):        StyleNeutral,
	}
	for st, style := range want {
		if got := StyleFor(st); got != style {
			t.Errorf("StyleFor(%q) = %q, want %q", st, got, style)
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus("received")
	if err != nil || got != model.StatusReceived {
		t.Fatalf("ParseStatus(received) = %q, %v", got, err)
	}
	if _, err := ParseStatus("Shipped"); !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}
