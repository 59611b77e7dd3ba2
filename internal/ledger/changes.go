package ledger

import (
	"context"
	"fmt"

	"approval-ledger/internal/model"
)

// ChangeOp is the kind of record-level write in a change set.
type ChangeOp int

const (
	ChangeInsert ChangeOp = iota + 1
	ChangeUpdate
	ChangeDelete
)

func (op ChangeOp) String() string {
	switch op {
	case ChangeInsert:
		return "insert"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	}
	return "unknown"
}

// Change is one record that differs between the collection a writer loaded
// and the collection it is about to save. BaseVersion is the version the
// writer loaded; it is zero for inserts.
type Change struct {
	Op          ChangeOp
	ID          string
	BaseVersion int64
	Document    model.Document
}

// ChangeStore is a Store that writes only what a cycle changed, guarded by
// the versions that cycle loaded. Records written by other processes since
// the load are left alone, and a record changed or removed underneath the
// writer fails the whole save with ErrVersionConflict.
type ChangeStore interface {
	Store
	SaveChanges(ctx context.Context, changes []Change) error
}

// Diff lists the records that differ between loaded and docs: inserts and
// updates in docs order, then deletes in loaded order. Records are compared
// by version only; every write path bumps it.
func Diff(loaded, docs []model.Document) []Change {
	base := make(map[string]int64, len(loaded))
	for _, d := range loaded {
		base[d.ID] = d.Version
	}

	var changes []Change
	kept := make(map[string]bool, len(docs))
	for _, d := range docs {
		kept[d.ID] = true
		version, ok := base[d.ID]
		switch {
		case !ok:
			changes = append(changes, Change{Op: ChangeInsert, ID: d.ID, Document: d})
		case version != d.Version:
			changes = append(changes, Change{Op: ChangeUpdate, ID: d.ID, BaseVersion: version, Document: d})
		}
	}
	for _, d := range loaded {
		if !kept[d.ID] {
			changes = append(changes, Change{Op: ChangeDelete, ID: d.ID, BaseVersion: d.Version})
		}
	}
	return changes
}

// ApplyChanges replays changes onto current, the collection as it is stored
// now. Inserts go to the end. It fails with ErrVersionConflict when an insert
// collides with an existing id, or when an updated or deleted record is gone
// or no longer at its base version. current is never modified.
func ApplyChanges(current []model.Document, changes []Change) ([]model.Document, error) {
	out := append([]model.Document(nil), current...)
	for _, ch := range changes {
		idx := indexOf(out, ch.ID)
		switch ch.Op {
		case ChangeInsert:
			if idx >= 0 {
				return current, fmt.Errorf("%w: document %s already exists", ErrVersionConflict, ch.ID)
			}
			out = append(out, ch.Document)
		case ChangeUpdate, ChangeDelete:
			if idx < 0 {
				return current, fmt.Errorf("%w: document %s was removed concurrently", ErrVersionConflict, ch.ID)
			}
			if out[idx].Version != ch.BaseVersion {
				return current, fmt.Errorf("%w: document %s is at version %d, loaded %d",
					ErrVersionConflict, ch.ID, out[idx].Version, ch.BaseVersion)
			}
			if ch.Op == ChangeUpdate {
				out[idx] = ch.Document
			} else {
				out = append(out[:idx], out[idx+1:]...)
			}
		default:
			return current, fmt.Errorf("unknown change op %d for document %s", ch.Op, ch.ID)
		}
	}
	return out, nil
}
