package ledger

import (
	"fmt"
	"strings"
	"time"

	"approval-ledger/internal/model"
)

// Fields carries the values written atomically with a status change.
type Fields struct {
	ReceivedDate *model.Date
	GRDate       *model.Date
	PONumber     *string
	// Actor is recorded as the checker/acknowledger/approver/receiver name.
	Actor string
	// ExpectedVersion, when non-zero, must match the stored record version.
	ExpectedVersion int64
	// At stamps UpdatedAt; zero leaves it untouched.
	At time.Time
}

// TransitionStatus overwrites the status of document id and returns the new
// collection. Every other record is carried over unchanged and the input
// slice is never modified. Moving a document to the status it already has is
// a no-op, so repeated calls converge on the same state.
func TransitionStatus(docs []model.Document, id string, next model.Status, fields Fields, rules Transitions) ([]model.Document, error) {
	if !next.Valid() {
		return docs, fmt.Errorf("%w: unknown status %q", ErrMalformedInput, next)
	}
	idx := indexOf(docs, id)
	if idx < 0 {
		return docs, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	current := docs[idx]
	if fields.ExpectedVersion != 0 && fields.ExpectedVersion != current.Version {
		return docs, fmt.Errorf("%w: document %s is at version %d, caller expected %d",
			ErrVersionConflict, id, current.Version, fields.ExpectedVersion)
	}

	out := append([]model.Document(nil), docs...)
	if current.Status == next {
		return out, nil
	}
	if !rules.Allows(current.Status, next) {
		return docs, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, next)
	}
	if next != model.StatusReceived && (fields.ReceivedDate != nil || fields.GRDate != nil) {
		return docs, fmt.Errorf("%w: received and GR dates can only be set with %s", ErrMalformedInput, model.StatusReceived)
	}
	if next == model.StatusReceived && (fields.ReceivedDate == nil || fields.ReceivedDate.IsZero()) {
		return docs, fmt.Errorf("%w: received date is required", ErrMalformedInput)
	}

	updated := current.Clone()
	updated.Status = next
	switch next {
	case model.StatusReceived:
		rd := *fields.ReceivedDate
		updated.ReceivedDate = &rd
		if fields.GRDate != nil {
			gr := *fields.GRDate
			updated.GRDate = &gr
		}
	case model.StatusClose:
		// Closing a received document keeps its receipt dates.
		if current.Status != model.StatusReceived {
			updated.ReceivedDate = nil
			updated.GRDate = nil
		}
	default:
		updated.ReceivedDate = nil
		updated.GRDate = nil
	}

	if actor := strings.TrimSpace(fields.Actor); actor != "" {
		switch next {
		case model.StatusChecked:
			updated.CheckedBy = actor
		case model.StatusAcknowledge:
			updated.AcknowledgedBy = actor
		case model.StatusApproved:
			updated.ApprovedBy = actor
		case model.StatusReceived:
			updated.ReceivedBy = actor
		}
	}
	if fields.PONumber != nil {
		if po := strings.TrimSpace(*fields.PONumber); po != "" {
			updated.PONumber = &po
		} else {
			updated.PONumber = nil
		}
	}
	if !fields.At.IsZero() {
		updated.UpdatedAt = fields.At
	}
	updated.Version = current.Version + 1

	out[idx] = updated
	return out, nil
}

// DeleteDocument removes document id. When id is absent the input collection
// is returned as-is together with ErrNotFound.
func DeleteDocument(docs []model.Document, id string) ([]model.Document, error) {
	idx := indexOf(docs, id)
	if idx < 0 {
		return docs, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := make([]model.Document, 0, len(docs)-1)
	out = append(out, docs[:idx]...)
	out = append(out, docs[idx+1:]...)
	return out, nil
}

// FindDocument returns a copy of document id.
func FindDocument(docs []model.Document, id string) (model.Document, error) {
	idx := indexOf(docs, id)
	if idx < 0 {
		return model.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return docs[idx].Clone(), nil
}

func indexOf(docs []model.Document, id string) int {
	for i := range docs {
		if docs[i].ID == id {
			return i
		}
	}
	return -1
}
