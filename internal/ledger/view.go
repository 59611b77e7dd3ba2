package ledger

import (
	"fmt"

	"approval-ledger/internal/model"
)

// ListByStage returns the documents surfaced by the stage, most recently
// added first. Order is the reverse of the collection order.
func ListByStage(docs []model.Document, stage Stage) ([]model.Document, error) {
	if !stage.valid() {
		return nil, fmt.Errorf("%w: unknown stage %q", ErrMalformedInput, stage)
	}
	out := make([]model.Document, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		if stage.Includes(docs[i].Status) {
			out = append(out, docs[i].Clone())
		}
	}
	return out, nil
}

// Counters aggregates a collection for one dashboard.
type Counters struct {
	Stage    Stage                `json:"stage"`
	Total    int                  `json:"total"`
	ByStatus map[model.Status]int `json:"byStatus"`
}

// Count returns the counter for one status of the stage.
func (c Counters) Count(s model.Status) int {
	return c.ByStatus[s]
}

// ComputeCounters counts every document into Total and each status of the
// stage's filter set into ByStatus. Statuses with no documents report zero.
func ComputeCounters(docs []model.Document, stage Stage) (Counters, error) {
	if !stage.valid() {
		return Counters{}, fmt.Errorf("%w: unknown stage %q", ErrMalformedInput, stage)
	}
	statuses := stage.Statuses()
	c := Counters{
		Stage:    stage,
		Total:    len(docs),
		ByStatus: make(map[model.Status]int, len(statuses)),
	}
	for _, s := range statuses {
		c.ByStatus[s] = 0
	}
	for _, d := range docs {
		if _, tracked := c.ByStatus[d.Status]; tracked {
			c.ByStatus[d.Status]++
		}
	}
	return c, nil
}
