package ledger

import (
	"fmt"
	"strings"

	"approval-ledger/internal/model"
)

// Stage selects the dashboard a view is built for.
type Stage string

const (
	StageAll         Stage = "all"
	StageCheck       Stage = "checked-queue"
	StageAcknowledge Stage = "acknowledge-queue"
	StageApprove     Stage = "approve-queue"
	StageReceive     Stage = "receive-queue"
)

// Stages lists every stage selector.
var Stages = []Stage{StageAll, StageCheck, StageAcknowledge, StageApprove, StageReceive}

// Each dashboard surfaces the status it promotes from and the status it promotes to.
var stageStatuses = map[Stage][]model.Status{
	StageAll:         model.AllStatuses,
	StageCheck:       {model.StatusDraft, model.StatusChecked},
	StageAcknowledge: {model.StatusChecked, model.StatusAcknowledge},
	StageApprove:     {model.StatusAcknowledge, model.StatusApproved},
	StageReceive:     {model.StatusApproved, model.StatusReceived},
}

var stageAliases = map[string]Stage{
	"":            StageAll,
	"check":       StageCheck,
	"checked":     StageCheck,
	"acknowledge": StageAcknowledge,
	"approve":     StageApprove,
	"receive":     StageReceive,
}

// ParseStage resolves a selector or one of its short aliases. Empty means all.
func ParseStage(raw string) (Stage, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := stageAliases[key]; ok {
		return s, nil
	}
	s := Stage(key)
	if _, ok := stageStatuses[s]; ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: unknown stage %q", ErrMalformedInput, raw)
}

// Statuses returns the filter set of the stage in forward order.
func (s Stage) Statuses() []model.Status {
	return append([]model.Status(nil), stageStatuses[s]...)
}

// Includes reports whether documents in status st appear on the stage.
func (s Stage) Includes(st model.Status) bool {
	for _, candidate := range stageStatuses[s] {
		if candidate == st {
			return true
		}
	}
	return false
}

func (s Stage) valid() bool {
	_, ok := stageStatuses[s]
	return ok
}
