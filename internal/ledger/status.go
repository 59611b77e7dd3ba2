package ledger

import (
	"fmt"
	"strings"

	"approval-ledger/internal/model"
)

// Style is the presentational category of a status.
type Style string

const (
	StyleWarning Style = "warning"
	StyleSuccess Style = "success"
	StyleInfo    Style = "info"
	StylePrimary Style = "primary"
	StyleSpecial Style = "special"
	StyleDanger  Style = "danger"
	StyleNeutral Style = "neutral"
)

var statusStyles = map[model.Status]Style{
	model.StatusDraft:       StyleWarning,
	model.StatusChecked:     StyleSuccess,
	model.StatusAcknowledge: StyleInfo,
	model.StatusApproved:    StylePrimary,
	model.StatusReceived:    StyleSpecial,
	model.StatusReject:      StyleDanger,
	model.StatusClose:       StyleNeutral,
}

// StyleFor maps a status to its style; unknown values are neutral.
func StyleFor(s model.Status) Style {
	if style, ok := statusStyles[s]; ok {
		return style
	}
	return StyleNeutral
}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(raw string) (model.Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range model.AllStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrMalformedInput, raw)
}

// forwardRank orders the non-absorbing statuses; Reject and Close have no rank.
var forwardRank = map[model.Status]int{
	model.StatusDraft:       0,
	model.StatusChecked:     1,
	model.StatusAcknowledge: 2,
	model.StatusApproved:    3,
	model.StatusReceived:    4,
}

// IsTerminal reports whether s is an absorbing state.
func IsTerminal(s model.Status) bool {
	return s == model.StatusReject || s == model.StatusClose
}
