package ledger

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"approval-ledger/internal/model"
)

// PrintDateLayout is the date format of the printable request form.
const PrintDateLayout = "02 Jan 2006"

// PrintParams flattens a document into the query parameters consumed by the
// printable form: approver names, formatted dates, the item rows as JSON and
// one approval flag per stage.
func PrintParams(d model.Document) (url.Values, error) {
	items := d.Items
	if items == nil {
		items = []model.LineItem{}
	}
	encodedItems, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	v := url.Values{}
	v.Set("id", d.ID)
	v.Set("docType", d.DocType)
	v.Set("prNo", d.PurchaseRequestNo)
	v.Set("requester", d.RequesterName)
	v.Set("department", d.DepartmentName)
	v.Set("submissionDate", printDate(&d.SubmissionDate))
	v.Set("requiredDate", printDate(&d.RequiredDate))
	v.Set("receivedDate", printDate(d.ReceivedDate))
	v.Set("grDate", printDate(d.GRDate))
	if d.PONumber != nil {
		v.Set("poNumber", *d.PONumber)
	} else {
		v.Set("poNumber", "")
	}
	v.Set("status", string(d.Status))
	v.Set("checkedBy", d.CheckedBy)
	v.Set("acknowledgedBy", d.AcknowledgedBy)
	v.Set("approvedBy", d.ApprovedBy)
	v.Set("receivedBy", d.ReceivedBy)
	v.Set("items", string(encodedItems))
	v.Set("total", d.Total().StringFixed(2))
	v.Set("remarks", d.Remarks)

	for key, st := range map[string]model.Status{
		"isChecked":      model.StatusChecked,
		"isAcknowledged": model.StatusAcknowledge,
		"isApproved":     model.StatusApproved,
		"isReceived":     model.StatusReceived,
	} {
		v.Set(key, strconv.FormatBool(reached(d, st)))
	}
	v.Set("isRejected", strconv.FormatBool(d.Status == model.StatusReject))
	v.Set("isClosed", strconv.FormatBool(d.Status == model.StatusClose))
	return v, nil
}

// reached reports whether the document has passed through stage st. For
// absorbing states the recorded stage actors are the only evidence left.
func reached(d model.Document, st model.Status) bool {
	if rank, ok := forwardRank[d.Status]; ok {
		return rank >= forwardRank[st]
	}
	switch st {
	case model.StatusChecked:
		return d.CheckedBy != ""
	case model.StatusAcknowledge:
		return d.AcknowledgedBy != ""
	case model.StatusApproved:
		return d.ApprovedBy != ""
	case model.StatusReceived:
		return d.ReceivedDate != nil
	}
	return false
}

func printDate(d *model.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(PrintDateLayout)
}
