package ledger

import (
	"fmt"
	"strings"

	"approval-ledger/internal/model"
)

// Column names one exported field.
type Column string

const (
	ColumnID             Column = "id"
	ColumnPRNo           Column = "purchaseRequestNo"
	ColumnDocType        Column = "docType"
	ColumnRequester      Column = "requesterName"
	ColumnDepartment     Column = "departmentName"
	ColumnSubmissionDate Column = "submissionDate"
	ColumnRequiredDate   Column = "requiredDate"
	ColumnPONumber       Column = "poNumber"
	ColumnStatus         Column = "status"
	ColumnReceivedDate   Column = "receivedDate"
	ColumnGRDate         Column = "grDate"
	ColumnTotal          Column = "total"
)

var columnLabels = map[Column]string{
	ColumnID:             "ID",
	ColumnPRNo:           "PR No",
	ColumnDocType:        "Type",
	ColumnRequester:      "Requester",
	ColumnDepartment:     "Department",
	ColumnSubmissionDate: "Submission Date",
	ColumnRequiredDate:   "Required Date",
	ColumnPONumber:       "PO Number",
	ColumnStatus:         "Status",
	ColumnReceivedDate:   "Received Date",
	ColumnGRDate:         "GR Date",
	ColumnTotal:          "Total",
}

// Label is the human readable header of the column.
func (c Column) Label() string {
	return columnLabels[c]
}

// ParseColumns resolves a comma separated list of column names.
func ParseColumns(raw string) ([]Column, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var cols []Column
	for _, part := range strings.Split(raw, ",") {
		col := Column(strings.TrimSpace(part))
		if _, ok := columnLabels[col]; !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrMalformedInput, part)
		}
		cols = append(cols, col)
	}
	return cols, nil
}

var baseColumns = []Column{
	ColumnID,
	ColumnPRNo,
	ColumnRequester,
	ColumnDepartment,
	ColumnSubmissionDate,
	ColumnRequiredDate,
	ColumnPONumber,
	ColumnStatus,
}

// DefaultColumns is the fixed column set of a dashboard. The receive
// dashboard adds the receipt dates as trailing columns.
func DefaultColumns(stage Stage) []Column {
	cols := append([]Column(nil), baseColumns...)
	if stage == StageReceive {
		cols = append(cols, ColumnReceivedDate, ColumnGRDate)
	}
	return cols
}

// Projection is a tabular view ready for a spreadsheet or PDF writer.
type Projection struct {
	Columns []Column   `json:"columns"`
	Header  []string   `json:"header"`
	Rows    [][]string `json:"rows"`
}

// ExportProjection renders docs, in the given order, into rows of string cells.
func ExportProjection(docs []model.Document, columns []Column) (Projection, error) {
	header := make([]string, len(columns))
	for i, col := range columns {
		label, ok := columnLabels[col]
		if !ok {
			return Projection{}, fmt.Errorf("%w: unknown column %q", ErrMalformedInput, col)
		}
		header[i] = label
	}

	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = cellValue(d, col)
		}
		rows = append(rows, row)
	}
	return Projection{Columns: columns, Header: header, Rows: rows}, nil
}

func cellValue(d model.Document, col Column) string {
	switch col {
	case ColumnID:
		return d.ID
	case ColumnPRNo:
		return d.PurchaseRequestNo
	case ColumnDocType:
		return d.DocType
	case ColumnRequester:
		return d.RequesterName
	case ColumnDepartment:
		return d.DepartmentName
	case ColumnSubmissionDate:
		return d.SubmissionDate.String()
	case ColumnRequiredDate:
		return d.RequiredDate.String()
	case ColumnPONumber:
		if d.PONumber != nil {
			return *d.PONumber
		}
	case ColumnStatus:
		return string(d.Status)
	case ColumnReceivedDate:
		if d.ReceivedDate != nil {
			return d.ReceivedDate.String()
		}
	case ColumnGRDate:
		if d.GRDate != nil {
			return d.GRDate.String()
		}
	case ColumnTotal:
		return d.Total().StringFixed(2)
	}
	return ""
}
