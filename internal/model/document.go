package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status is the workflow state of a document.
type Status string

const (
	StatusDraft       Status = "Draft"
	StatusChecked     Status = "Checked"
	StatusAcknowledge Status = "Acknowledge"
	StatusApproved    Status = "Approved"
	StatusReceived    Status = "Received"
	StatusReject      Status = "Reject"
	StatusClose       Status = "Close"
)

// AllStatuses lists every status in forward order, terminal states last.
var AllStatuses = []Status{
	StatusDraft,
	StatusChecked,
	StatusAcknowledge,
	StatusApproved,
	StatusReceived,
	StatusReject,
	StatusClose,
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DocumentType enum constants
const (
	DocTypePurchaseRequest = "PURCHASE_REQUEST"
	DocTypeReimbursement   = "REIMBURSEMENT"
	DocTypeCashAdvance     = "CASH_ADVANCE"
	DocTypeSettlement      = "SETTLEMENT"
)

// ValidDocType reports whether t is a known document type.
func ValidDocType(t string) bool {
	switch t {
	case DocTypePurchaseRequest, DocTypeReimbursement, DocTypeCashAdvance, DocTypeSettlement:
		return true
	}
	return false
}

// LineItem is one item or service row of a request
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit,omitempty"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// Amount is quantity times unit price.
func (i LineItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice)
}

// Document is one purchase or expense request moving through approval.
// Seq records insertion order; recent-first views sort on it, never on dates.
type Document struct {
	ID                string                        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Seq               int64                         `gorm:"not null;index" json:"seq"`
	DocType           string                        `gorm:"type:varchar(30);not null;default:'PURCHASE_REQUEST'" json:"docType"`
	PurchaseRequestNo string                        `gorm:"type:varchar(50);index" json:"purchaseRequestNo"`
	RequesterName     string                        `gorm:"type:varchar(255)" json:"requesterName"`
	RequesterEmail    string                        `gorm:"type:varchar(255)" json:"requesterEmail,omitempty"`
	DepartmentName    string                        `gorm:"type:varchar(255)" json:"departmentName"`
	SubmissionDate    Date                          `json:"submissionDate"`
	RequiredDate      Date                          `json:"requiredDate"`
	PONumber          *string                       `gorm:"column:po_number;type:varchar(50)" json:"poNumber"`
	Status            Status                        `gorm:"type:varchar(20);not null;default:'Draft';index" json:"status"`
	ReceivedDate      *Date                         `json:"receivedDate"`
	GRDate            *Date                         `gorm:"column:gr_date" json:"grDate"`
	CheckedBy         string                        `gorm:"type:varchar(255)" json:"checkedBy,omitempty"`
	AcknowledgedBy    string                        `gorm:"type:varchar(255)" json:"acknowledgedBy,omitempty"`
	ApprovedBy        string                        `gorm:"type:varchar(255)" json:"approvedBy,omitempty"`
	ReceivedBy        string                        `gorm:"type:varchar(255)" json:"receivedBy,omitempty"`
	Items             datatypes.JSONSlice[LineItem] `gorm:"type:jsonb" json:"items"`
	Remarks           string                        `gorm:"type:text" json:"remarks,omitempty"`
	Version           int64                         `gorm:"not null;default:1" json:"version"`
	UpdatedAt         time.Time                     `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

// Total sums the line item amounts.
func (d Document) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range d.Items {
		total = total.Add(item.Amount())
	}
	return total
}

// Clone returns a copy that shares no pointers with d.
func (d Document) Clone() Document {
	out := d
	if d.PONumber != nil {
		po := *d.PONumber
		out.PONumber = &po
	}
	if d.ReceivedDate != nil {
		rd := *d.ReceivedDate
		out.ReceivedDate = &rd
	}
	if d.GRDate != nil {
		gr := *d.GRDate
		out.GRDate = &gr
	}
	if d.Items != nil {
		out.Items = append(datatypes.JSONSlice[LineItem](nil), d.Items...)
	}
	return out
}
