package repository

import (
	"context"
	"fmt"
	"time"

	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultDocumentCollection is the Mongo collection holding documents.
const DefaultDocumentCollection = "documents"

type mongoLineItem struct {
	Description string `bson:"description"`
	Quantity    string `bson:"quantity"`
	Unit        string `bson:"unit,omitempty"`
	UnitPrice   string `bson:"unitPrice"`
}

type mongoDocument struct {
	ID                string          `bson:"_id"`
	Seq               int64           `bson:"seq"`
	DocType           string          `bson:"docType"`
	PurchaseRequestNo string          `bson:"purchaseRequestNo"`
	RequesterName     string          `bson:"requesterName"`
	RequesterEmail    string          `bson:"requesterEmail,omitempty"`
	DepartmentName    string          `bson:"departmentName"`
	SubmissionDate    *time.Time      `bson:"submissionDate,omitempty"`
	RequiredDate      *time.Time      `bson:"requiredDate,omitempty"`
	PONumber          *string         `bson:"poNumber"`
	Status            string          `bson:"status"`
	ReceivedDate      *time.Time      `bson:"receivedDate"`
	GRDate            *time.Time      `bson:"grDate"`
	CheckedBy         string          `bson:"checkedBy,omitempty"`
	AcknowledgedBy    string          `bson:"acknowledgedBy,omitempty"`
	ApprovedBy        string          `bson:"approvedBy,omitempty"`
	ReceivedBy        string          `bson:"receivedBy,omitempty"`
	Items             []mongoLineItem `bson:"items"`
	Remarks           string          `bson:"remarks,omitempty"`
	Version           int64           `bson:"version"`
	UpdatedAt         time.Time       `bson:"updatedAt"`
}

// DocumentMongoStore persists documents one per Mongo document. Writes are
// filtered on the version the ledger loaded, so a stale writer matches nothing.
type DocumentMongoStore struct {
	coll *mongo.Collection
}

func NewDocumentMongoStore(db *mongo.Database, collection string) *DocumentMongoStore {
	if collection == "" {
		collection = DefaultDocumentCollection
	}
	return &DocumentMongoStore{coll: db.Collection(collection)}
}

func (s *DocumentMongoStore) Load(ctx context.Context) ([]model.Document, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	var rows []mongoDocument
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode documents: %v: %w", err, ledger.ErrCorruptStore)
	}

	docs := make([]model.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := row.toModel()
		if err != nil {
			return nil, fmt.Errorf("document %s: %v: %w", row.ID, err, ledger.ErrCorruptStore)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveChanges applies changes in order. There is no multi-document
// transaction: a conflict stops the set, and earlier changes stay written.
func (s *DocumentMongoStore) SaveChanges(ctx context.Context, changes []ledger.Change) error {
	for _, ch := range changes {
		var matched int64
		switch ch.Op {
		case ledger.ChangeInsert:
			if _, err := s.coll.InsertOne(ctx, fromModel(ch.Document)); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return fmt.Errorf("document %s already exists: %w", ch.ID, ledger.ErrVersionConflict)
				}
				return fmt.Errorf("insert document %s: %w", ch.ID, err)
			}
			continue
		case ledger.ChangeUpdate:
			res, err := s.coll.ReplaceOne(ctx, versionFilter(ch), fromModel(ch.Document))
			if err != nil {
				return fmt.Errorf("replace document %s: %w", ch.ID, err)
			}
			matched = res.MatchedCount
		case ledger.ChangeDelete:
			res, err := s.coll.DeleteOne(ctx, versionFilter(ch))
			if err != nil {
				return fmt.Errorf("delete document %s: %w", ch.ID, err)
			}
			matched = res.DeletedCount
		default:
			return fmt.Errorf("document %s: unknown change %s", ch.ID, ch.Op)
		}
		if matched == 0 {
			return fmt.Errorf("document %s changed since version %d: %w", ch.ID, ch.BaseVersion, ledger.ErrVersionConflict)
		}
	}
	return nil
}

// Save writes docs as the whole collection, diffed against what is stored
// now. A record older than its stored copy is refused with ErrVersionConflict.
func (s *DocumentMongoStore) Save(ctx context.Context, docs []model.Document) error {
	current, err := s.Load(ctx)
	if err != nil {
		return err
	}
	stored := make(map[string]int64, len(current))
	for _, d := range current {
		stored[d.ID] = d.Version
	}
	for _, d := range docs {
		if v, ok := stored[d.ID]; ok && d.Version < v {
			return fmt.Errorf("document %s is at version %d, stored %d: %w", d.ID, d.Version, v, ledger.ErrVersionConflict)
		}
	}
	return s.SaveChanges(ctx, ledger.Diff(current, docs))
}

func versionFilter(ch ledger.Change) bson.M {
	return bson.M{"_id": ch.ID, "version": ch.BaseVersion}
}

func fromModel(d model.Document) mongoDocument {
	row := mongoDocument{
		ID:                d.ID,
		Seq:               d.Seq,
		DocType:           d.DocType,
		PurchaseRequestNo: d.PurchaseRequestNo,
		RequesterName:     d.RequesterName,
		RequesterEmail:    d.RequesterEmail,
		DepartmentName:    d.DepartmentName,
		SubmissionDate:    dateToTime(&d.SubmissionDate),
		RequiredDate:      dateToTime(&d.RequiredDate),
		PONumber:          d.PONumber,
		Status:            string(d.Status),
		ReceivedDate:      dateToTime(d.ReceivedDate),
		GRDate:            dateToTime(d.GRDate),
		CheckedBy:         d.CheckedBy,
		AcknowledgedBy:    d.AcknowledgedBy,
		ApprovedBy:        d.ApprovedBy,
		ReceivedBy:        d.ReceivedBy,
		Remarks:           d.Remarks,
		Version:           d.Version,
		UpdatedAt:         d.UpdatedAt,
	}
	row.Items = make([]mongoLineItem, 0, len(d.Items))
	for _, item := range d.Items {
		row.Items = append(row.Items, mongoLineItem{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			Unit:        item.Unit,
			UnitPrice:   item.UnitPrice.String(),
		})
	}
	return row
}

func (r mongoDocument) toModel() (model.Document, error) {
	doc := model.Document{
		ID:                r.ID,
		Seq:               r.Seq,
		DocType:           r.DocType,
		PurchaseRequestNo: r.PurchaseRequestNo,
		RequesterName:     r.RequesterName,
		RequesterEmail:    r.RequesterEmail,
		DepartmentName:    r.DepartmentName,
		PONumber:          r.PONumber,
		Status:            model.Status(r.Status),
		CheckedBy:         r.CheckedBy,
		AcknowledgedBy:    r.AcknowledgedBy,
		ApprovedBy:        r.ApprovedBy,
		ReceivedBy:        r.ReceivedBy,
		Remarks:           r.Remarks,
		Version:           r.Version,
		UpdatedAt:         r.UpdatedAt,
	}
	if r.SubmissionDate != nil {
		doc.SubmissionDate = model.NewDate(*r.SubmissionDate)
	}
	if r.RequiredDate != nil {
		doc.RequiredDate = model.NewDate(*r.RequiredDate)
	}
	doc.ReceivedDate = timeToDate(r.ReceivedDate)
	doc.GRDate = timeToDate(r.GRDate)

	for i, item := range r.Items {
		qty, err := decimal.NewFromString(item.Quantity)
		if err != nil {
			return model.Document{}, fmt.Errorf("item %d quantity: %w", i+1, err)
		}
		price, err := decimal.NewFromString(item.UnitPrice)
		if err != nil {
			return model.Document{}, fmt.Errorf("item %d unit price: %w", i+1, err)
		}
		doc.Items = append(doc.Items, model.LineItem{
			Description: item.Description,
			Quantity:    qty,
			Unit:        item.Unit,
			UnitPrice:   price,
		})
	}
	return doc, nil
}

func dateToTime(d *model.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func timeToDate(t *time.Time) *model.Date {
	if t == nil {
		return nil
	}
	d := model.NewDate(*t)
	return &d
}
