package repository

import (
	"context"
	"errors"
	"fmt"

	"approval-ledger/internal/ledger"
	"approval-ledger/internal/model"

	"gorm.io/gorm"
)

type documentRepository struct {
	db *gorm.DB
	tx TransactionManager
}

// NewDocumentRepository returns the PostgreSQL Document Store. The ledger
// saves through SaveChanges, so each row is written only when it still holds
// the version the cycle loaded.
func NewDocumentRepository(db *gorm.DB, tx TransactionManager) ledger.ChangeStore {
	return &documentRepository{db: db, tx: tx}
}

func (r *documentRepository) Load(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := GetDB(ctx, r.db).Order("seq asc").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	return docs, nil
}

// SaveChanges applies changes in one transaction. Updates and deletes are
// filtered on the loaded version; a row that matches nothing rolls the whole
// set back with ErrVersionConflict.
func (r *documentRepository) SaveChanges(ctx context.Context, changes []ledger.Change) error {
	return r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		db := GetDB(txCtx, r.db)
		for _, ch := range changes {
			if err := r.apply(db, ch); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *documentRepository) apply(db *gorm.DB, ch ledger.Change) error {
	var res *gorm.DB
	switch ch.Op {
	case ledger.ChangeInsert:
		doc := ch.Document
		if err := db.Create(&doc).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("document %s already exists: %w", ch.ID, ledger.ErrVersionConflict)
			}
			return fmt.Errorf("insert document %s: %w", ch.ID, err)
		}
		return nil
	case ledger.ChangeUpdate:
		doc := ch.Document
		res = db.Model(&model.Document{}).
			Where("id = ? AND version = ?", ch.ID, ch.BaseVersion).
			Select("*").Omit("id").
			Updates(&doc)
	case ledger.ChangeDelete:
		res = db.Where("id = ? AND version = ?", ch.ID, ch.BaseVersion).Delete(&model.Document{})
	default:
		return fmt.Errorf("document %s: unknown change %s", ch.ID, ch.Op)
	}

	if res.Error != nil {
		return fmt.Errorf("%s document %s: %w", ch.Op, ch.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("document %s changed since version %d: %w", ch.ID, ch.BaseVersion, ledger.ErrVersionConflict)
	}
	return nil
}

// Save writes docs as the whole collection, without a loaded baseline. It is
// computed as a change set against the rows stored now: records missing from
// docs are deleted, and a record older than its stored row is refused with
// ErrVersionConflict.
func (r *documentRepository) Save(ctx context.Context, docs []model.Document) error {
	return r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := r.Load(txCtx)
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
		return r.SaveChanges(txCtx, ledger.Diff(current, docs))
	})
}
