package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityStore writes entity rows together with their audit and outbox rows.
type EntityStore struct {
	db *gormdb.DB
}

func NewEntityStore(db *gormdb.DB) *EntityStore {
	return &EntityStore{db: db}
}

func (s *EntityStore) InsertWithAudit(ctx context.Context, m domain.Mutation) (domain.Entity, error) {
	spec, err := kindSpec(m.Entity.Kind)
	if err != nil {
		return domain.Entity{}, err
	}
	fields, err := json.Marshal(m.Entity.Fields)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("marshal fields: %w", err)
	}

	var result domain.Entity
	err = s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		at := m.At.UTC()
		row := entityModel{
			Fields:        datatypes.JSON(fields),
			Version:       1,
			IdentityToken: m.Entity.IdentityToken,
			CreatedAt:     at,
			ModifiedAt:    at,
			ModifiedBy:    m.Actor.Ptr(),
		}
		if err := tx.Table(spec.Table).Create(&row).Error; err != nil {
			return fmt.Errorf("insert %s: %w", spec.Table, err)
		}

		ent, err := row.toDomain(spec)
		if err != nil {
			return err
		}
		snap, err := snapshotJSON(ent)
		if err != nil {
			return err
		}
		ev := domain.NewMutationAudit(spec, domain.OpCreate, ent, m.Actor, m.Origin, at, snap)
		if _, err := appendAuditTx(tx.DB, ev); err != nil {
			return err
		}
		result = ent
		return nil
	})
	if err != nil {
		return domain.Entity{}, classifyTxError("insert "+spec.Table, err)
	}
	return result, nil
}

// ReplaceWithAudit overwrites every field of an existing row and bumps its
// version. A stored identity token is never replaced.
func (s *EntityStore) ReplaceWithAudit(ctx context.Context, m domain.Mutation) (domain.Entity, error) {
	spec, err := kindSpec(m.Entity.Kind)
	if err != nil {
		return domain.Entity{}, err
	}
	fields, err := json.Marshal(m.Entity.Fields)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("marshal fields: %w", err)
	}

	var result domain.Entity
	err = s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		current, err := loadForUpdate(tx, spec, m.Entity.ID)
		if err != nil {
			return err
		}

		at := m.At.UTC()
		token := current.IdentityToken
		if token == "" {
			token = m.Entity.IdentityToken
		}
		next := entityModel{
			ID:            current.ID,
			Fields:        datatypes.JSON(fields),
			Version:       current.Version + 1,
			IdentityToken: token,
			CreatedAt:     current.CreatedAt,
			ModifiedAt:    at,
			ModifiedBy:    m.Actor.Ptr(),
		}
		res := tx.Table(spec.Table).Where("id = ?", current.ID).Updates(map[string]any{
			"fields":         next.Fields,
			"version":        next.Version,
			"identity_token": next.IdentityToken,
			"modified_at":    next.ModifiedAt,
			"modified_by":    next.ModifiedBy,
		})
		if res.Error != nil {
			return fmt.Errorf("update %s: %w", spec.Table, res.Error)
		}
		if res.RowsAffected != 1 {
			return &domain.NotFoundError{Kind: spec.Kind, ID: current.ID}
		}

		ent, err := next.toDomain(spec)
		if err != nil {
			return err
		}
		snap, err := snapshotJSON(ent)
		if err != nil {
			return err
		}
		ev := domain.NewMutationAudit(spec, domain.OpUpdate, ent, m.Actor, m.Origin, at, snap)
		if _, err := appendAuditTx(tx.DB, ev); err != nil {
			return err
		}
		result = ent
		return nil
	})
	if err != nil {
		return domain.Entity{}, classifyTxError("update "+spec.Table, err)
	}
	return result, nil
}

// DeleteWithAudit removes the row and then records its last state in the
// audit log.
func (s *EntityStore) DeleteWithAudit(ctx context.Context, m domain.Mutation) error {
	spec, err := kindSpec(m.Entity.Kind)
	if err != nil {
		return err
	}

	err = s.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		current, err := loadForUpdate(tx, spec, m.Entity.ID)
		if err != nil {
			return err
		}
		before, err := current.toDomain(spec)
		if err != nil {
			return err
		}
		snap, err := snapshotJSON(before)
		if err != nil {
			return err
		}

		res := tx.Table(spec.Table).Where("id = ?", current.ID).Delete(&entityModel{})
		if res.Error != nil {
			return fmt.Errorf("delete %s: %w", spec.Table, res.Error)
		}
		if res.RowsAffected != 1 {
			return &domain.NotFoundError{Kind: spec.Kind, ID: current.ID}
		}

		ev := domain.NewMutationAudit(spec, domain.OpDelete, before, m.Actor, m.Origin, m.At.UTC(), snap)
		_, err = appendAuditTx(tx.DB, ev)
		return err
	})
	return classifyTxError("delete "+spec.Table, err)
}

func (s *EntityStore) Get(ctx context.Context, kind domain.Kind, id int64) (domain.Entity, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return domain.Entity{}, err
	}
	var row entityModel
	err = s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Table(spec.Table).Where("id = ?", id).Take(&row).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Entity{}, &domain.NotFoundError{Kind: kind, ID: id}
		}
		return domain.Entity{}, fmt.Errorf("get %s: %w", spec.Table, err)
	}
	return row.toDomain(spec)
}

func (s *EntityStore) List(ctx context.Context, kind domain.Kind, filter domain.EntityListFilter) ([]domain.Entity, error) {
	spec, err := kindSpec(kind)
	if err != nil {
		return nil, err
	}
	var rows []entityModel
	err = s.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		query := tx.Table(spec.Table)
		if filter.AfterID > 0 {
			query = query.Where("id > ?", filter.AfterID)
		}
		return query.Order("id ASC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", spec.Table, err)
	}

	result := make([]domain.Entity, 0, len(rows))
	for _, row := range rows {
		ent, err := row.toDomain(spec)
		if err != nil {
			return nil, err
		}
		result = append(result, ent)
	}
	return result, nil
}

func loadForUpdate(tx *gormdb.Tx, spec domain.KindSpec, id int64) (entityModel, error) {
	var row entityModel
	err := tx.ForUpdate().Table(spec.Table).Where("id = ?", id).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entityModel{}, &domain.NotFoundError{Kind: spec.Kind, ID: id}
		}
		return entityModel{}, fmt.Errorf("load %s %d: %w", spec.Table, id, err)
	}
	return row, nil
}
