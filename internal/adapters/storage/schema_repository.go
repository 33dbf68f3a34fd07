package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type kindSchemaModel struct {
	Kind       string    `gorm:"column:kind;primaryKey"`
	SchemaJSON string    `gorm:"column:schema_json;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (kindSchemaModel) TableName() string {
	return "kind_schemas"
}

type SchemaRepository struct {
	db *gormdb.DB
}

func NewSchemaRepository(db *gormdb.DB) *SchemaRepository {
	return &SchemaRepository{db: db}
}

func (r *SchemaRepository) Upsert(ctx context.Context, schema domain.KindSchema) (domain.KindSchema, error) {
	now := time.Now().UTC()
	model := kindSchemaModel{
		Kind:       string(schema.Kind),
		SchemaJSON: string(schema.Schema),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var out domain.KindSchema
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"schema_json", "updated_at"}),
		}).Create(&model).Error
		if err != nil {
			return fmt.Errorf("upsert schema: %w", err)
		}

		var saved kindSchemaModel
		if err := tx.Where("kind = ?", model.Kind).Take(&saved).Error; err != nil {
			return fmt.Errorf("load upserted schema: %w", err)
		}
		out = toSchemaDomain(saved)
		return nil
	})
	if err != nil {
		return domain.KindSchema{}, err
	}
	return out, nil
}

func (r *SchemaRepository) Get(ctx context.Context, kind domain.Kind) (domain.KindSchema, error) {
	var model kindSchemaModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("kind = ?", string(kind)).Take(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.KindSchema{}, domain.ErrNotFound
		}
		return domain.KindSchema{}, fmt.Errorf("get schema: %w", err)
	}
	return toSchemaDomain(model), nil
}

func (r *SchemaRepository) Delete(ctx context.Context, kind domain.Kind) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		res := tx.Where("kind = ?", string(kind)).Delete(&kindSchemaModel{})
		if res.Error != nil {
			return fmt.Errorf("delete schema: %w", res.Error)
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func toSchemaDomain(model kindSchemaModel) domain.KindSchema {
	return domain.KindSchema{
		Kind:      domain.Kind(model.Kind),
		Schema:    json.RawMessage(model.SchemaJSON),
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
