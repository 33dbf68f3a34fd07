package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/adapters/storage/gormdb"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userModel struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Username  string    `gorm:"column:username;not null"`
	FullName  string    `gorm:"column:full_name;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (userModel) TableName() string {
	return "users"
}

func (m userModel) toDomain() domain.Signer {
	return domain.Signer{ID: m.ID, Username: m.Username, FullName: m.FullName, Active: m.Active}
}

type apiKeyModel struct {
	TokenHash string    `gorm:"column:token_hash;primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null"`
	Name      string    `gorm:"column:name;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (apiKeyModel) TableName() string {
	return "api_keys"
}

// UserRepository is the user directory and API key store.
type UserRepository struct {
	db *gormdb.DB
}

func NewUserRepository(db *gormdb.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindUser(ctx context.Context, id int64) (domain.Signer, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.Signer, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *UserRepository) findOne(ctx context.Context, cond string, arg any) (domain.Signer, error) {
	var model userModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where(cond, arg).Take(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Signer{}, domain.ErrNotFound
		}
		return domain.Signer{}, fmt.Errorf("find user: %w", err)
	}
	return model.toDomain(), nil
}

// CreateWithKey creates a user, its first API key and the audit event for
// both in one transaction. The audit event's record id is set to the new user.
func (r *UserRepository) CreateWithKey(ctx context.Context, user domain.Signer, key domain.APIKey, audit domain.AuditEvent) (domain.Signer, error) {
	var saved userModel
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		saved = userModel{
			Username:  user.Username,
			FullName:  user.FullName,
			Active:    true,
			CreatedAt: audit.CreatedAt.UTC(),
		}
		if err := tx.Create(&saved).Error; err != nil {
			if isUniqueViolation(err) {
				return domain.NewValidationError("username", "already taken")
			}
			return fmt.Errorf("insert user: %w", err)
		}

		keyRow := apiKeyModel{
			TokenHash: key.TokenHash,
			UserID:    saved.ID,
			Name:      key.Name,
			Active:    true,
			CreatedAt: saved.CreatedAt,
		}
		if err := tx.Create(&keyRow).Error; err != nil {
			return fmt.Errorf("insert api key: %w", err)
		}

		id := saved.ID
		audit.RecordID = &id
		_, err := appendAuditTx(tx.DB, audit)
		return err
	})
	if err != nil {
		return domain.Signer{}, classifyTxError("create user", err)
	}
	return saved.toDomain(), nil
}

func (r *UserRepository) FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	var model apiKeyModel
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("token_hash = ?", tokenHash).Take(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.APIKey{}, domain.ErrNotFound
		}
		return domain.APIKey{}, fmt.Errorf("find api key: %w", err)
	}

	return domain.APIKey{
		TokenHash: model.TokenHash,
		UserID:    model.UserID,
		Name:      model.Name,
		Active:    model.Active,
		CreatedAt: model.CreatedAt,
	}, nil
}

func (r *UserRepository) Upsert(ctx context.Context, key domain.APIKey) error {
	model := apiKeyModel{
		TokenHash: key.TokenHash,
		UserID:    key.UserID,
		Name:      key.Name,
		Active:    key.Active,
		CreatedAt: key.CreatedAt,
	}

	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "name", "active"}),
		}).Create(&model).Error
	})
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}
