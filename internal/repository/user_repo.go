package repository

import (
	"context"

	"approval-ledger/internal/model"

	"gorm.io/gorm"
)

// UserRepository stores the dashboard accounts that sign in and own stages.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	// GetByEmail matches case-insensitively; logins are by e-mail.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	UpdatePassword(ctx context.Context, id, hash string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns the postgres account store. Calls made inside
// TransactionManager.RunInTx join that transaction.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

// first returns the single account matching query, or gorm.ErrRecordNotFound.
func (r *userRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "LOWER(email) = LOWER(?)", email)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var total int64
	err := GetDB(ctx, r.db).Model(&model.User{}).Where("role = ?", role).Count(&total).Error
	return total, err
}

// UpdatePassword replaces the stored hash; other columns are untouched.
func (r *userRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res := GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("password", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
