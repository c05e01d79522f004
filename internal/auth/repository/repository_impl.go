package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/visadesk/internal/auth/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return r.findOne(db.WithContext(ctx).Where("username = ?", username))
}

func (r *repo) findOne(stmt *gorm.DB) (*domain.User, error) {
	var user domain.User
	err := stmt.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.User, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.User{})
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		stmt = stmt.Where("username LIKE ? OR name LIKE ?", like, like)
	}
	if filter.RoleCode != "" {
		stmt = stmt.Where("role_code = ?", filter.RoleCode)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	users := []domain.User{}
	stmt = stmt.Order("created_at desc, id desc").Offset(filter.Offset)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(values).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{}).Error
}
