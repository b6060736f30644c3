package repository

import (
	"context"
	"time"

	"relay-chat/internal/domain/user"
	relay_errors "relay-chat/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresUserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Upsert(ctx context.Context, u *user.User) (user.User, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(u)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return user.User{}, relay_errors.ErrUsernameTaken
		}
		return user.User{}, relay_errors.Dependency(res.Error)
	}
	return r.GetByID(ctx, u.ID)
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return user.User{}, notFound(err, relay_errors.ErrUserNotFound)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return user.User{}, notFound(err, relay_errors.ErrUserNotFound)
	}
	return u, nil
}

func (r *PostgresUserRepository) Onboard(ctx context.Context, id, username string, avatar int) (user.User, error) {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ? AND is_on_boarded = ?", id, false).
		Updates(map[string]interface{}{
			"username":      username,
			"avatar":        avatar,
			"is_on_boarded": true,
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return user.User{}, relay_errors.ErrUsernameTaken
		}
		return user.User{}, relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return user.User{}, err
		}
		if existing.IsOnBoarded {
			return user.User{}, relay_errors.ErrAlreadyOnboarded
		}
		return user.User{}, relay_errors.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, id string, avatar int) (user.User, error) {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", id).
		Update("avatar", avatar)
	if res.Error != nil {
		return user.User{}, relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return user.User{}, relay_errors.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresUserRepository) SetOnline(ctx context.Context, id string, online bool) error {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", id).
		UpdateColumn("is_online", online)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrUserNotFound
	}
	return nil
}

func (r *PostgresUserRepository) TouchLastPing(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&user.User{}).
		Where("id = ?", id).
		UpdateColumn("last_ping", at)
	if res.Error != nil {
		return relay_errors.Dependency(res.Error)
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrUserNotFound
	}
	return nil
}
