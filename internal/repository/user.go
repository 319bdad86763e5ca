package repository

import (
	"context"
	"errors"
	"time"

	"nerdtalk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// userRepository implements UserRepository
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Upsert(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Take(&existing, "external_id = ?", user.ExternalID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if user.ID == "" {
				user.ID = uuid.NewString()
			}
			return tx.Create(user).Error
		case err != nil:
			return err
		}

		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
		user.UpdatedAt = time.Now().UTC()
		return tx.Model(&existing).Updates(map[string]interface{}{
			"username":   user.Username,
			"name":       user.Name,
			"image":      user.Image,
			"bio":        user.Bio,
			"onboarded":  user.Onboarded,
			"updated_at": user.UpdatedAt,
		}).Error
	})
	return translate(err, "User", user.ExternalID)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Take(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Take(&user, "external_id = ?", externalID).Error; err != nil {
		return nil, translate(err, "User", externalID)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := []*models.User{}
	for _, batch := range batches(ids, inBatchSize) {
		var found []*models.User
		if err := r.db.WithContext(ctx).Where("id IN ?", batch).Find(&found).Error; err != nil {
			return nil, translate(err, "User", batch)
		}
		users = append(users, found...)
	}
	return users, nil
}
