package repository

import (
	"context"
	"time"

	"nerdtalk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// communityRepository implements CommunityRepository
type communityRepository struct {
	db *gorm.DB
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db *gorm.DB) CommunityRepository {
	return &communityRepository{db: db}
}

func (r *communityRepository) Create(ctx context.Context, community *models.Community) error {
	if community.ID == "" {
		community.ID = uuid.NewString()
	}
	return translate(r.db.WithContext(ctx).Create(community).Error, "Community", community.ExternalID)
}

func (r *communityRepository) Update(ctx context.Context, community *models.Community) error {
	community.UpdatedAt = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&models.Community{}).
		Where("id = ?", community.ID).
		Updates(map[string]interface{}{
			"name":       community.Name,
			"slug":       community.Slug,
			"image":      community.Image,
			"bio":        community.Bio,
			"updated_at": community.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error, "Community", community.ID)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Community", community.ID)
	}
	return nil
}

func (r *communityRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("community_id = ?", id).Delete(&models.CommunityMembership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", id).Delete(&models.CommunityPost{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Community{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Community", id)
		}
		return nil
	})
	return translate(err, "Community", id)
}

func (r *communityRepository) GetByID(ctx context.Context, id string) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).Take(&community, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Community", id)
	}
	return &community, nil
}

func (r *communityRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Community, error) {
	var community models.Community
	if err := r.db.WithContext(ctx).Take(&community, "external_id = ?", externalID).Error; err != nil {
		return nil, translate(err, "Community", externalID)
	}
	return &community, nil
}

func (r *communityRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Community, error) {
	communities := []*models.Community{}
	for _, batch := range batches(ids, inBatchSize) {
		var found []*models.Community
		if err := r.db.WithContext(ctx).Where("id IN ?", batch).Find(&found).Error; err != nil {
			return nil, translate(err, "Community", batch)
		}
		communities = append(communities, found...)
	}
	return communities, nil
}

func (r *communityRepository) AddMember(ctx context.Context, communityID, userID string, role models.MembershipRole) error {
	if role == "" {
		role = models.MembershipRoleMember
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Take(&models.Community{}, "id = ?", communityID).Error; err != nil {
			return translate(err, "Community", communityID)
		}
		if err := tx.Select("id").Take(&models.User{}, "id = ?", userID).Error; err != nil {
			return translate(err, "User", userID)
		}
		now := time.Now().UTC()
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "community_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
		}).Create(&models.CommunityMembership{
			CommunityID: communityID,
			UserID:      userID,
			Role:        role,
			CreatedAt:   now,
			UpdatedAt:   now,
		}).Error
	})
	return translate(err, "Community", communityID)
}

func (r *communityRepository) RemoveMember(ctx context.Context, communityID, userID string) error {
	err := r.db.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		Delete(&models.CommunityMembership{}).Error
	return translate(err, "Community", communityID)
}

func (r *communityRepository) ListMembers(ctx context.Context, communityID string) ([]*models.CommunityMembership, error) {
	members := []*models.CommunityMembership{}
	err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, translate(err, "Community", communityID)
	}
	return members, nil
}
