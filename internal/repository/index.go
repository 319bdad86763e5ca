package repository

import (
	"context"
	"time"

	"nerdtalk/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// indexRepository keeps the post sets of users and communities in join tables.
type indexRepository struct {
	db *gorm.DB
}

// NewIndexRepository creates a new index repository
func NewIndexRepository(db *gorm.DB) IndexRepository {
	return &indexRepository{db: db}
}

func (r *indexRepository) RecordAuthorship(ctx context.Context, userID, postID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Take(&models.User{}, "id = ?", userID).Error; err != nil {
			return translate(err, "User", userID)
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.UserPost{
			UserID:    userID,
			PostID:    postID,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
	return translate(err, "User", userID)
}

func (r *indexRepository) RecordCommunityPost(ctx context.Context, communityID, postID string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").Take(&models.Community{}, "id = ?", communityID).Error; err != nil {
			return translate(err, "Community", communityID)
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.CommunityPost{
			CommunityID: communityID,
			PostID:      postID,
			CreatedAt:   time.Now().UTC(),
		}).Error
	})
	return translate(err, "Community", communityID)
}

func (r *indexRepository) Scrub(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, batch := range batches(postIDs, inBatchSize) {
			if err := tx.Where("post_id IN ?", batch).Delete(&models.UserPost{}).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", batch).Delete(&models.CommunityPost{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translate(err, "Post", postIDs)
}

func (r *indexRepository) ScrubOwners(ctx context.Context, postIDs, userIDs, communityIDs []string) error {
	if len(postIDs) == 0 || (len(userIDs) == 0 && len(communityIDs) == 0) {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, batch := range batches(postIDs, inBatchSize) {
			if len(userIDs) > 0 {
				if err := tx.Where("post_id IN ? AND user_id IN ?", batch, userIDs).
					Delete(&models.UserPost{}).Error; err != nil {
					return err
				}
			}
			if len(communityIDs) > 0 {
				if err := tx.Where("post_id IN ? AND community_id IN ?", batch, communityIDs).
					Delete(&models.CommunityPost{}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return translate(err, "Post", postIDs)
}

func (r *indexRepository) AuthorPostIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.UserPost{}).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, translate(err, "User", userID)
	}
	return ids, nil
}

func (r *indexRepository) CommunityPostIDs(ctx context.Context, communityID string) ([]string, error) {
	ids := []string{}
	err := r.db.WithContext(ctx).Model(&models.CommunityPost{}).
		Where("community_id = ?", communityID).
		Order("created_at DESC").
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, translate(err, "Community", communityID)
	}
	return ids, nil
}
