package repository

import (
	"context"
	"time"

	"nerdtalk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Insert(ctx context.Context, in models.NewPost) (*models.Post, error) {
	post := &models.Post{
		ID:          uuid.NewString(),
		Text:        in.Text,
		AuthorID:    in.AuthorID,
		CommunityID: in.CommunityID,
		ParentID:    in.ParentID,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		Children:    []string{},
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if post.ParentID != nil {
			// Locking the parent serializes reply log appends per parent.
			q := tx.Select("id")
			if tx.Dialector.Name() == "postgres" {
				q = q.Clauses(clause.Locking{Strength: "UPDATE"})
			}
			if err := q.Take(&models.Post{}, "id = ?", *post.ParentID).Error; err != nil {
				return translate(err, "Post", *post.ParentID)
			}
		}

		if err := tx.Create(post).Error; err != nil {
			return err
		}

		if post.ParentID == nil {
			return nil
		}
		return tx.Create(&models.PostChild{
			ParentID:  *post.ParentID,
			ChildID:   post.ID,
			CreatedAt: post.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, translate(err, "Post", post.ID)
	}
	return post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	db := r.db.WithContext(ctx)
	if err := db.Take(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err, "Post", id)
	}
	if err := attachChildren(db, []*models.Post{&post}); err != nil {
		return nil, translate(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}

	db := r.db.WithContext(ctx)
	found := make(map[string]*models.Post, len(ids))
	for _, batch := range batches(ids, inBatchSize) {
		var posts []*models.Post
		if err := db.Where("id IN ?", batch).Find(&posts).Error; err != nil {
			return nil, translate(err, "Post", batch)
		}
		for _, p := range posts {
			found[p.ID] = p
		}
	}

	ordered := make([]*models.Post, 0, len(found))
	seen := make(map[string]struct{}, len(found))
	for _, id := range ids {
		p, ok := found[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ordered = append(ordered, p)
	}

	if err := attachChildren(db, ordered); err != nil {
		return nil, translate(err, "Post", ids)
	}
	return ordered, nil
}

func (r *postRepository) ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Post, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Post{}).Where("parent_id IS NULL").Count(&total).Error; err != nil {
		return nil, false, translate(err, "Post", "top-level")
	}

	var posts []*models.Post
	err := db.Where("parent_id IS NULL").
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	if err != nil {
		return nil, false, translate(err, "Post", "top-level")
	}

	if err := attachChildren(db, posts); err != nil {
		return nil, false, translate(err, "Post", "top-level")
	}
	return posts, total > int64(page)*int64(pageSize), nil
}

func (r *postRepository) ListDirectChildren(ctx context.Context, parentID string) ([]*models.Post, error) {
	var posts []*models.Post
	db := r.db.WithContext(ctx)
	// Replies follow the reply log's commit order, not their timestamps.
	err := db.Model(&models.Post{}).
		Select("posts.*").
		Joins("JOIN post_children ON post_children.child_id = posts.id AND post_children.parent_id = posts.parent_id").
		Where("posts.parent_id = ?", parentID).
		Order("post_children.seq ASC").
		Find(&posts).Error
	if err != nil {
		return nil, translate(err, "Post", parentID)
	}
	if err := attachChildren(db, posts); err != nil {
		return nil, translate(err, "Post", parentID)
	}
	return posts, nil
}

func (r *postRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, batch := range batches(ids, inBatchSize) {
			if err := tx.Where("parent_id IN ?", batch).Delete(&models.PostChild{}).Error; err != nil {
				return err
			}
			res := tx.Where("id IN ?", batch).Delete(&models.Post{})
			if res.Error != nil {
				return res.Error
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, translate(err, "Post", ids)
	}
	return deleted, nil
}

// attachChildren loads the reply log of every post in posts.
func attachChildren(db *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	byID := make(map[string]*models.Post, len(posts))
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		p.Children = []string{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	for _, batch := range batches(ids, inBatchSize) {
		var rows []models.PostChild
		if err := db.Where("parent_id IN ?", batch).Order("seq ASC").Find(&rows).Error; err != nil {
			return err
		}
		for _, row := range rows {
			if p, ok := byID[row.ParentID]; ok {
				p.Children = append(p.Children, row.ChildID)
			}
		}
	}
	return nil
}
