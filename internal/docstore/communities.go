package docstore

import (
	"context"
	"time"

	"nerdtalk/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type memberDoc struct {
	UserID    string                `bson:"userId"`
	Role      models.MembershipRole `bson:"role"`
	CreatedAt time.Time             `bson:"createdAt"`
	UpdatedAt time.Time             `bson:"updatedAt"`
}

type communityDoc struct {
	ID          string      `bson:"_id"`
	ExternalID  string      `bson:"id"`
	Name        string      `bson:"name"`
	Slug        string      `bson:"slug"`
	Image       string      `bson:"image"`
	Bio         string      `bson:"bio"`
	CreatedByID *string     `bson:"createdBy"`
	Posts       []string    `bson:"nerdtalks"`
	Members     []memberDoc `bson:"members"`
	CreatedAt   time.Time   `bson:"createdAt"`
	UpdatedAt   time.Time   `bson:"updatedAt"`
}

func (d *communityDoc) model() *models.Community {
	return &models.Community{
		ID:          d.ID,
		ExternalID:  d.ExternalID,
		Name:        d.Name,
		Slug:        d.Slug,
		Image:       d.Image,
		Bio:         d.Bio,
		CreatedByID: d.CreatedByID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type communityStore struct {
	s *Store
}

func (c *communityStore) Create(ctx context.Context, community *models.Community) error {
	if community.ID == "" {
		community.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	community.CreatedAt, community.UpdatedAt = now, now

	doc := communityDoc{
		ID:          community.ID,
		ExternalID:  community.ExternalID,
		Name:        community.Name,
		Slug:        community.Slug,
		Image:       community.Image,
		Bio:         community.Bio,
		CreatedByID: community.CreatedByID,
		Posts:       []string{},
		Members:     []memberDoc{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := c.s.communities.InsertOne(ctx, doc)
	return translate(err, "Community", community.ExternalID)
}

func (c *communityStore) Update(ctx context.Context, community *models.Community) error {
	community.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	res, err := c.s.communities.UpdateOne(ctx,
		bson.M{"_id": community.ID},
		bson.M{"$set": bson.M{
			"name":      community.Name,
			"slug":      community.Slug,
			"image":     community.Image,
			"bio":       community.Bio,
			"updatedAt": community.UpdatedAt,
		}},
	)
	if err != nil {
		return translate(err, "Community", community.ID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError("Community", community.ID)
	}
	return nil
}

func (c *communityStore) Delete(ctx context.Context, id string) error {
	res, err := c.s.communities.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "Community", id)
	}
	if res.DeletedCount == 0 {
		return models.NewNotFoundError("Community", id)
	}
	return nil
}

func (c *communityStore) GetByID(ctx context.Context, id string) (*models.Community, error) {
	return c.findOne(ctx, bson.M{"_id": id}, id)
}

func (c *communityStore) GetByExternalID(ctx context.Context, externalID string) (*models.Community, error) {
	return c.findOne(ctx, bson.M{"id": externalID}, externalID)
}

func (c *communityStore) findOne(ctx context.Context, filter bson.M, id string) (*models.Community, error) {
	var doc communityDoc
	if err := c.s.communities.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err, "Community", id)
	}
	return doc.model(), nil
}

func (c *communityStore) GetByIDs(ctx context.Context, ids []string) ([]*models.Community, error) {
	communities := []*models.Community{}
	if len(ids) == 0 {
		return communities, nil
	}
	cur, err := c.s.communities.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"nerdtalks": 0, "members": 0}))
	if err != nil {
		return nil, translate(err, "Community", ids)
	}
	var docs []communityDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "Community", ids)
	}
	for i := range docs {
		communities = append(communities, docs[i].model())
	}
	return communities, nil
}

func (c *communityStore) AddMember(ctx context.Context, communityID, userID string, role models.MembershipRole) error {
	if role == "" {
		role = models.MembershipRoleMember
	}
	if err := c.s.users.FindOne(ctx, bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		return translate(err, "User", userID)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	// Existing member: update the role in place.
	res, err := c.s.communities.UpdateOne(ctx,
		bson.M{"_id": communityID, "members.userId": userID},
		bson.M{"$set": bson.M{"members.$.role": role, "members.$.updatedAt": now}},
	)
	if err != nil {
		return translate(err, "Community", communityID)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	res, err = c.s.communities.UpdateOne(ctx,
		bson.M{"_id": communityID, "members.userId": bson.M{"$ne": userID}},
		bson.M{"$push": bson.M{"members": memberDoc{UserID: userID, Role: role, CreatedAt: now, UpdatedAt: now}}},
	)
	if err != nil {
		return translate(err, "Community", communityID)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// Neither matched: the community is gone, or a concurrent add won.
	_, err = c.GetByID(ctx, communityID)
	return err
}

func (c *communityStore) RemoveMember(ctx context.Context, communityID, userID string) error {
	_, err := c.s.communities.UpdateOne(ctx,
		bson.M{"_id": communityID},
		bson.M{"$pull": bson.M{"members": bson.M{"userId": userID}}},
	)
	return translate(err, "Community", communityID)
}

func (c *communityStore) ListMembers(ctx context.Context, communityID string) ([]*models.CommunityMembership, error) {
	var doc communityDoc
	err := c.s.communities.FindOne(ctx, bson.M{"_id": communityID},
		options.FindOne().SetProjection(bson.M{"members": 1})).Decode(&doc)
	if err != nil {
		return nil, translate(err, "Community", communityID)
	}
	members := make([]*models.CommunityMembership, 0, len(doc.Members))
	for _, m := range doc.Members {
		members = append(members, &models.CommunityMembership{
			CommunityID: communityID,
			UserID:      m.UserID,
			Role:        m.Role,
			CreatedAt:   m.CreatedAt,
			UpdatedAt:   m.UpdatedAt,
		})
	}
	return members, nil
}
