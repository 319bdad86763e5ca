package docstore

import (
	"context"
	"time"

	"nerdtalk/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type userDoc struct {
	ID         string    `bson:"_id"`
	ExternalID string    `bson:"id"`
	Username   string    `bson:"username"`
	Name       string    `bson:"name"`
	Image      string    `bson:"image"`
	Bio        string    `bson:"bio"`
	Onboarded  bool      `bson:"onboarded"`
	Posts      []string  `bson:"nerdtalks"`
	CreatedAt  time.Time `bson:"createdAt"`
	UpdatedAt  time.Time `bson:"updatedAt"`
}

func (d *userDoc) model() *models.User {
	return &models.User{
		ID:         d.ID,
		ExternalID: d.ExternalID,
		Username:   d.Username,
		Name:       d.Name,
		Image:      d.Image,
		Bio:        d.Bio,
		Onboarded:  d.Onboarded,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type userStore struct {
	s *Store
}

func (u *userStore) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	newID := user.ID
	if newID == "" {
		newID = uuid.NewString()
	}

	update := bson.M{
		"$set": bson.M{
			"username":  user.Username,
			"name":      user.Name,
			"image":     user.Image,
			"bio":       user.Bio,
			"onboarded": user.Onboarded,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":       newID,
			"nerdtalks": []string{},
			"createdAt": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc userDoc
	if err := u.s.users.FindOneAndUpdate(ctx, bson.M{"id": user.ExternalID}, update, opts).Decode(&doc); err != nil {
		return translate(err, "User", user.ExternalID)
	}
	*user = *doc.model()
	return nil
}

func (u *userStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return u.findOne(ctx, bson.M{"_id": id}, id)
}

func (u *userStore) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return u.findOne(ctx, bson.M{"id": externalID}, externalID)
}

func (u *userStore) findOne(ctx context.Context, filter bson.M, id string) (*models.User, error) {
	var doc userDoc
	if err := u.s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translate(err, "User", id)
	}
	return doc.model(), nil
}

func (u *userStore) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users := []*models.User{}
	if len(ids) == 0 {
		return users, nil
	}
	cur, err := u.s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"nerdtalks": 0}))
	if err != nil {
		return nil, translate(err, "User", ids)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err, "User", ids)
	}
	for i := range docs {
		users = append(users, docs[i].model())
	}
	return users, nil
}
