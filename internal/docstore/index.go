package docstore

import (
	"context"

	"nerdtalk/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// indexStore keeps post ids in the "nerdtalks" array of user and community documents.
type indexStore struct {
	s *Store
}

func (i *indexStore) RecordAuthorship(ctx context.Context, userID, postID string) error {
	return addToSet(ctx, i.s.users, "User", userID, postID)
}

func (i *indexStore) RecordCommunityPost(ctx context.Context, communityID, postID string) error {
	return addToSet(ctx, i.s.communities, "Community", communityID, postID)
}

func addToSet(ctx context.Context, coll *mongo.Collection, resource, ownerID, postID string) error {
	res, err := coll.UpdateOne(ctx,
		bson.M{"_id": ownerID},
		bson.M{"$addToSet": bson.M{"nerdtalks": postID}},
	)
	if err != nil {
		return translate(err, resource, ownerID)
	}
	if res.MatchedCount == 0 {
		return models.NewNotFoundError(resource, ownerID)
	}
	return nil
}

func (i *indexStore) Scrub(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	filter := bson.M{"nerdtalks": bson.M{"$in": postIDs}}
	return i.pull(ctx, filter, filter, postIDs)
}

func (i *indexStore) ScrubOwners(ctx context.Context, postIDs, userIDs, communityIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	var userFilter, communityFilter bson.M
	if len(userIDs) > 0 {
		userFilter = bson.M{"_id": bson.M{"$in": userIDs}}
	}
	if len(communityIDs) > 0 {
		communityFilter = bson.M{"_id": bson.M{"$in": communityIDs}}
	}
	return i.pull(ctx, userFilter, communityFilter, postIDs)
}

// pull removes postIDs from every document matching the filters. A nil
// filter skips that collection.
func (i *indexStore) pull(ctx context.Context, userFilter, communityFilter bson.M, postIDs []string) error {
	update := bson.M{"$pull": bson.M{"nerdtalks": bson.M{"$in": postIDs}}}
	if userFilter != nil {
		if _, err := i.s.users.UpdateMany(ctx, userFilter, update); err != nil {
			return translate(err, "User", postIDs)
		}
	}
	if communityFilter != nil {
		if _, err := i.s.communities.UpdateMany(ctx, communityFilter, update); err != nil {
			return translate(err, "Community", postIDs)
		}
	}
	return nil
}

func (i *indexStore) AuthorPostIDs(ctx context.Context, userID string) ([]string, error) {
	return postSet(ctx, i.s.users, "User", userID)
}

func (i *indexStore) CommunityPostIDs(ctx context.Context, communityID string) ([]string, error) {
	return postSet(ctx, i.s.communities, "Community", communityID)
}

func postSet(ctx context.Context, coll *mongo.Collection, resource, ownerID string) ([]string, error) {
	var doc struct {
		Posts []string `bson:"nerdtalks"`
	}
	err := coll.FindOne(ctx, bson.M{"_id": ownerID},
		options.FindOne().SetProjection(bson.M{"nerdtalks": 1})).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return []string{}, nil
	}
	if err != nil {
		return nil, translate(err, resource, ownerID)
	}
	// Newest first, matching the relational index.
	ids := make([]string, 0, len(doc.Posts))
	for n := len(doc.Posts) - 1; n >= 0; n-- {
		ids = append(ids, doc.Posts[n])
	}
	return ids, nil
}
