package docstore

import (
	"context"
	"errors"
	"time"

	"nerdtalk/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type postDoc struct {
	ID          string    `bson:"_id"`
	Text        string    `bson:"text"`
	AuthorID    string    `bson:"author"`
	CommunityID *string   `bson:"community"`
	ParentID    *string   `bson:"parentId"`
	Children    []string  `bson:"children"`
	CreatedAt   time.Time `bson:"createdAt"`
}

func (d *postDoc) model() *models.Post {
	return &models.Post{
		ID:          d.ID,
		Text:        d.Text,
		AuthorID:    d.AuthorID,
		CommunityID: d.CommunityID,
		ParentID:    d.ParentID,
		Children:    orEmpty(d.Children),
		CreatedAt:   d.CreatedAt,
	}
}

type postStore struct {
	s *Store
}

func (p *postStore) Insert(ctx context.Context, in models.NewPost) (*models.Post, error) {
	if in.ParentID != nil {
		err := p.s.posts.FindOne(ctx, bson.M{"_id": *in.ParentID},
			options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
		if err != nil {
			return nil, translate(err, "Post", *in.ParentID)
		}
	}

	doc := postDoc{
		ID:          uuid.NewString(),
		Text:        in.Text,
		AuthorID:    in.AuthorID,
		CommunityID: in.CommunityID,
		ParentID:    in.ParentID,
		Children:    []string{},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := p.s.posts.InsertOne(ctx, doc); err != nil {
		return nil, translate(err, "Post", doc.ID)
	}

	if in.ParentID != nil {
		res, err := p.s.posts.UpdateOne(ctx,
			bson.M{"_id": *in.ParentID},
			bson.M{"$push": bson.M{"children": doc.ID}},
		)
		if err != nil {
			return nil, translate(err, "Post", *in.ParentID)
		}
		if res.MatchedCount == 0 {
			// The parent was deleted between the check and the append.
			_, _ = p.s.posts.DeleteOne(context.WithoutCancel(ctx), bson.M{"_id": doc.ID})
			return nil, models.NewNotFoundError("Post", *in.ParentID)
		}
	}
	return doc.model(), nil
}

func (p *postStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var doc postDoc
	if err := p.s.posts.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, translate(err, "Post", id)
	}
	return doc.model(), nil
}

func (p *postStore) GetByIDs(ctx context.Context, ids []string) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	docs, err := p.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
	if err != nil {
		return nil, translate(err, "Post", ids)
	}

	byID := make(map[string]*models.Post, len(docs))
	for _, d := range docs {
		byID[d.ID] = d.model()
	}
	out := make([]*models.Post, 0, len(byID))
	for _, id := range ids {
		if post, ok := byID[id]; ok {
			out = append(out, post)
			delete(byID, id)
		}
	}
	return out, nil
}

func (p *postStore) ListTopLevel(ctx context.Context, page, pageSize int) ([]*models.Post, bool, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	filter := bson.M{"parentId": nil}
	total, err := p.s.posts.CountDocuments(ctx, filter)
	if err != nil {
		return nil, false, translate(err, "Post", "top-level")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))
	docs, err := p.find(ctx, filter, opts)
	if err != nil {
		return nil, false, translate(err, "Post", "top-level")
	}

	posts := make([]*models.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.model())
	}
	return posts, total > int64(page)*int64(pageSize), nil
}

func (p *postStore) ListDirectChildren(ctx context.Context, parentID string) ([]*models.Post, error) {
	var parent postDoc
	err := p.s.posts.FindOne(ctx, bson.M{"_id": parentID},
		options.FindOne().SetProjection(bson.M{"children": 1})).Decode(&parent)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return []*models.Post{}, nil
	}
	if err != nil {
		return nil, translate(err, "Post", parentID)
	}
	if len(parent.Children) == 0 {
		return []*models.Post{}, nil
	}

	docs, err := p.find(ctx, bson.M{"_id": bson.M{"$in": parent.Children}, "parentId": parentID}, nil)
	if err != nil {
		return nil, translate(err, "Post", parentID)
	}
	byID := make(map[string]*models.Post, len(docs))
	for _, d := range docs {
		byID[d.ID] = d.model()
	}
	// Replies follow the reply log; a repeated entry is returned twice.
	posts := make([]*models.Post, 0, len(parent.Children))
	for _, id := range parent.Children {
		if post, ok := byID[id]; ok {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (p *postStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := p.s.posts.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return 0, translate(err, "Post", ids)
	}
	return res.DeletedCount, nil
}

func (p *postStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]postDoc, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	cur, err := p.s.posts.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, err
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
