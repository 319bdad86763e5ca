// Package seed fills a store with demo users, communities and reply trees.
// Everything goes through the services, so the reply logs and indexes are
// populated the same way live traffic populates them.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Options controls how much data a run generates.
type Options struct {
	Users          int
	Communities    int
	ThreadsPerUser int
	// Depth is how many reply levels grow under each top-level post.
	Depth int
	// RepliesPerPost is the fan-out at every level.
	RepliesPerPost int
	// RandSeed makes a run reproducible. Zero seeds from the clock.
	RandSeed int64
}

// DefaultOptions is a small but fully branched data set.
func DefaultOptions() Options {
	return Options{
		Users:          20,
		Communities:    4,
		ThreadsPerUser: 3,
		Depth:          3,
		RepliesPerPost: 2,
	}
}

// Result counts what a run created.
type Result struct {
	Users       int
	Communities int
	TopLevel    int
	Replies     int
}

// Seeder generates fake data through the services.
type Seeder struct {
	posts       *service.PostService
	users       *service.UserService
	communities *service.CommunityService
	faker       *gofakeit.Faker
	opts        Options
}

// NewSeeder binds a seeder to the services of engine.
func NewSeeder(engine *service.Engine, opts Options) *Seeder {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		posts:       service.NewPostService(engine, 0, 0),
		users:       service.NewUserService(engine.Stores.Users),
		communities: service.NewCommunityService(engine),
		faker:       gofakeit.New(seed),
		opts:        opts,
	}
}

// Run creates users, then communities owned by some of them, then threads.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	users, err := s.seedUsers(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = len(users)
	middleware.Logger.InfoContext(ctx, "Seeded users", slog.Int("count", res.Users))

	communities, err := s.seedCommunities(ctx, users)
	if err != nil {
		return res, fmt.Errorf("failed to create communities: %w", err)
	}
	res.Communities = len(communities)
	middleware.Logger.InfoContext(ctx, "Seeded communities", slog.Int("count", res.Communities))

	for _, author := range users {
		for i := 0; i < s.opts.ThreadsPerUser; i++ {
			in := service.CreatePostInput{AuthorID: author.ID, Text: s.postText()}
			if len(communities) > 0 && s.faker.Bool() {
				in.CommunityExternalID = communities[s.faker.Number(0, len(communities)-1)].ExternalID
			}
			root, err := s.posts.Create(ctx, in)
			if err != nil {
				return res, fmt.Errorf("failed to create thread: %w", err)
			}
			res.TopLevel++

			n, err := s.growReplies(ctx, users, root.ID, 1)
			res.Replies += n
			if err != nil {
				return res, fmt.Errorf("failed to create replies: %w", err)
			}
		}
	}
	middleware.Logger.InfoContext(ctx, "Seeded threads",
		slog.Int("top_level", res.TopLevel),
		slog.Int("replies", res.Replies),
	)
	return res, nil
}

func (s *Seeder) seedUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		u, err := s.users.Onboard(ctx, service.OnboardInput{
			ExternalID: "user_seed_" + shortID(s.faker.UUID()),
			Username:   username(s.faker.Username(), i),
			Name:       s.faker.Name(),
			Image:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", s.faker.UUID()),
			Bio:        s.faker.Sentence(10),
		})
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *Seeder) seedCommunities(ctx context.Context, users []*models.User) ([]*models.Community, error) {
	if len(users) == 0 {
		return nil, nil
	}
	communities := make([]*models.Community, 0, s.opts.Communities)
	for i := 0; i < s.opts.Communities; i++ {
		name := s.faker.Company()
		owner := users[i%len(users)]
		c, err := s.communities.Create(ctx, service.CreateCommunityInput{
			ExternalID:          "org_seed_" + shortID(s.faker.UUID()),
			Name:                name,
			Slug:                slug(name, i),
			Image:               fmt.Sprintf("https://picsum.photos/seed/%s/200/200", s.faker.UUID()),
			Bio:                 s.faker.Sentence(12),
			CreatedByExternalID: owner.ExternalID,
		})
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.ID == owner.ID || !s.faker.Bool() {
				continue
			}
			if err := s.communities.AddMember(ctx, c.ExternalID, u.ExternalID, models.MembershipRoleMember); err != nil {
				return nil, err
			}
		}
		communities = append(communities, c)
	}
	return communities, nil
}

// growReplies adds RepliesPerPost replies under parentID and recurses until
// Depth levels exist. It reports how many replies it created.
func (s *Seeder) growReplies(ctx context.Context, users []*models.User, parentID string, level int) (int, error) {
	if level > s.opts.Depth {
		return 0, nil
	}
	created := 0
	for i := 0; i < s.opts.RepliesPerPost; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		reply, err := s.posts.Reply(ctx, service.ReplyInput{
			ParentID: parentID,
			AuthorID: author.ID,
			Text:     s.postText(),
		})
		if err != nil {
			return created, err
		}
		created++

		n, err := s.growReplies(ctx, users, reply.ID, level+1)
		created += n
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

func (s *Seeder) postText() string {
	if s.faker.Bool() {
		return s.faker.HackerPhrase()
	}
	return s.faker.Paragraph(1, 3, 12, " ")
}

var (
	nonUsername = regexp.MustCompile(`[^a-z0-9_]+`)
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
)

// username derives a valid, unique handle from a generated one.
func username(raw string, n int) string {
	base := nonUsername.ReplaceAllString(strings.ToLower(raw), "")
	if len(base) > 20 {
		base = base[:20]
	}
	if base == "" {
		base = "nerd"
	}
	return fmt.Sprintf("%s_%d", base, n)
}

// slug derives a valid, unique community slug from a name.
func slug(name string, n int) string {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(base) > 36 {
		base = strings.Trim(base[:36], "-")
	}
	if base == "" {
		base = "community"
	}
	return fmt.Sprintf("%s-%d", base, n)
}

func shortID(uuid string) string {
	return strings.ReplaceAll(uuid, "-", "")[:16]
}
