package service

import (
	"context"
	"log/slog"
	"strings"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/repository"
	"nerdtalk/internal/validation"
)

type CommunityService struct {
	communityRepo repository.CommunityRepository
	userRepo      repository.UserRepository
	index         *IndexMaintainer
	deleter       *CascadeDeleter
}

type CreateCommunityInput struct {
	ExternalID          string `validate:"required,max=191"`
	Name                string `validate:"required,max=128"`
	Slug                string `validate:"required,max=128"`
	Image               string `validate:"omitempty,url"`
	Bio                 string `validate:"max=500"`
	CreatedByExternalID string
}

type UpdateCommunityInput struct {
	ExternalID string `validate:"required"`
	Name       string `validate:"required,max=128"`
	Slug       string `validate:"required,max=128"`
	Image      string `validate:"omitempty,url"`
}

func NewCommunityService(engine *Engine) *CommunityService {
	return &CommunityService{
		communityRepo: engine.Stores.Communities,
		userRepo:      engine.Stores.Users,
		index:         engine.Index,
		deleter:       engine.Deleter,
	}
}

// Create stores a community. The creator becomes its owner when known.
func (s *CommunityService) Create(ctx context.Context, in CreateCommunityInput) (*models.Community, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidateCommunitySlug(in.Slug); err != nil {
		return nil, err
	}

	var creator *models.User
	if in.CreatedByExternalID != "" {
		u, err := s.userRepo.GetByExternalID(ctx, in.CreatedByExternalID)
		switch {
		case err == nil:
			creator = u
		case !models.IsNotFound(err):
			return nil, err
		}
	}

	community := &models.Community{
		ExternalID: in.ExternalID,
		Name:       in.Name,
		Slug:       in.Slug,
		Image:      in.Image,
		Bio:        in.Bio,
	}
	if creator != nil {
		community.CreatedByID = &creator.ID
	}
	if err := s.communityRepo.Create(ctx, community); err != nil {
		return nil, err
	}
	if creator != nil {
		if err := s.communityRepo.AddMember(ctx, community.ID, creator.ID, models.MembershipRoleOwner); err != nil {
			return nil, err
		}
	}
	return community, nil
}

func (s *CommunityService) Update(ctx context.Context, in UpdateCommunityInput) (*models.Community, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidateCommunitySlug(in.Slug); err != nil {
		return nil, err
	}
	community, err := s.communityRepo.GetByExternalID(ctx, in.ExternalID)
	if err != nil {
		return nil, err
	}
	community.Name = strings.TrimSpace(in.Name)
	community.Slug = in.Slug
	community.Image = in.Image
	if err := s.communityRepo.Update(ctx, community); err != nil {
		return nil, err
	}
	return community, nil
}

// Delete cascades every post of the community, then removes the community
// and its memberships.
func (s *CommunityService) Delete(ctx context.Context, externalID string) error {
	community, err := s.communityRepo.GetByExternalID(ctx, externalID)
	if err != nil {
		return err
	}

	postIDs, err := s.index.CommunityPostIDs(ctx, community.ID)
	if err != nil {
		return err
	}
	for _, id := range postIDs {
		_, err := s.deleter.DeletePost(ctx, id)
		if err != nil && !models.IsNotFound(err) {
			return err
		}
	}

	if err := s.communityRepo.Delete(ctx, community.ID); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "Community deleted",
		slog.String("community_id", community.ID),
		slog.Int("posts", len(postIDs)),
	)
	return nil
}

// AddMember adds the user to the organization's community, or updates the
// role of an existing member.
func (s *CommunityService) AddMember(ctx context.Context, orgExternalID, userExternalID string, role models.MembershipRole) error {
	community, user, err := s.resolveMembership(ctx, orgExternalID, userExternalID)
	if err != nil {
		return err
	}
	return s.communityRepo.AddMember(ctx, community.ID, user.ID, role)
}

func (s *CommunityService) RemoveMember(ctx context.Context, orgExternalID, userExternalID string) error {
	community, user, err := s.resolveMembership(ctx, orgExternalID, userExternalID)
	if err != nil {
		return err
	}
	return s.communityRepo.RemoveMember(ctx, community.ID, user.ID)
}

func (s *CommunityService) Members(ctx context.Context, orgExternalID string) ([]*models.CommunityMembership, error) {
	community, err := s.communityRepo.GetByExternalID(ctx, orgExternalID)
	if err != nil {
		return nil, err
	}
	return s.communityRepo.ListMembers(ctx, community.ID)
}

func (s *CommunityService) resolveMembership(ctx context.Context, orgExternalID, userExternalID string) (*models.Community, *models.User, error) {
	if orgExternalID == "" || userExternalID == "" {
		return nil, nil, models.NewValidationError("organization and user ids are required")
	}
	community, err := s.communityRepo.GetByExternalID(ctx, orgExternalID)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.userRepo.GetByExternalID(ctx, userExternalID)
	if err != nil {
		return nil, nil, err
	}
	return community, user, nil
}
