package service

import (
	"context"
	"strings"

	"nerdtalk/internal/models"
	"nerdtalk/internal/repository"
	"nerdtalk/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
}

// OnboardInput is the profile a user submits to finish onboarding.
type OnboardInput struct {
	ExternalID string `validate:"required,max=191"`
	Username   string `validate:"required,username"`
	Name       string `validate:"required,max=128"`
	Image      string `validate:"omitempty,url"`
	Bio        string `validate:"max=500"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// Onboard creates or updates the user keyed by the external id and marks it
// onboarded.
func (s *UserService) Onboard(ctx context.Context, in OnboardInput) (*models.User, error) {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Name = strings.TrimSpace(in.Name)
	in.Bio = strings.TrimSpace(in.Bio)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user := &models.User{
		ExternalID: in.ExternalID,
		Username:   in.Username,
		Name:       in.Name,
		Image:      in.Image,
		Bio:        in.Bio,
		Onboarded:  true,
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// ResolveExternal maps an identity provider id to the stored user.
func (s *UserService) ResolveExternal(ctx context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	return s.userRepo.GetByExternalID(ctx, externalID)
}
