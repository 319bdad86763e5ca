package server

import (
	"nerdtalk/internal/service"

	"github.com/gofiber/fiber/v2"
)

type onboardRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Image    string `json:"image"`
	Bio      string `json:"bio"`
}

// UpdateMyProfile handles PUT /api/users/me. It creates the user on first
// call and marks the profile onboarded.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req onboardRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, bodyError())
	}

	user, err := s.userService.Onboard(c.UserContext(), service.OnboardInput{
		ExternalID: currentExternalID(c),
		Username:   req.Username,
		Name:       req.Name,
		Image:      req.Image,
		Bio:        req.Bio,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}
