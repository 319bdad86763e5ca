package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"nerdtalk/internal/middleware"
	"nerdtalk/internal/models"
	"nerdtalk/internal/observability"
	"nerdtalk/internal/service"
	"nerdtalk/internal/validation"

	"github.com/gofiber/fiber/v2"
	svix "github.com/svix/svix-webhooks/go"
)

// Identity provider event types.
const (
	EventOrganizationCreated       = "organization.created"
	EventOrganizationUpdated       = "organization.updated"
	EventOrganizationDeleted       = "organization.deleted"
	EventMembershipCreated         = "organizationMembership.created"
	EventMembershipDeleted         = "organizationMembership.deleted"
	EventOrganizationInviteCreated = "organizationInvitation.created"
)

const defaultCommunityBio = "org bio"

var errWebhookSecretMissing = errors.New("webhook signing secret is not configured")

type webhookEvent struct {
	Type   string          `json:"type" validate:"required"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type organizationData struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Slug      string `json:"slug" validate:"required"`
	ImageURL  string `json:"image_url"`
	LogoURL   string `json:"logo_url"`
	CreatedBy string `json:"created_by"`
}

func (d organizationData) image() string {
	if d.LogoURL != "" {
		return d.LogoURL
	}
	return d.ImageURL
}

type membershipData struct {
	Role         string `json:"role"`
	Organization struct {
		ID string `json:"id" validate:"required"`
	} `json:"organization"`
	PublicUserData struct {
		UserID string `json:"user_id" validate:"required"`
	} `json:"public_user_data"`
}

type deletedData struct {
	ID string `json:"id" validate:"required"`
}

// webhookVerifier checks the provider's signature headers against the payload.
type webhookVerifier interface {
	Verify(payload []byte, headers http.Header) error
}

func newWebhookVerifier(secret string) (webhookVerifier, error) {
	if secret == "" {
		return nil, nil
	}
	return svix.NewWebhook(secret)
}

var signatureHeaders = []string{
	"svix-id", "svix-timestamp", "svix-signature",
	"webhook-id", "webhook-timestamp", "webhook-signature",
}

// IdentityWebhook handles POST /api/webhooks/identity. Events are verified
// with the configured signing secret before they touch any store.
func (s *Server) IdentityWebhook(c *fiber.Ctx) error {
	payload := c.Body()

	if s.webhook != nil {
		headers := http.Header{}
		for _, name := range signatureHeaders {
			if v := c.Get(name); v != "" {
				headers.Set(name, v)
			}
		}
		if err := s.webhook.Verify(payload, headers); err != nil {
			observability.WebhookEvents.WithLabelValues("unknown", "invalid_signature").Inc()
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid webhook signature"))
		}
	} else if !s.config.IsDevelopment() {
		return respondError(c, models.NewInternalError(errWebhookSecretMissing))
	}

	var evt webhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return respondError(c, bodyError())
	}
	if err := validation.Struct(evt); err != nil {
		return respondError(c, err)
	}

	status, err := s.dispatchWebhook(c.UserContext(), evt)
	if err != nil {
		observability.WebhookEvents.WithLabelValues(eventLabel(evt.Type), "error").Inc()
		return respondError(c, err)
	}

	outcome := "ok"
	if status == fiber.StatusNotFound {
		outcome = "unhandled"
	}
	observability.WebhookEvents.WithLabelValues(eventLabel(evt.Type), outcome).Inc()

	if status == fiber.StatusNotFound {
		return c.Status(status).JSON(fiber.Map{"message": "Not Found"})
	}
	return c.Status(status).JSON(fiber.Map{"message": "ok", "type": evt.Type})
}

func (s *Server) dispatchWebhook(ctx context.Context, evt webhookEvent) (int, error) {
	switch evt.Type {
	case EventOrganizationCreated:
		var d organizationData
		if err := decodeEventData(evt.Data, &d); err != nil {
			return 0, err
		}
		_, err := s.communityService.Create(ctx, service.CreateCommunityInput{
			ExternalID:          d.ID,
			Name:                d.Name,
			Slug:                d.Slug,
			Image:               d.image(),
			Bio:                 defaultCommunityBio,
			CreatedByExternalID: d.CreatedBy,
		})
		return fiber.StatusCreated, err

	case EventOrganizationUpdated:
		var d organizationData
		if err := decodeEventData(evt.Data, &d); err != nil {
			return 0, err
		}
		_, err := s.communityService.Update(ctx, service.UpdateCommunityInput{
			ExternalID: d.ID,
			Name:       d.Name,
			Slug:       d.Slug,
			Image:      d.image(),
		})
		return fiber.StatusOK, err

	case EventOrganizationDeleted:
		var d deletedData
		if err := decodeEventData(evt.Data, &d); err != nil {
			return 0, err
		}
		return fiber.StatusOK, s.communityService.Delete(ctx, d.ID)

	case EventMembershipCreated:
		var d membershipData
		if err := decodeEventData(evt.Data, &d); err != nil {
			return 0, err
		}
		err := s.communityService.AddMember(ctx, d.Organization.ID, d.PublicUserData.UserID, membershipRole(d.Role))
		return fiber.StatusCreated, err

	case EventMembershipDeleted:
		var d membershipData
		if err := decodeEventData(evt.Data, &d); err != nil {
			return 0, err
		}
		return fiber.StatusOK, s.communityService.RemoveMember(ctx, d.Organization.ID, d.PublicUserData.UserID)

	case EventOrganizationInviteCreated:
		middleware.Logger.InfoContext(ctx, "Invitation acknowledged", slog.String("type", evt.Type))
		return fiber.StatusOK, nil

	default:
		return fiber.StatusNotFound, nil
	}
}

func decodeEventData(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return models.NewValidationError("event data is required")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return models.NewValidationError("malformed event data")
	}
	return validation.Struct(dest)
}

// membershipRole maps provider roles such as "org:admin" onto community roles.
func membershipRole(role string) models.MembershipRole {
	switch strings.TrimPrefix(strings.ToLower(role), "org:") {
	case "admin":
		return models.MembershipRoleAdmin
	default:
		return models.MembershipRoleMember
	}
}

// eventLabel keeps metric cardinality bounded to the known event types.
func eventLabel(eventType string) string {
	switch eventType {
	case EventOrganizationCreated, EventOrganizationUpdated, EventOrganizationDeleted,
		EventMembershipCreated, EventMembershipDeleted, EventOrganizationInviteCreated:
		return eventType
	}
	return "other"
}
