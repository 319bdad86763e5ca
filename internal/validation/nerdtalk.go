package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"nerdtalk/internal/models"
)

// MaxPostTextLength caps a post body in characters.
const MaxPostTextLength = 5000

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

var communitySlugRegex = regexp.MustCompile(`^[a-z0-9-]{3,48}$`)

var reservedUsernames = map[string]struct{}{
	"admin":     {},
	"api":       {},
	"me":        {},
	"health":    {},
	"metrics":   {},
	"webhooks":  {},
	"nerdtalks": {},
	"users":     {},
}

// ValidatePostText checks a post body and returns it trimmed.
func ValidatePostText(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < models.MinPostTextLength {
		return "", models.NewValidationError(fmt.Sprintf("text must be at least %d characters", models.MinPostTextLength))
	}
	if n > MaxPostTextLength {
		return "", models.NewValidationError(fmt.Sprintf("text must be at most %d characters", MaxPostTextLength))
	}
	return trimmed, nil
}

// ValidateUsername validates username format and reserved names.
func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return models.NewValidationError("username must be 3-30 characters and contain only lowercase letters, numbers, and underscores")
	}
	if _, exists := reservedUsernames[username]; exists {
		return models.NewValidationError("username is reserved")
	}
	return nil
}

// ValidateCommunitySlug validates the slug mirrored from the identity provider.
func ValidateCommunitySlug(slug string) error {
	if !communitySlugRegex.MatchString(slug) {
		return models.NewValidationError("slug must be 3-48 characters and contain only lowercase letters, numbers, and hyphens")
	}
	if strings.HasPrefix(slug, "-") || strings.HasSuffix(slug, "-") {
		return models.NewValidationError("slug cannot start or end with a hyphen")
	}
	return nil
}
