package application

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/example/personal-calendar/internal/persistence"
)

const (
	maxTitleLength       = 100
	maxSearchQueryLength = 100
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func validateTitle(title string, vErr *ValidationError) {
	trimmed := strings.TrimSpace(title)
	switch {
	case trimmed == "":
		vErr.add("title", "title is required")
	case utf8.RuneCountInString(trimmed) > maxTitleLength:
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
}

func validateColor(color *string, vErr *ValidationError) {
	if color == nil || strings.TrimSpace(*color) == "" {
		return
	}
	if !colorPattern.MatchString(strings.TrimSpace(*color)) {
		vErr.add("color", "color must be a hex value such as #2196f3")
	}
}

func validateEventInput(input EventInput) *ValidationError {
	vErr := &ValidationError{}

	validateTitle(input.Title, vErr)
	validateColor(input.Color, vErr)
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && input.End.Before(input.Start) {
		vErr.add("end", "end must not be before start")
	}

	return vErr
}

func validateEventPatch(patch EventPatch) *ValidationError {
	vErr := &ValidationError{}
	if patch.Title != nil {
		validateTitle(*patch.Title, vErr)
	}
	validateColor(patch.Color, vErr)
	if patch.Start != nil && patch.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if patch.End != nil && patch.End.IsZero() {
		vErr.add("end", "end is required")
	}
	return vErr
}

// normalizeEmail trims and lower-cases an address, returning "" when it is
// not a bare RFC 5322 address.
func normalizeEmail(value string) string {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return ""
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed || addr.Name != "" {
		return ""
	}
	return trimmed
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeColor(value *string) *string {
	normalized := normalizeOptionalString(value)
	if normalized == nil {
		return nil
	}
	lower := strings.ToLower(*normalized)
	return &lower
}

func optionalFromString(value string) *string {
	return normalizeOptionalString(&value)
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func sameOptional(a, b *string) bool {
	return derefString(a) == derefString(b)
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict):
		return err
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrConflict
	case errors.Is(err, persistence.ErrConstraintViolation):
		return newValidationError("event", "record violates a storage constraint")
	}
	return err
}
