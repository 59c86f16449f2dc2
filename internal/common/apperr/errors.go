// Package apperr defines the typed errors services return and how they map onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindPermission    Kind = "permission"
	KindUnauthorized  Kind = "unauthorized"
	KindExternalFetch Kind = "external_fetch"
	KindShareLink     Kind = "share_link"
)

// Share link failure codes
const (
	CodeShareNotFound = "not_found"
	CodeShareExpired  = "expired"
	CodeShareInactive = "inactive"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Field   string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(field, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Code: "not_found", Message: resource + " not found"}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: "conflict", Message: fmt.Sprintf(format, args...)}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindPermission, Code: "forbidden", Message: message}
}

// InsufficientRole carries both roles so clients can explain the denial
func InsufficientRole(required, current string) *Error {
	return &Error{
		Kind:    KindPermission,
		Code:    "insufficient_role",
		Message: "insufficient role",
		Details: map[string]interface{}{"required_role": required, "current_role": current},
	}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: message}
}

func ExternalFetch(integrationID string, err error) *Error {
	return &Error{
		Kind:    KindExternalFetch,
		Code:    "external_fetch_failed",
		Message: "integration fetch failed",
		Details: map[string]interface{}{"integration_id": integrationID},
		Err:     err,
	}
}

func ShareLink(code string) *Error {
	messages := map[string]string{
		CodeShareNotFound: "share link not found",
		CodeShareExpired:  "share link has expired",
		CodeShareInactive: "share link is no longer active",
	}
	return &Error{Kind: KindShareLink, Code: code, Message: messages[code]}
}

// As extracts an *Error from err
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}

func HTTPStatus(err error) int {
	e, ok := As(err)
	if !ok {
		return fiber.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindNotFound:
		return fiber.StatusNotFound
	case KindConflict:
		return fiber.StatusConflict
	case KindPermission:
		return fiber.StatusForbidden
	case KindUnauthorized:
		return fiber.StatusUnauthorized
	case KindExternalFetch:
		return fiber.StatusBadGateway
	case KindShareLink:
		if e.Code == CodeShareNotFound {
			return fiber.StatusNotFound
		}
		return fiber.StatusGone
	default:
		return fiber.StatusInternalServerError
	}
}

// Respond writes err as a JSON error body with the mapped status
func Respond(c *fiber.Ctx, err error) error {
	status := HTTPStatus(err)
	body := fiber.Map{"error": err.Error()}
	if e, ok := As(err); ok {
		body["code"] = e.Code
		if e.Field != "" {
			body["field"] = e.Field
		}
		for k, v := range e.Details {
			body[k] = v
		}
	} else {
		body["error"] = "internal server error"
	}
	return c.Status(status).JSON(body)
}
