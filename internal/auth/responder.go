package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

const rejectionWrittenKey = "auth_rejection_written"

// Fixed client-facing messages. Finer-grained reasons are logged server-side only
// so callers cannot distinguish, say, a forged token from an unknown account.
const (
	msgExpired       = "Token has expired"
	msgBadSignature  = "Invalid JWT Signature"
	msgInvalidToken  = "Invalid JWT Token"
	msgMissingHeader = "Authorization header is missing or invalid"
)

// MessageForReason returns the fixed client-facing message for a rejection reason.
func MessageForReason(reason Reason) string {
	switch reason {
	case ReasonExpired:
		return msgExpired
	case ReasonBadSignature:
		return msgBadSignature
	case ReasonMissingHeader:
		return msgMissingHeader
	default:
		return msgInvalidToken
	}
}

// RejectionBody is the uniform error payload for authentication failures.
type RejectionBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// Reject writes the rejection response for a failed verification and stops the
// pipeline. Calling it twice for one request is a programming error; the second
// call is a no-op.
func Reject(c *fiber.Ctx, reason Reason) error {
	if c.Locals(rejectionWrittenKey) != nil {
		return nil
	}
	c.Locals(rejectionWrittenKey, true)

	status := http.StatusUnauthorized
	if reason == ReasonMissingHeader {
		status = http.StatusBadRequest
	}

	return c.Status(status).JSON(RejectionBody{
		Status:  "UNAUTHORIZED",
		Message: MessageForReason(reason),
		Path:    c.Path(),
	})
}
