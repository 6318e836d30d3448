package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
)

const (
	localUserID   = "user_id"
	headerRequest = "X-Request-ID"
)

// requestContext attaches a request id and a request-scoped logger to the
// user context.
func requestContext(c *fiber.Ctx) error {
	requestID := c.Get(headerRequest)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(headerRequest, requestID)

	logger := common.Logger(c.UserContext()).With(
		"request_id", requestID,
		"method", c.Method(),
		"path", c.Path())
	c.SetUserContext(common.WithLogger(c.UserContext(), logger))
	return c.Next()
}

// authenticate resolves the bearer token to a user id.
func (s *Server) authenticate(c *fiber.Ctx) error {
	auth := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return common.NewAuthorizationError("missing bearer token")
	}
	userID, ok := s.tokens[strings.TrimSpace(token)]
	if !ok || userID == "" {
		return common.NewAuthorizationError("unknown token")
	}

	c.Locals(localUserID, userID)
	ctx := c.UserContext()
	c.SetUserContext(common.WithLogger(ctx, common.Logger(ctx).With("user_id", userID)))
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}
