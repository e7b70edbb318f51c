package server

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/luvo/internal/errors"
)

const localUserID = "userID"

// authRequired resolves "Authorization: Bearer <jwt>" to the caller's id.
func (s *HTTPServer) authRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return svcErr.Unauthorized("authorization required")
		}

		id, err := s.svc.Auth.Parse(strings.TrimSpace(token))
		if err != nil {
			return err
		}
		c.Locals(localUserID, id)
		return c.Next()
	}
}

func currentUser(c *fiber.Ctx) uint64 {
	id, _ := c.Locals(localUserID).(uint64)
	return id
}

func idParam(c *fiber.Ctx, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.InvalidArgument(name + " must be a positive integer")
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcErr.InvalidArgument(name + " must be an integer")
	}
	return n, nil
}

func queryPtr(c *fiber.Ctx, name string) *string {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	return &v
}
