package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/luvo/internal/errors"
)

func (s *HTTPServer) Ping(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Health reports database and redis reachability; 503 when one is down.
func (s *HTTPServer) Health(c *fiber.Ctx) error {
	checks, ok := s.health.Check(c.UserContext())
	status := fiber.StatusOK
	overall := statusHealthy
	if !ok {
		status = fiber.StatusServiceUnavailable
		overall = statusUnhealthy
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

func (s *HTTPServer) LocationTree(c *fiber.Ctx) error {
	return c.JSON(s.svc.Locations.Map())
}

func (s *HTTPServer) Countries(c *fiber.Ctx) error {
	return c.JSON(s.svc.Locations.Countries())
}

func (s *HTTPServer) Cities(c *fiber.Ctx) error {
	country := c.Query("country")
	if country == "" {
		return svcErr.InvalidArgument("country is required")
	}
	cities, ok := s.svc.Locations.Cities(country)
	if !ok {
		return svcErr.NotFound("country not found")
	}
	return c.JSON(cities)
}

func (s *HTTPServer) Districts(c *fiber.Ctx) error {
	country, city := c.Query("country"), c.Query("city")
	if country == "" || city == "" {
		return svcErr.InvalidArgument("country and city are required")
	}
	districts, ok := s.svc.Locations.Districts(country, city)
	if !ok {
		return svcErr.NotFound("city not found")
	}
	return c.JSON(districts)
}

type importRequest struct {
	Password string `json:"password"`
	Folder   string `json:"folder"`
}

type resetRequest struct {
	Password string `json:"password"`
}

func (s *HTTPServer) ImportFromStorage(c *fiber.Ctx) error {
	var req importRequest
	if err := c.BodyParser(&req); err != nil {
		return svcErr.InvalidArgument("invalid request body")
	}
	if err := s.svc.Admin.Authorize(req.Password); err != nil {
		return err
	}
	res, err := s.svc.Admin.ImportFromStorage(c.UserContext(), req.Folder)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *HTTPServer) ResetDB(c *fiber.Ctx) error {
	var req resetRequest
	if err := c.BodyParser(&req); err != nil {
		return svcErr.InvalidArgument("invalid request body")
	}
	if err := s.svc.Admin.Authorize(req.Password); err != nil {
		return err
	}
	if err := s.svc.Admin.ResetDB(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "reset"})
}
