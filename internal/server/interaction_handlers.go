package server

import (
	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/luvo/internal/errors"
	"github.com/oggyb/luvo/internal/service/interaction"
)

func (s *HTTPServer) Feed(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	out, err := s.svc.Feed.GetFeed(c.UserContext(), currentUser(c), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *HTTPServer) View(c *fiber.Ctx) error {
	id, err := idParam(c, "user_id")
	if err != nil {
		return err
	}
	if err := s.svc.Interactions.View(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) Like(c *fiber.Ctx) error {
	id, err := idParam(c, "user_id")
	if err != nil {
		return err
	}
	res, err := s.svc.Interactions.Like(c.UserContext(), currentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *HTTPServer) Unlike(c *fiber.Ctx) error {
	id, err := idParam(c, "user_id")
	if err != nil {
		return err
	}
	if err := s.svc.Interactions.Unlike(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *HTTPServer) Ignore(c *fiber.Ctx) error {
	id, err := idParam(c, "user_id")
	if err != nil {
		return err
	}
	if err := s.svc.Interactions.Ignore(c.UserContext(), currentUser(c), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type likesPage struct {
	Items      []interaction.IncomingLike `json:"items"`
	NextCursor *string                    `json:"next_cursor"`
}

func (s *HTTPServer) IncomingLikes(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	items, next, err := s.svc.Interactions.IncomingLikes(c.UserContext(), currentUser(c), queryPtr(c, "cursor"), limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []interaction.IncomingLike{}
	}
	return c.JSON(likesPage{Items: items, NextCursor: next})
}

func (s *HTTPServer) CountIncomingLikes(c *fiber.Ctx) error {
	n, err := s.svc.Interactions.CountIncomingLikes(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": n})
}

func (s *HTTPServer) Matches(c *fiber.Ctx) error {
	out, err := s.svc.Interactions.Matches(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func (s *HTTPServer) Top(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	out, err := s.svc.Interactions.Top(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

type voteRequest struct {
	WinnerID uint64 `json:"winner_id"`
}

func (s *HTTPServer) BattlePair(c *fiber.Ctx) error {
	st, err := s.svc.Battle.Pair(c.UserContext(), currentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *HTTPServer) BattleVote(c *fiber.Ctx) error {
	var req voteRequest
	if err := c.BodyParser(&req); err != nil {
		return svcErr.InvalidArgument("invalid request body")
	}
	if req.WinnerID == 0 {
		return svcErr.InvalidArgument("winner_id is required")
	}
	st, err := s.svc.Battle.Vote(c.UserContext(), currentUser(c), req.WinnerID)
	if err != nil {
		return err
	}
	return c.JSON(st)
}

func (s *HTTPServer) BattleLeaders(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return err
	}
	out, err := s.svc.Battle.Leaders(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(out)
}
