package server

import (
	"nerdtalk/internal/service"

	"github.com/gofiber/fiber/v2"
)

type createNerdTalkRequest struct {
	Text        string `json:"text"`
	CommunityID string `json:"community_id,omitempty"`
}

type replyRequest struct {
	Text string `json:"text"`
}

// GetFeed handles GET /api/nerdtalks?page=&page_size=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", 0)

	feed, err := s.postService.Feed(c.UserContext(), page, pageSize)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}

// GetThread handles GET /api/nerdtalks/:id
func (s *Server) GetThread(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	view, err := s.postService.Thread(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// CreateNerdTalk handles POST /api/nerdtalks. community_id is the identity
// provider's organization id.
func (s *Server) CreateNerdTalk(c *fiber.Ctx) error {
	var req createNerdTalkRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, bodyError())
	}

	node, err := s.postService.Create(c.UserContext(), service.CreatePostInput{
		AuthorID:            currentUserID(c),
		Text:                req.Text,
		CommunityExternalID: req.CommunityID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(node)
}

// ReplyToNerdTalk handles POST /api/nerdtalks/:id/replies
func (s *Server) ReplyToNerdTalk(c *fiber.Ctx) error {
	parentID, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	var req replyRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, bodyError())
	}

	node, err := s.postService.Reply(c.UserContext(), service.ReplyInput{
		ParentID: parentID,
		AuthorID: currentUserID(c),
		Text:     req.Text,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(node)
}

// DeleteNerdTalk handles DELETE /api/nerdtalks/:id. The post and every
// reply beneath it are removed.
func (s *Server) DeleteNerdTalk(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	res, err := s.postService.Delete(c.UserContext(), service.DeletePostInput{
		PostID: id,
		UserID: currentUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "NerdTalk deleted",
		"deleted":  res.Deleted,
		"post_ids": res.PostIDs,
	})
}

// GetUserNerdTalks handles GET /api/users/:id/nerdtalks
func (s *Server) GetUserNerdTalks(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	nodes, err := s.postService.AuthorPosts(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": nodes})
}

// GetCommunityNerdTalks handles GET /api/communities/:id/nerdtalks
func (s *Server) GetCommunityNerdTalks(c *fiber.Ctx) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	nodes, err := s.postService.CommunityPosts(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"posts": nodes})
}
