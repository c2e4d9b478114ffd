package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/chat"
	"github.com/mrfila/helpdesk/internal/storage/sqlite"
	"github.com/mrfila/helpdesk/pkg/logger"
)

type LearnHandler struct {
	engine *chat.Engine
	db     *sqlite.Client
}

func NewLearnHandler(engine *chat.Engine, db *sqlite.Client) *LearnHandler {
	return &LearnHandler{
		engine: engine,
		db:     db,
	}
}

// LearnAnswer accepts a human-corrected answer for a past chat turn.
func (h *LearnHandler) LearnAnswer(c *fiber.Ctx) error {
	chatID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chat id",
		})
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	learnedID, err := h.engine.LearnAnswer(c.Context(), chatID, req.Answer)
	if err != nil {
		logger.Error("Failed to learn answer",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to learn answer",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"learnedAnswerId": learnedID,
		"chatRecordId":    chatID,
	})
}

func (h *LearnHandler) GetLearnedAnswers(c *fiber.Ctx) error {
	chatID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid chat id",
		})
	}

	answers, err := h.db.GetLearnedAnswers(chatID)
	if err != nil {
		logger.Error("Failed to load learned answers",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load learned answers",
		})
	}

	return c.JSON(fiber.Map{
		"learnedAnswers": answers,
		"count":          len(answers),
	})
}

// UpdateLearnedAnswer edits a previously learned answer.
func (h *LearnHandler) UpdateLearnedAnswer(c *fiber.Ctx) error {
	learnedID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid learned answer id",
		})
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Answer == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Answer is required",
		})
	}

	if err := h.engine.EditLearnedAnswer(c.Context(), learnedID, req.Answer); err != nil {
		logger.Error("Failed to update learned answer",
			zap.Int64("learned_id", learnedID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update learned answer",
		})
	}

	return c.JSON(fiber.Map{
		"learnedAnswerId": learnedID,
		"updated":         true,
	})
}

func parseID(c *fiber.Ctx, param string) (int64, error) {
	return strconv.ParseInt(c.Params(param), 10, 64)
}
