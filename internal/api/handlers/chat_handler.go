package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mrfila/helpdesk/internal/chat"
	"github.com/mrfila/helpdesk/internal/storage/sqlite"
	"github.com/mrfila/helpdesk/pkg/logger"
)

type ChatHandler struct {
	engine *chat.Engine
	db     *sqlite.Client
}

func NewChatHandler(engine *chat.Engine, db *sqlite.Client) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		db:     db,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req struct {
		Message   string `json:"message"`
		SessionID string `json:"sessionId"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	result, err := h.engine.Ask(c.Context(), req.SessionID, req.Message)
	if err != nil {
		logger.Error("Failed to process chat", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process chat",
		})
	}

	return c.JSON(result)
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "limit must be a positive integer",
			})
		}
		limit = parsed
	}

	records, err := h.db.ListRecent(limit)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chat history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
		"count":   len(records),
	})
}

func (h *ChatHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.db.GetLowConfidenceStats()
	if err != nil {
		logger.Error("Failed to load stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
		})
	}

	return c.JSON(stats)
}
