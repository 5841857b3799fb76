package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/inkfold/newsletter_go_server/internal/api/middleware"
	"github.com/inkfold/newsletter_go_server/internal/model/dto"
	"github.com/inkfold/newsletter_go_server/internal/pkg/response"
	"github.com/inkfold/newsletter_go_server/internal/service"
)

type SummaryHandler struct {
	summaryService *service.SummaryService
}

func NewSummaryHandler(summaryService *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{
		summaryService: summaryService,
	}
}

// Generate 生成邮件摘要
// POST /api/v1/newsletters/:id/summary
func (h *SummaryHandler) Generate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的邮件ID")
		return
	}

	var req dto.GenerateSummaryRequest
	// body 可省略，默认非强制
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	result, err := h.summaryService.Generate(c.Request.Context(), userID, itemID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProRequired):
			response.Error(c, response.CodeProRequired, err.Error())
		case errors.Is(err, service.ErrAILimitReached):
			response.Error(c, response.CodeAILimitReached, err.Error())
		case errors.Is(err, service.ErrAICooldown):
			response.Error(c, response.CodeAICooldown, err.Error())
		case errors.Is(err, service.ErrAIBusy):
			response.Error(c, response.CodeAIBusy, err.Error())
		case errors.Is(err, service.ErrAITimeout):
			response.Error(c, response.CodeAITimeout, err.Error())
		case errors.Is(err, service.ErrAINotConfigured):
			response.ServerError(c, err.Error())
		case errors.Is(err, service.ErrItemNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrItemPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "摘要生成成功", result)
}

// GetUsage 当日 AI 用量
// GET /api/v1/user/ai-usage
func (h *SummaryHandler) GetUsage(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	usage, err := h.summaryService.GetUsage(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, usage)
}
