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

type NewsletterHandler struct {
	contentService *service.ContentService
}

func NewNewsletterHandler(contentService *service.ContentService) *NewsletterHandler {
	return &NewsletterHandler{
		contentService: contentService,
	}
}

// List 收件箱列表
// GET /api/v1/newsletters
func (h *NewsletterHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	search := c.Query("search")

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var folderID *int64
	if raw := c.Query("folder_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.ParamError(c, "无效的文件夹ID")
			return
		}
		folderID = &id
	}

	items, total, err := h.contentService.List(userID, page, pageSize, folderID, search)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 邮件详情
// GET /api/v1/newsletters/:id
func (h *NewsletterHandler) Get(c *gin.Context) {
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

	detail, err := h.contentService.GetDetail(userID, itemID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrItemNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrItemPermission):
			response.PermissionError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, detail)
}

// Import 手动导入一封 newsletter（邮箱转发之外的补充入口）
// POST /api/v1/newsletters/import
func (h *NewsletterHandler) Import(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.StoreNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	// 只允许导入到自己的收件箱
	req.UserID = userID
	req.Source = "import"

	result, err := h.contentService.Store(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrEmptyContent) {
			response.ParamError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	if result.Skipped {
		// 额度拒绝不是错误，前端按 result.reason 提示升级
		response.SuccessWithMessage(c, "存储额度已满，该邮件未保存", result)
		return
	}

	response.SuccessWithMessage(c, "导入成功", result)
}
