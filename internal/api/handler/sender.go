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

type SenderHandler struct {
	senderService *service.SenderService
}

func NewSenderHandler(senderService *service.SenderService) *SenderHandler {
	return &SenderHandler{
		senderService: senderService,
	}
}

// ListSenders 发件人列表
// GET /api/v1/senders
func (h *SenderHandler) ListSenders(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	senders, err := h.senderService.ListSenders(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, senders)
}

// UpdateSender 修改发件人设置
// PUT /api/v1/senders/:id
func (h *SenderHandler) UpdateSender(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	senderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的发件人ID")
		return
	}

	var req dto.UpdateSenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	sender, err := h.senderService.UpdateSender(userID, senderID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSenderNotFound):
			response.NotFoundError(c, err.Error())
		case errors.Is(err, service.ErrFolderNotFound):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "更新成功", sender)
}

// ListFolders 文件夹列表
// GET /api/v1/folders
func (h *SenderHandler) ListFolders(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	folders, err := h.senderService.ListFolders(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, folders)
}

// CreateFolder 新建文件夹
// POST /api/v1/folders
func (h *SenderHandler) CreateFolder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	folder, err := h.senderService.CreateFolder(userID, req.Name, req.Position)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "创建成功", folder)
}

// DeleteFolder 删除文件夹
// DELETE /api/v1/folders/:id
func (h *SenderHandler) DeleteFolder(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	folderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ParamError(c, "无效的文件夹ID")
		return
	}

	if err := h.senderService.DeleteFolder(userID, folderID); err != nil {
		if errors.Is(err, service.ErrFolderNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}
