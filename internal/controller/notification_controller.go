package controller

import (
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Repo repository.NotificationRepository
}

func NewNotificationController(repo repository.NotificationRepository) *NotificationController {
	return &NotificationController{Repo: repo}
}

// @Summary 获取本人通知列表
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Success 200 {object} util.Response
// @Router /api/notifications [get]
func (c *NotificationController) ListNotifications(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, limit := pagination(ctx)

	notifications, total, err := c.Repo.ListByRecipient(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: notifications, Total: total, Page: page, Limit: limit})
}

// @Summary 标记通知已读
// @Tags 通知
// @Produce json
// @Security BearerAuth
// @Param id path int true "通知ID"
// @Success 200 {object} util.Response
// @Router /api/notifications/{id}/read [post]
func (c *NotificationController) MarkRead(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	id := util.MustParseUint(ctx.Param("id"))
	if id == 0 {
		util.BadRequest(ctx, "invalid id")
		return
	}

	if err := c.Repo.MarkRead(id, user.UserID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
