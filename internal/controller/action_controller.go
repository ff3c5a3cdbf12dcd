package controller

import (
	"codepath_backend/internal/service"
	"codepath_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ActionController 自适应动作的消费端点：轮询、完成、验证解答
type ActionController struct {
	ActionService *service.ActionService
}

func NewActionController(actionService *service.ActionService) *ActionController {
	return &ActionController{ActionService: actionService}
}

// @Summary 下一个待处理动作
// @Description 返回当前用户最早的未完成自适应动作；没有时 data 为空
// @Tags 自适应动作
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/users/actions/next [get]
func (c *ActionController) GetNextAction(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	action, err := c.ActionService.NextAction(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	// 空结果是常态：轮询协议里 null 表示暂无干预
	util.Success(ctx, action)
}

// @Summary 完成动作
// @Description 把属于当前用户的动作标记为已完成
// @Tags 自适应动作
// @Produce json
// @Security ApiKeyAuth
// @Param actionId path int true "动作ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/users/actions/{actionId}/complete [post]
func (c *ActionController) CompleteAction(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	actionID, err := strconv.ParseUint(ctx.Param("actionId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid action id")
		return
	}

	if err := c.ActionService.CompleteAction(user.UserID, uint(actionID)); err != nil {
		if err == util.ErrActionNotFound {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "action completed"})
}

type solveProblemRequest struct {
	Code string `json:"code" binding:"required"`
}

// @Summary 验证生成题解答
// @Description 执行学生代码加隐藏测试；学生代码的错误不会产生 5xx
// @Tags 自适应动作
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param actionId path int true "动作ID"
// @Param body body solveProblemRequest true "解答代码"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/users/actions/solve-problem/{actionId} [post]
func (c *ActionController) SolveProblem(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	actionID, err := strconv.ParseUint(ctx.Param("actionId"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid action id")
		return
	}

	var req solveProblemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ActionService.SolveProblem(ctx.Request.Context(), user.UserID, uint(actionID), req.Code)
	if err != nil {
		switch err {
		case util.ErrActionNotFound, util.ErrProblemNotFound:
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}
