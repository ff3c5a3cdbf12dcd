package controller

import (
	"codepath_backend/internal/service"
	"codepath_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// LessonController 课程读取与提交判题入口
type LessonController struct {
	LessonService     *service.LessonService
	SubmissionService *service.SubmissionService
}

func NewLessonController(lessonService *service.LessonService, submissionService *service.SubmissionService) *LessonController {
	return &LessonController{
		LessonService:     lessonService,
		SubmissionService: submissionService,
	}
}

// @Summary 课程列表
// @Description 获取所有已发布课程
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/lessons [get]
func (c *LessonController) ListLessons(ctx *gin.Context) {
	lessons, err := c.LessonService.List()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, lessons)
}

// @Summary 课程详情
// @Description 获取单个课程（含知识点权重，隐藏测试代码）
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id} [get]
func (c *LessonController) GetLesson(ctx *gin.Context) {
	lessonID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	lesson, err := c.LessonService.Get(uint(lessonID))
	if err != nil {
		if err == util.ErrLessonNotFound {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, lesson)
}

// @Summary 提交解答
// @Description 判题并记录提交；通过后异步触发认知档案分析
// @Tags 课程
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Param submission body service.SubmitRequest true "提交内容"
// @Success 200 {object} util.Response
// @Router /api/lessons/{id}/submissions [post]
func (c *LessonController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	lessonID, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		util.BadRequest(ctx, "invalid lesson id")
		return
	}

	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.SubmissionService.Submit(ctx.Request.Context(), user.UserID, uint(lessonID), req)
	if err != nil {
		switch err {
		case util.ErrLessonNotFound, util.ErrLessonNotPublished:
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}
