package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/internal/util"
	"codepath_backend/pkg/logger"
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 动作投递层对存储与执行器的依赖
type (
	ActionLog interface {
		FindOldestPending(userID uint) (*model.AdaptiveAction, error)
		FindPendingOwned(userID, actionID uint) (*model.AdaptiveAction, error)
		Complete(userID, actionID uint) (int64, error)
	}

	ContentStore interface {
		FindFragmentByID(id uint) (*model.ContentFragment, error)
		FindProblemByID(id uint) (*model.GeneratedProblem, error)
	}

	CodeExecutor interface {
		Execute(ctx context.Context, code, language string) (*ExecResult, error)
	}
)

// NextActionResponse 投递给客户端的动作视图。RelatedID 在这里解析成
// 具体内容：INJECT_FRAGMENT 填 Fragment，GENERATE_PROBLEM 填 Problem
type NextActionResponse struct {
	ID         uint                    `json:"id"`
	ActionType model.ActionType        `json:"actionType"`
	CreatedAt  time.Time               `json:"createdAt"`
	Fragment   *model.ContentFragment  `json:"fragment,omitempty"`
	Problem    *model.GeneratedProblem `json:"problem,omitempty"`
}

// SolveResult 桥接题验证结果，学生代码的任何失败都走这里而不是 5xx
type SolveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ActionService 动作的消费生命周期：轮询下一个 pending 动作、
// 显式标记完成、验证桥接题解答
type ActionService struct {
	Actions  ActionLog
	Content  ContentStore
	Executor CodeExecutor
}

func NewActionService(actions ActionLog, content ContentStore, executor CodeExecutor) *ActionService {
	return &ActionService{Actions: actions, Content: content, Executor: executor}
}

// NextAction 用户最早的未完成动作，没有时返回 (nil, nil)——
// 轮询是预期的访问模式，空结果不是错误
func (s *ActionService) NextAction(userID uint) (*NextActionResponse, error) {
	action, err := s.Actions.FindOldestPending(userID)
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp := &NextActionResponse{
		ID:         action.ID,
		ActionType: action.ActionType,
		CreatedAt:  action.CreatedAt,
	}

	switch action.ActionType {
	case model.ActionInjectFragment:
		fragment, err := s.Content.FindFragmentByID(action.RelatedID)
		if err == gorm.ErrRecordNotFound {
			return nil, s.dropDangling(action)
		}
		if err != nil {
			return nil, err
		}
		resp.Fragment = fragment
	case model.ActionGenerateProblem:
		problem, err := s.Content.FindProblemByID(action.RelatedID)
		if err == gorm.ErrRecordNotFound {
			return nil, s.dropDangling(action)
		}
		if err != nil {
			return nil, err
		}
		resp.Problem = problem
	}

	return resp, nil
}

// dropDangling 引用内容已不存在的动作无法投递。标记完成把它移出
// 待处理队列，否则它会永远堵在 FIFO 的队首；对客户端表现为暂无干预
func (s *ActionService) dropDangling(action *model.AdaptiveAction) error {
	logger.Log.Warn("Pending action references missing content, completing it",
		zap.Uint("actionId", action.ID),
		zap.String("type", string(action.ActionType)),
		zap.Uint("relatedId", action.RelatedID))
	if _, err := s.Actions.Complete(action.UserID, action.ID); err != nil {
		return err
	}
	return nil
}

// CompleteAction 仅属主可以完成自己的动作；不存在、不属于该用户、
// 已完成三种情况一律返回 ErrActionNotFound，不泄露是否存在
func (s *ActionService) CompleteAction(userID, actionID uint) error {
	rows, err := s.Actions.Complete(userID, actionID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return util.ErrActionNotFound
	}
	return nil
}

// SolveProblem 验证学生对生成题的解答。动作完成是独立的显式调用，
// 验证通过不会自动完成动作
func (s *ActionService) SolveProblem(ctx context.Context, userID, actionID uint, code string) (*SolveResult, error) {
	action, err := s.Actions.FindPendingOwned(userID, actionID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrActionNotFound
	}
	if err != nil {
		return nil, err
	}
	if action.ActionType != model.ActionGenerateProblem {
		return nil, util.ErrActionNotFound
	}

	problem, err := s.Content.FindProblemByID(action.RelatedID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrProblemNotFound
	}
	if err != nil {
		return nil, err
	}

	result, err := s.Executor.Execute(ctx, code+"\n"+problem.TestCode, "javascript")
	if err != nil {
		// 执行服务不可用：兜底为失败结果，不让学生看到服务器错误
		logger.Log.Error("Executor unavailable while verifying problem", zap.Error(err))
		return &SolveResult{
			Success: false,
			Message: "代码执行服务暂时不可用，请稍后再试",
		}, nil
	}

	if result.Success {
		return &SolveResult{Success: true, Message: "恭喜，所有测试通过！"}, nil
	}

	return &SolveResult{Success: false, Message: FailureMessage(result.Output)}, nil
}

// FailureMessage 从执行输出里提取可读的断言信息，提取不到则给通用提示
func FailureMessage(output string) string {
	for _, line := range strings.Split(output, "\n") {
		idx := strings.Index(line, "AssertionError")
		if idx == -1 {
			continue
		}
		msg := line[idx:]
		if colon := strings.Index(msg, ": "); colon != -1 && colon+2 < len(msg) {
			return strings.TrimSpace(msg[colon+2:])
		}
		return strings.TrimSpace(msg)
	}
	if trimmed := strings.TrimSpace(output); trimmed != "" {
		return trimmed
	}
	return "还差一点，再试一次吧"
}
