package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/pkg/logger"
	"codepath_backend/pkg/monitoring"
	"context"
	"sort"

	"go.uber.org/zap"
)

const (
	// 解题快于该秒数视为优秀，优先奖励挑战而不是检查薄弱点
	excellenceSeconds = 30
	// 掌握度低于该阈值的知识点触发补救
	remediationThreshold = 0.4
)

// ContentGenerator 外部内容协作方。返回 0 表示"没有合适的内容"，
// 策略将其视为本轮不干预，不是错误
type ContentGenerator interface {
	GenerateBridgingProblem(ctx context.Context, sourceConcept, targetConcept string) (uint, error)
	GenerateOrSelectRemedialFragment(ctx context.Context, lessonID uint, conceptKey string) (uint, error)
}

// ActionStore 动作日志的写入口
type ActionStore interface {
	Create(action *model.AdaptiveAction) error
}

// DecisionPolicy 在档案更新后运行一次，按优先级选出至多一个干预动作：
//  1. 优秀检查：快速解题且课程有知识点 → 生成桥接题（首尾知识点相连）
//  2. 补救检查：扫描整个档案（不只是本课知识点），第一个掌握度
//     低于阈值的知识点 → 注入补救片段
//  3. 都不命中则不产生任何动作，这是常态
type DecisionPolicy struct {
	Generator ContentGenerator
	Actions   ActionStore
}

func NewDecisionPolicy(generator ContentGenerator, actions ActionStore) *DecisionPolicy {
	return &DecisionPolicy{Generator: generator, Actions: actions}
}

// Evaluate 返回创建的动作；没有干预时返回 (nil, nil)。
// 动作落库失败也不会让任务失败：此时幂等账本和档案更新已经提交，
// 任务重试会在账本处短路、永远回不到这里，动作无法重建，只能丢弃并记错误
func (p *DecisionPolicy) Evaluate(ctx context.Context, profile *model.CognitiveProfile, concepts []model.LessonConcept, submission *model.Submission) (*model.AdaptiveAction, error) {
	action, err := p.decide(ctx, profile, concepts, submission)
	if err != nil {
		logger.Log.Error("Failed to persist adaptive action, dropping intervention",
			zap.Uint("userId", profile.UserID),
			zap.String("submissionId", submission.ID),
			zap.Error(err))
		return nil, nil
	}
	return action, nil
}

func (p *DecisionPolicy) decide(ctx context.Context, profile *model.CognitiveProfile, concepts []model.LessonConcept, submission *model.Submission) (*model.AdaptiveAction, error) {
	if action, err := p.checkExcellence(ctx, profile, concepts, submission); action != nil || err != nil {
		return action, err
	}
	return p.checkRemediation(ctx, profile, submission)
}

func (p *DecisionPolicy) checkExcellence(ctx context.Context, profile *model.CognitiveProfile, concepts []model.LessonConcept, submission *model.Submission) (*model.AdaptiveAction, error) {
	if submission.TimeToSolveSeconds >= excellenceSeconds || len(concepts) == 0 {
		return nil, nil
	}

	sourceConcept := concepts[0].ConceptKey
	targetConcept := concepts[len(concepts)-1].ConceptKey

	problemID, err := p.Generator.GenerateBridgingProblem(ctx, sourceConcept, targetConcept)
	if err != nil {
		// 内容生成失败不等于任务失败：档案更新已提交，本轮放弃干预
		logger.Log.Warn("Bridging problem generation failed",
			zap.String("source", sourceConcept),
			zap.String("target", targetConcept),
			zap.Error(err))
		return nil, nil
	}
	if problemID == 0 {
		return nil, nil
	}

	return p.record(profile.UserID, model.ActionGenerateProblem, problemID)
}

func (p *DecisionPolicy) checkRemediation(ctx context.Context, profile *model.CognitiveProfile, submission *model.Submission) (*model.AdaptiveAction, error) {
	// 按知识点键排序扫描，替代 map 的偶然遍历顺序，结果可复现
	keys := make([]string, 0, len(profile.ConceptMastery))
	for key := range profile.ConceptMastery {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if profile.ConceptMastery[key] >= remediationThreshold {
			continue
		}

		fragmentID, err := p.Generator.GenerateOrSelectRemedialFragment(ctx, submission.LessonID, key)
		if err != nil {
			logger.Log.Warn("Remedial fragment generation failed",
				zap.String("concept", key),
				zap.Error(err))
			continue
		}
		if fragmentID == 0 {
			continue
		}

		return p.record(profile.UserID, model.ActionInjectFragment, fragmentID)
	}

	return nil, nil
}

func (p *DecisionPolicy) record(userID uint, actionType model.ActionType, relatedID uint) (*model.AdaptiveAction, error) {
	action := &model.AdaptiveAction{
		UserID:     userID,
		ActionType: actionType,
		RelatedID:  relatedID,
	}
	if err := p.Actions.Create(action); err != nil {
		return nil, err
	}

	monitoring.ActionCounter.WithLabelValues(string(actionType)).Inc()
	logger.Log.Info("Adaptive action created",
		zap.Uint("userId", userID),
		zap.String("type", string(actionType)),
		zap.Uint("relatedId", relatedID))
	return action, nil
}
