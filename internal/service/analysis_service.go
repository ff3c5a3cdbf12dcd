package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/pkg/logger"
	"codepath_backend/pkg/queue"
	"context"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// JobAnalyzeSubmission 分析任务的队列类型名
const JobAnalyzeSubmission = "analyze_submission"

// AnalyzeSubmissionPayload 分析任务的消息体，生产者在判题通过后入队
type AnalyzeSubmissionPayload struct {
	UserID       uint   `json:"userId"`
	LessonID     uint   `json:"lessonId"`
	SubmissionID string `json:"submissionId"`
}

// 分析引擎对存储层的最小依赖，测试用假实现替换
type (
	LessonStore interface {
		ConceptWeights(lessonID uint) ([]model.LessonConcept, error)
	}

	SubmissionStore interface {
		FindByID(id string) (*model.Submission, error)
	}

	ProfileStore interface {
		ApplyAnalysis(ctx context.Context, userID uint, submissionID string, apply func(p *model.CognitiveProfile)) (*model.CognitiveProfile, bool, error)
	}
)

// AnalysisService 消费 analyze_submission 任务：根据提交遥测和课程的
// 知识点权重更新认知档案，然后把更新后的档案交给决策策略。
// 查找失败会让任务整体失败并进入队列重试；档案更新是原子且幂等的，
// 同一任务被重投递不会重复累计
type AnalysisService struct {
	Lessons     LessonStore
	Submissions SubmissionStore
	Profiles    ProfileStore
	Policy      *DecisionPolicy
}

func NewAnalysisService(lessons LessonStore, submissions SubmissionStore, profiles ProfileStore, policy *DecisionPolicy) *AnalysisService {
	return &AnalysisService{
		Lessons:     lessons,
		Submissions: submissions,
		Profiles:    profiles,
		Policy:      policy,
	}
}

// HandleJob 队列处理入口
func (s *AnalysisService) HandleJob(ctx context.Context, job *queue.Job) error {
	var payload AnalyzeSubmissionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal analyze payload: %w", err)
	}
	return s.Analyze(ctx, payload)
}

// Analyze 执行一次完整的分析周期
func (s *AnalysisService) Analyze(ctx context.Context, p AnalyzeSubmissionPayload) error {
	submission, err := s.Submissions.FindByID(p.SubmissionID)
	if err != nil {
		// 上游数据一致性问题，交给队列重试
		return fmt.Errorf("load submission %s: %w", p.SubmissionID, err)
	}
	if !submission.Passed {
		logger.Log.Warn("Analysis job for a non-passing submission, skipping",
			zap.String("submissionId", p.SubmissionID))
		return nil
	}

	weights, err := s.Lessons.ConceptWeights(p.LessonID)
	if err != nil {
		return fmt.Errorf("load concept weights for lesson %d: %w", p.LessonID, err)
	}

	gains := ComputeGains(weights, submission)

	profile, applied, err := s.Profiles.ApplyAnalysis(ctx, p.UserID, p.SubmissionID, func(prof *model.CognitiveProfile) {
		ApplyGains(prof, gains)
		prof.FrustrationLevel = math.Max(0.0, prof.FrustrationLevel-0.1)
	})
	if err != nil {
		return fmt.Errorf("apply analysis for user %d: %w", p.UserID, err)
	}
	if !applied {
		logger.Log.Info("Submission already analyzed, skipping redelivery",
			zap.Uint("userId", p.UserID),
			zap.String("submissionId", p.SubmissionID))
		return nil
	}

	logger.Log.Debug("Cognitive profile updated",
		zap.Uint("userId", p.UserID),
		zap.Int("concepts", len(gains)),
		zap.Float64("frustration", profile.FrustrationLevel))

	_, err = s.Policy.Evaluate(ctx, profile, weights, submission)
	return err
}

// ComputeGains 由课程知识点权重和提交遥测算出每个知识点的掌握度增量。
// 纯函数：同一输入永远得到同一增量
func ComputeGains(weights []model.LessonConcept, submission *model.Submission) map[string]float64 {
	gains := make(map[string]float64, len(weights))
	for _, w := range weights {
		gain := 0.05 + float64(w.MasteryWeight)/100.0
		if submission.TimeToSolveSeconds < 60 {
			gain += 0.02
		}
		if submission.CodeChurn < 50 {
			gain += 0.01
		}
		gains[w.ConceptKey] += gain
	}
	return gains
}

// ApplyGains 把增量累加进档案，掌握度始终钳制在 [0,1]
func ApplyGains(p *model.CognitiveProfile, gains map[string]float64) {
	if p.ConceptMastery == nil {
		p.ConceptMastery = model.MasteryMap{}
	}
	for key, gain := range gains {
		p.ConceptMastery[key] = clamp01(p.ConceptMastery[key] + gain)
	}
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
