package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/internal/util"
	"codepath_backend/pkg/logger"
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type (
	LessonReader interface {
		FindByID(id uint) (*model.Lesson, error)
	}

	SubmissionWriter interface {
		Create(submission *model.Submission) error
	}

	// JobEnqueuer 任务队列的生产端
	JobEnqueuer interface {
		Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error)
	}
)

type SubmitRequest struct {
	Code             string `json:"code" binding:"required"`
	Language         string `json:"language"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	CodeChurn        int    `json:"codeChurn"`
}

type SubmitResult struct {
	SubmissionID string `json:"submissionId"`
	Success      bool   `json:"success"`
	Message      string `json:"message"`
}

// SubmissionService 判题请求路径里的生产者：执行判题、落库提交与遥测，
// 判题通过后恰好入队一条分析任务。分析相对判题是 fire-and-forget，
// 入队失败只记日志，不影响学生拿到判题结果
type SubmissionService struct {
	Lessons     LessonReader
	Submissions SubmissionWriter
	Executor    CodeExecutor
	Queue       JobEnqueuer
}

func NewSubmissionService(lessons LessonReader, submissions SubmissionWriter, executor CodeExecutor, queue JobEnqueuer) *SubmissionService {
	return &SubmissionService{
		Lessons:     lessons,
		Submissions: submissions,
		Executor:    executor,
		Queue:       queue,
	}
}

func (s *SubmissionService) Submit(ctx context.Context, userID, lessonID uint, req SubmitRequest) (*SubmitResult, error) {
	lesson, err := s.Lessons.FindByID(lessonID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrLessonNotFound
	}
	if err != nil {
		return nil, err
	}
	if !lesson.IsPublished {
		return nil, util.ErrLessonNotPublished
	}

	language := req.Language
	if language == "" {
		language = lesson.Language
	}

	execution, err := s.Executor.Execute(ctx, req.Code+"\n"+lesson.TestCode, language)
	if err != nil {
		logger.Log.Error("Executor unavailable while grading submission", zap.Error(err))
		return &SubmitResult{
			Success: false,
			Message: "代码执行服务暂时不可用，请稍后再试",
		}, nil
	}

	submission := &model.Submission{
		UserID:             userID,
		LessonID:           lessonID,
		Code:               req.Code,
		Language:           language,
		Passed:             execution.Success,
		Output:             execution.Output,
		TimeToSolveSeconds: req.TimeSpentSeconds,
		CodeChurn:          req.CodeChurn,
	}
	if err := s.Submissions.Create(submission); err != nil {
		return nil, err
	}

	if execution.Success {
		jobID, err := s.Queue.Enqueue(ctx, JobAnalyzeSubmission, AnalyzeSubmissionPayload{
			UserID:       userID,
			LessonID:     lessonID,
			SubmissionID: submission.ID,
		})
		if err != nil {
			logger.Log.Error("Failed to enqueue analysis job",
				zap.String("submissionId", submission.ID),
				zap.Error(err))
		} else {
			logger.Log.Debug("Analysis job enqueued",
				zap.String("jobId", jobID),
				zap.String("submissionId", submission.ID))
		}
		return &SubmitResult{
			SubmissionID: submission.ID,
			Success:      true,
			Message:      "恭喜，所有测试通过！",
		}, nil
	}

	return &SubmitResult{
		SubmissionID: submission.ID,
		Success:      false,
		Message:      FailureMessage(execution.Output),
	}, nil
}
