package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/internal/util"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submissionFixture() (*SubmissionService, *fakeLessonStore, *fakeSubmissionStore, *fakeExecutor, *fakeEnqueuer) {
	lessons := &fakeLessonStore{lessons: map[uint]*model.Lesson{}}
	submissions := &fakeSubmissionStore{submissions: map[string]*model.Submission{}}
	executor := &fakeExecutor{result: &ExecResult{Success: true}}
	queue := &fakeEnqueuer{}
	return NewSubmissionService(lessons, submissions, executor, queue), lessons, submissions, executor, queue
}

func publishedLesson(id uint) *model.Lesson {
	lesson := &model.Lesson{
		Title:       "循环入门",
		Language:    "javascript",
		TestCode:    "assert(sum(3)===6);",
		IsPublished: true,
	}
	lesson.ID = id
	return lesson
}

func TestSubmitPassEnqueuesExactlyOneJob(t *testing.T) {
	svc, lessons, submissions, executor, queue := submissionFixture()
	lessons.lessons[7] = publishedLesson(7)

	result, err := svc.Submit(context.Background(), 42, 7, SubmitRequest{
		Code:             "function sum(n){return n*(n+1)/2}",
		TimeSpentSeconds: 45,
		CodeChurn:        10,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.SubmissionID)

	// 学生代码与隐藏测试拼接判题
	assert.Contains(t, executor.code, "assert(sum(3)===6);")

	require.Len(t, submissions.created, 1)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobAnalyzeSubmission, queue.jobs[0].Type)
	payload, ok := queue.jobs[0].Payload.(AnalyzeSubmissionPayload)
	require.True(t, ok)
	assert.Equal(t, uint(42), payload.UserID)
	assert.Equal(t, uint(7), payload.LessonID)
	assert.Equal(t, result.SubmissionID, payload.SubmissionID)
}

func TestSubmitFailureDoesNotEnqueue(t *testing.T) {
	svc, lessons, submissions, executor, queue := submissionFixture()
	lessons.lessons[7] = publishedLesson(7)
	executor.result = &ExecResult{Success: false, Output: "AssertionError: expected 6 to equal 7"}

	result, err := svc.Submit(context.Background(), 42, 7, SubmitRequest{Code: "function sum(){return 7}"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "expected 6 to equal 7", result.Message)

	// 未通过的提交照常落库，但不触发分析
	assert.Len(t, submissions.created, 1)
	assert.Len(t, queue.jobs, 0)
}

func TestSubmitUnpublishedLesson(t *testing.T) {
	svc, lessons, _, _, _ := submissionFixture()
	draft := publishedLesson(7)
	draft.IsPublished = false
	lessons.lessons[7] = draft

	_, err := svc.Submit(context.Background(), 42, 7, SubmitRequest{Code: "x"})
	assert.ErrorIs(t, err, util.ErrLessonNotPublished)
}

func TestSubmitUnknownLesson(t *testing.T) {
	svc, _, _, _, _ := submissionFixture()

	_, err := svc.Submit(context.Background(), 42, 999, SubmitRequest{Code: "x"})
	assert.ErrorIs(t, err, util.ErrLessonNotFound)
}

func TestSubmitExecutorUnavailable(t *testing.T) {
	svc, lessons, submissions, executor, queue := submissionFixture()
	lessons.lessons[7] = publishedLesson(7)
	executor.err = errInfra

	// 执行服务宕机：返回失败结果而不是错误，且不落库不入队
	result, err := svc.Submit(context.Background(), 42, 7, SubmitRequest{Code: "x"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.SubmissionID)
	assert.Len(t, submissions.created, 0)
	assert.Len(t, queue.jobs, 0)
}

func TestSubmitEnqueueFailureStillReturnsResult(t *testing.T) {
	svc, lessons, submissions, _, queue := submissionFixture()
	lessons.lessons[7] = publishedLesson(7)
	queue.err = errInfra

	// 入队失败只记日志：学生依旧拿到判题通过的结果
	result, err := svc.Submit(context.Background(), 42, 7, SubmitRequest{Code: "x"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, submissions.created, 1)
}

func TestSubmitDefaultsToLessonLanguage(t *testing.T) {
	svc, lessons, submissions, _, _ := submissionFixture()
	lesson := publishedLesson(7)
	lesson.Language = "python"
	lessons.lessons[7] = lesson

	_, err := svc.Submit(context.Background(), 42, 7, SubmitRequest{Code: "x"})
	require.NoError(t, err)
	require.Len(t, submissions.created, 1)
	assert.Equal(t, "python", submissions.created[0].Language)
}
