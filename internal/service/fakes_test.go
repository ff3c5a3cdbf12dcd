package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/pkg/logger"
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	os.Exit(m.Run())
}

// ---- 存储层假实现 ----

type fakeLessonStore struct {
	weights map[uint][]model.LessonConcept
	lessons map[uint]*model.Lesson
	err     error
}

func (f *fakeLessonStore) ConceptWeights(lessonID uint) ([]model.LessonConcept, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.weights[lessonID], nil
}

func (f *fakeLessonStore) FindByID(id uint) (*model.Lesson, error) {
	if f.err != nil {
		return nil, f.err
	}
	lesson, ok := f.lessons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return lesson, nil
}

type fakeSubmissionStore struct {
	submissions map[string]*model.Submission
	created     []*model.Submission
	err         error
}

func (f *fakeSubmissionStore) FindByID(id string) (*model.Submission, error) {
	if f.err != nil {
		return nil, f.err
	}
	sub, ok := f.submissions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return sub, nil
}

func (f *fakeSubmissionStore) Create(submission *model.Submission) error {
	if f.err != nil {
		return f.err
	}
	if submission.ID == "" {
		submission.ID = fmt.Sprintf("sub-%d", len(f.created)+1)
	}
	f.created = append(f.created, submission)
	return nil
}

// fakeProfileStore 复刻仓库的原子语义：幂等账本 + 惰性默认档案
type fakeProfileStore struct {
	profiles  map[uint]*model.CognitiveProfile
	processed map[string]bool
	err       error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles:  make(map[uint]*model.CognitiveProfile),
		processed: make(map[string]bool),
	}
}

func (f *fakeProfileStore) ApplyAnalysis(ctx context.Context, userID uint, submissionID string, apply func(p *model.CognitiveProfile)) (*model.CognitiveProfile, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	key := fmt.Sprintf("%d/%s", userID, submissionID)
	if f.processed[key] {
		return f.profiles[userID], false, nil
	}
	f.processed[key] = true

	profile, ok := f.profiles[userID]
	if !ok {
		profile = model.DefaultProfile(userID)
		f.profiles[userID] = profile
	}
	apply(profile)
	return profile, true, nil
}

// ---- 决策策略的协作方假实现 ----

type generatorCall struct {
	kind    string
	source  string
	target  string
	lesson  uint
	concept string
}

type fakeGenerator struct {
	problemID  uint
	problemErr error
	// fragmentIDs 按知识点给出片段 ID，缺省为 0（无合适内容）
	fragmentIDs map[string]uint
	fragmentErr error
	calls       []generatorCall
}

func (f *fakeGenerator) GenerateBridgingProblem(ctx context.Context, sourceConcept, targetConcept string) (uint, error) {
	f.calls = append(f.calls, generatorCall{kind: "problem", source: sourceConcept, target: targetConcept})
	return f.problemID, f.problemErr
}

func (f *fakeGenerator) GenerateOrSelectRemedialFragment(ctx context.Context, lessonID uint, conceptKey string) (uint, error) {
	f.calls = append(f.calls, generatorCall{kind: "fragment", lesson: lessonID, concept: conceptKey})
	return f.fragmentIDs[conceptKey], f.fragmentErr
}

type fakeActionStore struct {
	created []*model.AdaptiveAction
	err     error
}

func (f *fakeActionStore) Create(action *model.AdaptiveAction) error {
	if f.err != nil {
		return f.err
	}
	action.ID = uint(len(f.created) + 1)
	action.CreatedAt = time.Now()
	f.created = append(f.created, action)
	return nil
}

// ---- 动作投递的假实现 ----

type fakeActionLog struct {
	actions []*model.AdaptiveAction
}

func (f *fakeActionLog) FindOldestPending(userID uint) (*model.AdaptiveAction, error) {
	var oldest *model.AdaptiveAction
	for _, a := range f.actions {
		if a.UserID != userID || a.IsCompleted {
			continue
		}
		if oldest == nil || a.CreatedAt.Before(oldest.CreatedAt) {
			oldest = a
		}
	}
	if oldest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return oldest, nil
}

func (f *fakeActionLog) FindPendingOwned(userID, actionID uint) (*model.AdaptiveAction, error) {
	for _, a := range f.actions {
		if a.ID == actionID && a.UserID == userID && !a.IsCompleted {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeActionLog) Complete(userID, actionID uint) (int64, error) {
	for _, a := range f.actions {
		if a.ID == actionID && a.UserID == userID && !a.IsCompleted {
			a.IsCompleted = true
			return 1, nil
		}
	}
	return 0, nil
}

type fakeContentStore struct {
	fragments map[uint]*model.ContentFragment
	problems  map[uint]*model.GeneratedProblem
}

func (f *fakeContentStore) FindFragmentByID(id uint) (*model.ContentFragment, error) {
	fragment, ok := f.fragments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return fragment, nil
}

func (f *fakeContentStore) FindProblemByID(id uint) (*model.GeneratedProblem, error) {
	problem, ok := f.problems[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return problem, nil
}

type fakeExecutor struct {
	result *ExecResult
	err    error
	code   string
}

func (f *fakeExecutor) Execute(ctx context.Context, code, language string) (*ExecResult, error) {
	f.code = code
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeEnqueuer struct {
	jobs []struct {
		Type    string
		Payload interface{}
	}
	err error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, struct {
		Type    string
		Payload interface{}
	}{jobType, payload})
	return fmt.Sprintf("job-%d", len(f.jobs)), nil
}

var errInfra = errors.New("connection refused")
