package service

import (
	"codepath_backend/internal/model"
	"codepath_backend/pkg/queue"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnalysisFixture() (*AnalysisService, *fakeLessonStore, *fakeSubmissionStore, *fakeProfileStore, *fakeGenerator, *fakeActionStore) {
	lessons := &fakeLessonStore{weights: map[uint][]model.LessonConcept{}}
	submissions := &fakeSubmissionStore{submissions: map[string]*model.Submission{}}
	profiles := newFakeProfileStore()
	generator := &fakeGenerator{fragmentIDs: map[string]uint{}}
	actions := &fakeActionStore{}
	policy := NewDecisionPolicy(generator, actions)
	svc := NewAnalysisService(lessons, submissions, profiles, policy)
	return svc, lessons, submissions, profiles, generator, actions
}

func passingSubmission(id string, userID, lessonID uint, seconds, churn int) *model.Submission {
	sub := &model.Submission{
		UserID:             userID,
		LessonID:           lessonID,
		Passed:             true,
		TimeToSolveSeconds: seconds,
		CodeChurn:          churn,
	}
	sub.ID = id
	return sub
}

func TestComputeGains(t *testing.T) {
	weights := []model.LessonConcept{
		{LessonID: 1, ConceptKey: "loop", MasteryWeight: 50, Position: 0},
	}

	// 45 秒（<60 奖励 0.02）、改动 10 行（<50 奖励 0.01）
	sub := passingSubmission("s1", 1, 1, 45, 10)
	gains := ComputeGains(weights, sub)

	assert.InDelta(t, 0.58, gains["loop"], 1e-9)
}

func TestComputeGainsWithoutBonuses(t *testing.T) {
	weights := []model.LessonConcept{
		{LessonID: 1, ConceptKey: "array", MasteryWeight: 30, Position: 0},
	}

	sub := passingSubmission("s1", 1, 1, 120, 80)
	gains := ComputeGains(weights, sub)

	assert.InDelta(t, 0.35, gains["array"], 1e-9)
}

func TestApplyGainsClampsToOne(t *testing.T) {
	profile := model.DefaultProfile(1)
	profile.ConceptMastery["loop"] = 0.9

	ApplyGains(profile, map[string]float64{"loop": 0.58})

	assert.Equal(t, 1.0, profile.ConceptMastery["loop"])
}

func TestAnalyzeUpdatesProfileAndDecaysFrustration(t *testing.T) {
	svc, lessons, submissions, profiles, _, _ := newAnalysisFixture()

	lessons.weights[7] = []model.LessonConcept{
		{LessonID: 7, ConceptKey: "recursion", MasteryWeight: 50, Position: 0},
	}
	submissions.submissions["s1"] = passingSubmission("s1", 42, 7, 45, 10)

	err := svc.Analyze(context.Background(), AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: "s1"})
	require.NoError(t, err)

	profile := profiles.profiles[42]
	require.NotNil(t, profile)
	assert.InDelta(t, 0.58, profile.ConceptMastery["recursion"], 1e-9)
	// 默认挫败感 0.1，成功一次后衰减到地板 0
	assert.Equal(t, 0.0, profile.FrustrationLevel)
}

func TestAnalyzeFrustrationNeverBelowZero(t *testing.T) {
	svc, lessons, submissions, profiles, _, _ := newAnalysisFixture()

	lessons.weights[7] = nil
	for i, id := range []string{"s1", "s2", "s3", "s4"} {
		submissions.submissions[id] = passingSubmission(id, 42, 7, 200+i, 100)
		err := svc.Analyze(context.Background(), AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: id})
		require.NoError(t, err)
	}

	assert.Equal(t, 0.0, profiles.profiles[42].FrustrationLevel)
}

func TestAnalyzeEmptyConceptListSkipsMastery(t *testing.T) {
	svc, lessons, submissions, profiles, _, _ := newAnalysisFixture()

	lessons.weights[7] = nil
	submissions.submissions["s1"] = passingSubmission("s1", 42, 7, 45, 10)

	err := svc.Analyze(context.Background(), AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: "s1"})
	require.NoError(t, err)

	profile := profiles.profiles[42]
	assert.Empty(t, profile.ConceptMastery)
	assert.Equal(t, 0.0, profile.FrustrationLevel)
}

func TestAnalyzeMissingSubmissionFailsJob(t *testing.T) {
	svc, _, _, _, _, _ := newAnalysisFixture()

	// 提交不存在是上游数据一致性问题，任务必须失败以便队列重试
	err := svc.Analyze(context.Background(), AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: "missing"})
	assert.Error(t, err)
}

func TestAnalyzeRedeliveryIsIdempotent(t *testing.T) {
	svc, lessons, submissions, profiles, generator, actions := newAnalysisFixture()

	lessons.weights[7] = []model.LessonConcept{
		{LessonID: 7, ConceptKey: "loop", MasteryWeight: 50, Position: 0},
	}
	// 快速解题，第一次投递会产生一个桥接题动作
	generator.problemID = 11
	submissions.submissions["s1"] = passingSubmission("s1", 42, 7, 20, 10)

	payload := AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: "s1"}
	require.NoError(t, svc.Analyze(context.Background(), payload))

	first := profiles.profiles[42].ConceptMastery["loop"]
	require.Len(t, actions.created, 1)

	// 重投递：掌握度不变，不再产生动作
	require.NoError(t, svc.Analyze(context.Background(), payload))
	assert.Equal(t, first, profiles.profiles[42].ConceptMastery["loop"])
	assert.Len(t, actions.created, 1)
	assert.Len(t, generator.calls, 1)
}

func TestAnalyzeAtMostOneActionPerJob(t *testing.T) {
	svc, lessons, submissions, _, generator, actions := newAnalysisFixture()

	lessons.weights[7] = []model.LessonConcept{
		{LessonID: 7, ConceptKey: "loop", MasteryWeight: 10, Position: 0},
		{LessonID: 7, ConceptKey: "recursion", MasteryWeight: 10, Position: 1},
	}
	// 既满足优秀检查，掌握度也都低于补救阈值
	generator.problemID = 11
	generator.fragmentIDs["loop"] = 21
	submissions.submissions["s1"] = passingSubmission("s1", 42, 7, 20, 10)

	err := svc.Analyze(context.Background(), AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: "s1"})
	require.NoError(t, err)

	require.Len(t, actions.created, 1)
	assert.Equal(t, model.ActionGenerateProblem, actions.created[0].ActionType)
}

func TestAnalyzeActionStoreFailureDoesNotRetry(t *testing.T) {
	svc, lessons, submissions, profiles, generator, actions := newAnalysisFixture()

	lessons.weights[7] = []model.LessonConcept{
		{LessonID: 7, ConceptKey: "loop", MasteryWeight: 50, Position: 0},
	}
	generator.problemID = 11
	actions.err = errInfra
	submissions.submissions["s1"] = passingSubmission("s1", 42, 7, 20, 10)

	// 动作写入失败时任务必须成功返回：档案更新已提交且账本已记录，
	// 重试只会在账本处短路，白白烧掉重试次数
	err := svc.Analyze(context.Background(), AnalyzeSubmissionPayload{UserID: 42, LessonID: 7, SubmissionID: "s1"})
	require.NoError(t, err)

	assert.InDelta(t, 0.58, profiles.profiles[42].ConceptMastery["loop"], 1e-9)
	assert.Len(t, actions.created, 0)
}

func TestHandleJobRejectsMalformedPayload(t *testing.T) {
	svc, _, _, _, _, _ := newAnalysisFixture()

	err := svc.HandleJob(context.Background(), &queue.Job{
		Type:    JobAnalyzeSubmission,
		Payload: []byte("not json"),
	})
	assert.Error(t, err)
}
