package service

import (
	"codepath_backend/internal/model"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func policyFixture() (*DecisionPolicy, *fakeGenerator, *fakeActionStore) {
	generator := &fakeGenerator{fragmentIDs: map[string]uint{}}
	actions := &fakeActionStore{}
	return NewDecisionPolicy(generator, actions), generator, actions
}

func fastSubmission(lessonID uint, seconds int) *model.Submission {
	sub := &model.Submission{UserID: 42, LessonID: lessonID, Passed: true, TimeToSolveSeconds: seconds}
	sub.ID = "s1"
	return sub
}

func lessonConcepts(keys ...string) []model.LessonConcept {
	concepts := make([]model.LessonConcept, len(keys))
	for i, key := range keys {
		concepts[i] = model.LessonConcept{LessonID: 7, ConceptKey: key, MasteryWeight: 40, Position: i}
	}
	return concepts
}

func TestExcellenceBeforeRemediation(t *testing.T) {
	policy, generator, actions := policyFixture()
	generator.problemID = 11
	generator.fragmentIDs["loop"] = 21

	profile := model.DefaultProfile(42)
	profile.ConceptMastery["loop"] = 0.2

	action, err := policy.Evaluate(context.Background(), profile, lessonConcepts("variables", "recursion"), fastSubmission(7, 20))
	require.NoError(t, err)
	require.NotNil(t, action)

	// 20 秒解题且掌握度 0.2：优先走优秀路径，不碰补救
	assert.Equal(t, model.ActionGenerateProblem, action.ActionType)
	assert.Equal(t, uint(11), action.RelatedID)
	require.Len(t, generator.calls, 1)
	assert.Equal(t, "problem", generator.calls[0].kind)
	assert.Equal(t, "variables", generator.calls[0].source)
	assert.Equal(t, "recursion", generator.calls[0].target)
	assert.Len(t, actions.created, 1)
}

func TestNullBridgingFallsThroughToRemediation(t *testing.T) {
	policy, generator, actions := policyFixture()
	generator.problemID = 0 // 没有合适的桥接题
	generator.fragmentIDs["loop"] = 21

	profile := model.DefaultProfile(42)
	profile.ConceptMastery["loop"] = 0.2

	action, err := policy.Evaluate(context.Background(), profile, lessonConcepts("variables", "recursion"), fastSubmission(7, 20))
	require.NoError(t, err)
	require.NotNil(t, action)

	assert.Equal(t, model.ActionInjectFragment, action.ActionType)
	assert.Equal(t, uint(21), action.RelatedID)
	require.Len(t, generator.calls, 2)
	assert.Equal(t, "problem", generator.calls[0].kind)
	assert.Equal(t, "fragment", generator.calls[1].kind)
	assert.Len(t, actions.created, 1)
}

func TestSlowSolveSkipsExcellence(t *testing.T) {
	policy, generator, _ := policyFixture()
	generator.problemID = 11

	profile := model.DefaultProfile(42)
	profile.ConceptMastery["loop"] = 0.9

	action, err := policy.Evaluate(context.Background(), profile, lessonConcepts("variables", "recursion"), fastSubmission(7, 45))
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Len(t, generator.calls, 0)
}

func TestExcellenceRequiresConcepts(t *testing.T) {
	policy, generator, _ := policyFixture()
	generator.problemID = 11

	action, err := policy.Evaluate(context.Background(), model.DefaultProfile(42), nil, fastSubmission(7, 10))
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Len(t, generator.calls, 0)
}

func TestRemediationScansFullProfile(t *testing.T) {
	policy, generator, _ := policyFixture()
	generator.fragmentIDs["pointer"] = 33

	// 档案里的薄弱知识点不在本课知识点列表里，照样触发补救
	profile := model.DefaultProfile(42)
	profile.ConceptMastery["pointer"] = 0.3

	action, err := policy.Evaluate(context.Background(), profile, lessonConcepts("variables"), fastSubmission(7, 90))
	require.NoError(t, err)
	require.NotNil(t, action)

	assert.Equal(t, model.ActionInjectFragment, action.ActionType)
	assert.Equal(t, uint(33), action.RelatedID)
	require.Len(t, generator.calls, 1)
	assert.Equal(t, "pointer", generator.calls[0].concept)
	assert.Equal(t, uint(7), generator.calls[0].lesson)
}

func TestRemediationScanOrderIsDeterministic(t *testing.T) {
	policy, generator, _ := policyFixture()
	generator.fragmentIDs["array"] = 31
	generator.fragmentIDs["loop"] = 32

	profile := model.DefaultProfile(42)
	profile.ConceptMastery["loop"] = 0.1
	profile.ConceptMastery["array"] = 0.1

	action, err := policy.Evaluate(context.Background(), profile, nil, fastSubmission(7, 90))
	require.NoError(t, err)
	require.NotNil(t, action)

	// 按键排序扫描：array 在 loop 之前
	assert.Equal(t, uint(31), action.RelatedID)
}

func TestMasteredProfileProducesNoAction(t *testing.T) {
	policy, generator, actions := policyFixture()

	profile := model.DefaultProfile(42)
	profile.ConceptMastery["loop"] = 0.8

	action, err := policy.Evaluate(context.Background(), profile, nil, fastSubmission(7, 90))
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Len(t, generator.calls, 0)
	assert.Len(t, actions.created, 0)
}

func TestActionStoreFailureDropsIntervention(t *testing.T) {
	policy, generator, actions := policyFixture()
	generator.problemID = 11
	actions.err = errors.New("connection refused")

	profile := model.DefaultProfile(42)

	// 账本和档案更新已提交，重试不会重新决策：动作只能丢弃，任务不能失败
	action, err := policy.Evaluate(context.Background(), profile, lessonConcepts("variables", "recursion"), fastSubmission(7, 20))
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Len(t, actions.created, 0)
}

func TestGenerationErrorIsNotJobFailure(t *testing.T) {
	policy, generator, actions := policyFixture()
	generator.problemErr = errors.New("AI API error (status 503)")
	generator.fragmentErr = errors.New("AI API error (status 503)")

	profile := model.DefaultProfile(42)
	profile.ConceptMastery["loop"] = 0.2

	// 内容生成故障只意味着本轮不干预，档案更新照常提交
	action, err := policy.Evaluate(context.Background(), profile, lessonConcepts("variables"), fastSubmission(7, 10))
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Len(t, actions.created, 0)
}
