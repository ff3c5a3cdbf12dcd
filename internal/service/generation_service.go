package service

import (
	"bytes"
	"codepath_backend/internal/config"
	"codepath_backend/internal/model"
	"codepath_backend/internal/repository"
	"codepath_backend/pkg/logger"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GenerationService 外部内容生成协作方：桥接题与补救片段。
// 调用 OpenAI 兼容接口；返回 0 表示"没有合适的内容"，
// 决策策略将其视为不产生动作，而不是错误
type GenerationService struct {
	config  config.AIConfig
	content *repository.ContentRepository
	client  *http.Client
}

func NewGenerationService(cfg config.AIConfig, content *repository.ContentRepository) *GenerationService {
	return &GenerationService{
		config:  cfg,
		content: content,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type aiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message aiChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateBridgingProblem 为快速解题的学生生成连接两个知识点的挑战题。
// 生成失败或输出无法解析时返回 0
func (s *GenerationService) GenerateBridgingProblem(ctx context.Context, sourceConcept, targetConcept string) (uint, error) {
	prompt := fmt.Sprintf(
		"学生刚刚快速完成了一道涉及「%s」的练习。请设计一道 JavaScript 桥接题，把「%s」和更进一阶的「%s」联系起来。\n"+
			"只输出 JSON，不要输出其他内容，格式：\n"+
			`{"title":"题目标题","description":"题目描述（中文）","starterCode":"function solve() {\n}","testCode":"用 console.assert 或 throw new Error 的断言测试代码"}`,
		sourceConcept, sourceConcept, targetConcept,
	)

	content, err := s.chatComplete(ctx, "你是一个编程教育出题专家，擅长设计承上启下的编程挑战。", prompt)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		StarterCode string `json:"starterCode"`
		TestCode    string `json:"testCode"`
	}
	if err := json.Unmarshal([]byte(ExtractJSONBlock(content)), &parsed); err != nil {
		logger.Log.Warn("Bridging problem output not parseable", zap.Error(err))
		return 0, nil
	}
	if parsed.Title == "" || parsed.TestCode == "" {
		return 0, nil
	}

	problem := &model.GeneratedProblem{
		Title:         parsed.Title,
		Description:   parsed.Description,
		StarterCode:   parsed.StarterCode,
		TestCode:      parsed.TestCode,
		SourceConcept: sourceConcept,
		TargetConcept: targetConcept,
	}
	if err := s.content.CreateProblem(problem); err != nil {
		return 0, err
	}
	return problem.ID, nil
}

// GenerateOrSelectRemedialFragment 优先复用已有的补救片段，
// 没有可复用的再生成一条
func (s *GenerationService) GenerateOrSelectRemedialFragment(ctx context.Context, lessonID uint, conceptKey string) (uint, error) {
	existing, err := s.content.FindFragmentForConcept(lessonID, conceptKey)
	if err == nil {
		return existing.ID, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	prompt := fmt.Sprintf(
		"学生在知识点「%s」上掌握度偏低。请写一段简短的补救性讲解（中文，带一个小代码示例）。\n"+
			"只输出 JSON，格式：{\"title\":\"标题\",\"body\":\"讲解正文（Markdown）\"}",
		conceptKey,
	)

	content, err := s.chatComplete(ctx, "你是一个耐心的编程教育助教，擅长用最小的例子讲清概念。", prompt)
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	}
	if err := json.Unmarshal([]byte(ExtractJSONBlock(content)), &parsed); err != nil {
		logger.Log.Warn("Remedial fragment output not parseable", zap.Error(err))
		return 0, nil
	}
	if parsed.Title == "" || parsed.Body == "" {
		return 0, nil
	}

	fragment := &model.ContentFragment{
		LessonID:   lessonID,
		ConceptKey: conceptKey,
		Title:      parsed.Title,
		Body:       parsed.Body,
		Source:     "generated",
	}
	if err := s.content.CreateFragment(fragment); err != nil {
		return 0, err
	}
	return fragment.ID, nil
}

func (s *GenerationService) chatComplete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": s.config.Model,
		"messages": []aiChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
	}

	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", s.config.BaseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("AI API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Error != nil {
		return "", fmt.Errorf("AI API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("AI API returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// ExtractJSONBlock 从模型输出里截取第一个 JSON 对象，容忍 Markdown 代码栅栏
func ExtractJSONBlock(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}
