package service

import (
	"bytes"
	"codepath_backend/internal/config"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ExecResult 一次远程执行的结果。Success=false 表示学生代码没有通过
// （编译错误、运行时异常、断言失败），不是基础设施错误
type ExecResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
}

// ExecutorService Judge0 风格的远程代码执行客户端。
// 执行服务是外部黑盒，可能慢或偶发不可用；它自身的失败以 error 返回，
// 由调用方决定如何兜底，绝不让 worker 崩溃
type ExecutorService struct {
	config config.ExecutorConfig
	client *http.Client
}

func NewExecutorService(cfg config.ExecutorConfig) *ExecutorService {
	return &ExecutorService{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Judge0 语言编号
var languageIDs = map[string]int{
	"javascript": 63,
	"python":     71,
	"java":       62,
}

type executorRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
}

type executorResponse struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Execute 同步执行一段代码并返回结果
func (s *ExecutorService) Execute(ctx context.Context, code, language string) (*ExecResult, error) {
	langID, ok := languageIDs[language]
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	jsonData, err := json.Marshal(executorRequest{
		SourceCode: code,
		LanguageID: langID,
	})
	if err != nil {
		return nil, err
	}

	url := s.config.URL + "/submissions?base64_encoded=false&wait=true"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", s.config.APIKey)
		req.Header.Set("X-RapidAPI-Host", s.config.Host)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("executor API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result executorResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	// Judge0 status 3 = Accepted
	if result.Status.ID == 3 {
		return &ExecResult{Success: true, Output: result.Stdout}, nil
	}

	output := result.Stderr
	if output == "" {
		output = result.CompileOutput
	}
	if output == "" {
		output = result.Status.Description
	}
	return &ExecResult{Success: false, Output: output}, nil
}
