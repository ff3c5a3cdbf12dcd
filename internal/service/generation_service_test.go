package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONBlock(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"裸 JSON", `{"title":"t"}`, `{"title":"t"}`},
		{"代码栅栏包裹", "```json\n{\"title\":\"t\"}\n```", `{"title":"t"}`},
		{"前后有解释文字", "好的，这是题目：\n{\"title\":\"t\"}\n希望有帮助！", `{"title":"t"}`},
		{"嵌套对象取最外层", `{"a":{"b":1}}`, `{"a":{"b":1}}`},
		{"没有 JSON 原样返回", "抱歉，我无法生成。", "抱歉，我无法生成。"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractJSONBlock(tc.content))
		})
	}
}
