package generation

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/kaptinlin/jsonrepair"
)

// MaxGradedAnswers 单个问题保留的分级答案上限
const MaxGradedAnswers = 12

var gradedLinePattern = regexp.MustCompile(`^([0-3])\)\s*(.+)$`)

// ParseGradedAnswers 解析 "<0-3>) <answer>" 格式的行，其余行丢弃，最多保留前 12 条
func ParseGradedAnswers(raw string) []model.ScoredAnswer {
	out := make([]model.ScoredAnswer, 0, MaxGradedAnswers)
	for _, line := range strings.Split(raw, "\n") {
		m := gradedLinePattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		answer := strings.TrimSpace(m[2])
		if answer == "" {
			continue
		}
		score, _ := strconv.Atoi(m[1])
		out = append(out, model.ScoredAnswer{Answer: answer, Score: score})
		if len(out) == MaxGradedAnswers {
			break
		}
	}
	return out
}

// repairJSON 去掉代码块标记，无效时用 jsonrepair 修复
func repairJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	if json.Valid([]byte(s)) {
		return s
	}

	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return s
	}
	return out
}

// extractList 按顺序查找列表：顶层数组、data 字段、第一个数组字段
func extractList(raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		var v interface{}
		return nil, json.Unmarshal(raw, &v)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
	default:
		return nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if data, ok := obj["data"]; ok && isArray(data) {
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	// map 无序，按原始顺序逐个字段读取
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if isArray(v) {
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, err
			}
			return list, nil
		}
	}
	return nil, nil
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}
