package model

import (
	"encoding/json"
	"fmt"
)

// MinScore / MaxScore 评分等级范围
const (
	MinScore = 0
	MaxScore = 3
)

// QAItem 模型生成的单个问答集
type QAItem struct {
	Question string   `json:"question"`
	Answers  []string `json:"answers"`
	Type     string   `json:"type"`
}

// QARecord 合成问答数据集的一行
type QARecord struct {
	Input  string `json:"input"`
	Output QAItem `json:"output"`
}

// GradedAnswer 评分答案数据集的一行
type GradedAnswer struct {
	QID           string   `json:"qid,omitempty"`
	Question      string   `json:"question"`
	RefAnswers    []string `json:"ref_answers"`
	StudentAnswer string   `json:"student_answer"`
	Score         int      `json:"score"`
}

// Validate 校验评分等级
func (g *GradedAnswer) Validate() error {
	if g.Score < MinScore || g.Score > MaxScore {
		return NewError("graded.validate", KindInvalidArgument,
			fmt.Errorf("score %d out of range [%d, %d]", g.Score, MinScore, MaxScore))
	}
	return nil
}

// UnmarshalJSON 解码时强制 score 为 0-3 的整数
func (g *GradedAnswer) UnmarshalJSON(data []byte) error {
	type alias GradedAnswer
	var raw struct {
		alias
		Score json.Number `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	score, err := raw.Score.Int64()
	if err != nil {
		return NewError("graded.decode", KindInvalidArgument, fmt.Errorf("score %q is not an integer", raw.Score))
	}
	*g = GradedAnswer(raw.alias)
	g.Score = int(score)
	return g.Validate()
}

// ScoredAnswer 模型生成的带评分学生答案
type ScoredAnswer struct {
	Answer string `json:"answer"`
	Score  int    `json:"score"`
}

// TopicContext 主题背景段落
type TopicContext struct {
	Topic   string `json:"topic"`
	Context string `json:"context"`
}

// ClassifierExample 评分模型训练样本
type ClassifierExample struct {
	Context string `json:"context"`
	Student string `json:"student"`
	Label   int    `json:"label"`
}

// QGenExample 问题生成模型训练样本
type QGenExample struct {
	Input  string `json:"input"`
	Target string `json:"target"`
}
