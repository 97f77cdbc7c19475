package dataset

import (
	"bufio"
	"encoding/json"
	"math/rand"
	"os"
	"regexp"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/model"
)

// Separator 拼接问题与参考答案/背景的分隔符
const Separator = " [SEP] "

var topicPattern = regexp.MustCompile(`^(.*?):(.*)$`)

// LoadContexts 加载 topic -> context 映射，无法解析的行直接跳过。
// 文件不存在时返回空映射。
func LoadContexts(path string) map[string]string {
	contexts := make(map[string]string)

	f, err := os.Open(path)
	if err != nil {
		return contexts
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		var tc model.TopicContext
		if err := json.Unmarshal(scanner.Bytes(), &tc); err != nil {
			continue
		}
		if tc.Topic == "" {
			continue
		}
		contexts[tc.Topic] = tc.Context
	}
	return contexts
}

// TopicOf 从 "generate a <type> question about: <topic>" 中提取 topic
func TopicOf(input string) (string, bool) {
	m := topicPattern.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[2]), true
}

// ClassifierContext 构造评分模型的输入上下文
func ClassifierContext(question, ref string) string {
	if ref == "" {
		return question
	}
	return question + Separator + ref
}

// ExplodeGraded 每个参考答案展开为一条评分样本
func ExplodeGraded(rows []model.GradedAnswer, useRefs bool) []model.ClassifierExample {
	var out []model.ClassifierExample
	for _, row := range rows {
		for _, ref := range row.RefAnswers {
			ctx := row.Question
			if useRefs {
				ctx = ClassifierContext(row.Question, ref)
			}
			out = append(out, model.ClassifierExample{
				Context: ctx,
				Student: row.StudentAnswer,
				Label:   row.Score,
			})
		}
	}
	return out
}

// BuildQGenExamples 构造问题生成样本，useContext 时拼接主题背景
func BuildQGenExamples(rows []model.QARecord, contexts map[string]string, useContext bool) []model.QGenExample {
	out := make([]model.QGenExample, 0, len(rows))
	for _, row := range rows {
		input := row.Input
		if useContext && len(contexts) > 0 {
			if topic, ok := TopicOf(row.Input); ok {
				if ctx, ok := contexts[topic]; ok && ctx != "" {
					input = row.Input + Separator + ctx
				}
			}
		}
		out = append(out, model.QGenExample{Input: input, Target: row.Output.Question})
	}
	return out
}

// Split 按种子打乱后切分训练集和验证集，切分点为 int(len*(1-valSplit))
func Split[T any](rows []T, valSplit float64, seed int64) (train, val []T) {
	shuffled := make([]T, len(rows))
	copy(shuffled, rows)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(float64(len(shuffled)) * (1 - valSplit))
	if cut < 0 {
		cut = 0
	}
	if cut > len(shuffled) {
		cut = len(shuffled)
	}
	return shuffled[:cut], shuffled[cut:]
}
