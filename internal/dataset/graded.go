package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ashwinyue/qa-grader/internal/model"
)

// QIDFormat 评分数据集题号格式
const QIDFormat = "Q%05d"

// FormatQID 生成题号
func FormatQID(n int) string {
	return fmt.Sprintf(QIDFormat, n)
}

// DecodeGraded 解码一行评分数据，score 必须是 0-3 的整数
func DecodeGraded(line []byte) (*model.GradedAnswer, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, model.NewError("dataset.decode_graded", model.KindMalformed, fmt.Errorf("empty line"))
	}

	var rec model.GradedAnswer
	if err := json.Unmarshal(line, &rec); err != nil {
		if model.IsKind(err, model.KindInvalidArgument) {
			return nil, err
		}
		return nil, model.NewError("dataset.decode_graded", model.KindMalformed, err)
	}
	return &rec, nil
}

// EncodeGraded 编码一行评分数据（不含换行符）
func EncodeGraded(rec *model.GradedAnswer) ([]byte, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	if rec.RefAnswers == nil {
		cp := *rec
		cp.RefAnswers = []string{}
		rec = &cp
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, model.NewError("dataset.encode_graded", model.KindInternal, err)
	}
	return b, nil
}
