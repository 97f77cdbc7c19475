package model

import "time"

// ModelKind 模型类别
type ModelKind string

const (
	ModelQGen   ModelKind = "qgen"   // 问题生成
	ModelGrader ModelKind = "grader" // 答案评分
)

// ParseModelKind 解析模型类别
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(s) {
	case ModelQGen, ModelGrader:
		return ModelKind(s), nil
	}
	return "", NewError("model.kind", KindInvalidArgument, ErrUnknownModelKind(s))
}

// ErrUnknownModelKind 未知模型类别
type ErrUnknownModelKind string

func (e ErrUnknownModelKind) Error() string {
	return "unknown model kind: " + string(e)
}

// ArtifactType 产物类型
type ArtifactType string

const (
	ArtifactCheckpoint ArtifactType = "checkpoint" // .ckpt 文件
	ArtifactDir        ArtifactType = "directory"  // 导出的模型目录
)

// Artifact 解析后的模型产物
type Artifact struct {
	Path    string       `json:"path"`
	Type    ArtifactType `json:"type"`
	ModTime time.Time    `json:"mod_time"`
}

// Manifest checkpoint 旁路清单
type Manifest struct {
	Prefix      string    `json:"prefix"`
	Epoch       int       `json:"epoch"`
	MetricName  string    `json:"metric_name,omitempty"`
	MetricValue float64   `json:"metric_value"`
	RunID       string    `json:"run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
