package handler

import (
	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/gin-gonic/gin"
)

// CheckpointHandler 模型产物处理器
type CheckpointHandler struct {
	finder    ArtifactFinder
	modelRoot string
}

// NewCheckpointHandler 创建模型产物处理器
func NewCheckpointHandler(finder ArtifactFinder, modelRoot string) *CheckpointHandler {
	return &CheckpointHandler{finder: finder, modelRoot: modelRoot}
}

// LatestResponse 最新产物
type LatestResponse struct {
	Kind     model.ModelKind `json:"kind"`
	Artifact *model.Artifact `json:"artifact"`
	Manifest *model.Manifest `json:"manifest,omitempty"`
}

// Latest 返回某类模型最新的产物
// GET /v1/checkpoints/latest?kind=qgen|grader
func (h *CheckpointHandler) Latest(c *gin.Context) {
	kind, err := model.ParseModelKind(c.Query("kind"))
	if err != nil {
		Error(c, err)
		return
	}

	artifact, err := h.finder.Latest(h.modelRoot, string(kind))
	if err != nil {
		Error(c, err)
		return
	}

	resp := LatestResponse{Kind: kind, Artifact: artifact}
	if m, err := checkpoint.ReadManifest(artifact.Path); err == nil {
		resp.Manifest = m
	}
	Success(c, resp)
}
