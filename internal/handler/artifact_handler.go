package handler

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
)

// ArtifactHandler 训练产物下载
type ArtifactHandler struct {
	store  ArtifactReader
	prefix string
}

// NewArtifactHandler 创建产物处理器，prefix 为本地存储的 URL 前缀
func NewArtifactHandler(store ArtifactReader, prefix string) *ArtifactHandler {
	return &ArtifactHandler{store: store, prefix: strings.TrimSuffix(prefix, "/")}
}

// Route 返回下载路由，前缀不是站内路径时返回空
func (h *ArtifactHandler) Route() string {
	if !strings.HasPrefix(h.prefix, "/") {
		return ""
	}
	return h.prefix + "/*key"
}

// Download 读取存储中的产物，键即存储返回的 URL 中前缀之后的部分
// GET {prefix}/*key
func (h *ArtifactHandler) Download(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		BadRequest(c, "artifact key is required")
		return
	}

	rc, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		Error(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
