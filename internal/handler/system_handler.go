package handler

import (
	"github.com/gin-gonic/gin"
)

// SystemHandler 系统处理器
type SystemHandler struct {
	runtime HealthChecker
	cache   CacheStats
	version string
}

// NewSystemHandler 创建系统处理器，rt 和 cache 可为空
func NewSystemHandler(rt HealthChecker, cache CacheStats, version string) *SystemHandler {
	return &SystemHandler{runtime: rt, cache: cache, version: version}
}

// Health 健康检查，运行时不可用时仍返回 200。
// 响应中的 cache_entries 为进程内缓存的条目数。
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "version": h.version}

	if h.runtime != nil {
		if rt, err := h.runtime.Health(c.Request.Context()); err != nil {
			resp["runtime"] = "unavailable"
		} else {
			resp["runtime"] = rt.Status
		}
	}
	if h.cache != nil {
		resp["cache_entries"] = h.cache.Len()
	}
	Success(c, resp)
}
