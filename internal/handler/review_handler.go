package handler

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/ashwinyue/qa-grader/internal/middleware"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/gin-gonic/gin"
)

// ReviewHandler 审核处理器
type ReviewHandler struct {
	svc ReviewService
}

// NewReviewHandler 创建审核处理器
func NewReviewHandler(svc ReviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

// SubmitReviews 提交审核记录，请求体为数组或 {"items": [...]}
// POST /v1/review_questions
func (h *ReviewHandler) SubmitReviews(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		BadRequest(c, "failed to read request body")
		return
	}

	items, err := decodeReviewItems(body)
	if err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if subject := middleware.GetSubject(c); subject != "" {
		for _, it := range items {
			if it != nil && it.Reviewer == "" {
				it.Reviewer = subject
			}
		}
	}

	stored, err := h.svc.Submit(c.Request.Context(), items)
	if err != nil {
		Error(c, err)
		return
	}

	Created(c, gin.H{"items": stored, "count": len(stored)})
}

// ListReviews 最近的审核记录
// GET /v1/review_questions?limit=
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	items, err := h.svc.List(c.Request.Context(), limit)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, gin.H{"items": items, "count": len(items)})
}

func decodeReviewItems(body []byte) ([]*model.Review, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []*model.Review
		err := json.Unmarshal(body, &items)
		return items, err
	}

	var wrapped struct {
		Items []*model.Review `json:"items"`
	}
	err := json.Unmarshal(body, &wrapped)
	return wrapped.Items, err
}
