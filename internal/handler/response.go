package handler

import (
	"net/http"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/gin-gonic/gin"
)

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Success 成功响应 (200)
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 创建成功响应 (201)
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// BadRequest 400 错误响应
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Msg: msg})
}

// Error 根据错误类型返回相应的错误响应
func Error(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	status := StatusOf(err)
	c.JSON(status, ErrorResponse{Code: status, Msg: err.Error()})
}

// StatusOf 错误类型对应的 HTTP 状态码
func StatusOf(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidArgument:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindUnsupported:
		return http.StatusUnprocessableEntity
	case model.KindProvider, model.KindRateLimited, model.KindExhausted:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
