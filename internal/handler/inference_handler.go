package handler

import (
	"strings"

	"github.com/ashwinyue/qa-grader/internal/dataset"
	"github.com/ashwinyue/qa-grader/internal/service/inference"
	"github.com/gin-gonic/gin"
)

// QuestionPromptPrefix 问题生成提示前缀
const QuestionPromptPrefix = "Generate a question about: "

// InferenceHandler 推理处理器
type InferenceHandler struct {
	question    QuestionGenerator
	grader      AnswerGrader
	contextFile string
}

// NewInferenceHandler 创建推理处理器
func NewInferenceHandler(q QuestionGenerator, g AnswerGrader, contextFile string) *InferenceHandler {
	return &InferenceHandler{question: q, grader: g, contextFile: contextFile}
}

// GenerateQuestionResponse 问题生成响应
type GenerateQuestionResponse struct {
	Prompt            string `json:"prompt"`
	Topic             string `json:"topic"`
	Context           string `json:"context"`
	GeneratedQuestion string `json:"generated_question"`
	Checkpoint        string `json:"checkpoint"`
}

// GenerateQuestion 根据主题生成问题
// GET /v1/generate_question?topic=
func (h *InferenceHandler) GenerateQuestion(c *gin.Context) {
	topic := c.Query("topic")
	if topic == "" {
		BadRequest(c, "topic is required")
		return
	}

	prompt := QuestionPromptPrefix + topic
	pred, err := h.question.Generate(c.Request.Context(), prompt, c.Query("checkpoint"))
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, GenerateQuestionResponse{
		Prompt:            prompt,
		Topic:             topic,
		Context:           dataset.LoadContexts(h.contextFile)[strings.TrimSpace(topic)],
		GeneratedQuestion: pred.GeneratedQuestion,
		Checkpoint:        pred.Checkpoint,
	})
}

// ClassifyAnswer 对学生答案打分
// POST /v1/classify_answer
func (h *InferenceHandler) ClassifyAnswer(c *gin.Context) {
	var req inference.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.grader.Classify(c.Request.Context(), &req)
	if err != nil {
		Error(c, err)
		return
	}

	Success(c, result)
}
