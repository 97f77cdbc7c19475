package model

// QuestionPrediction 问题生成结果
type QuestionPrediction struct {
	Prompt            string `json:"prompt"`
	GeneratedQuestion string `json:"generated_question"`
	Checkpoint        string `json:"checkpoint"`
}

// ClassifyResult 答案评分结果
type ClassifyResult struct {
	Question       string    `json:"question"`
	StudentAnswer  string    `json:"student_answer"`
	PredictedScore int       `json:"predicted_score"`
	Probabilities  []float64 `json:"probabilities"`
	CheckpointUsed string    `json:"checkpoint_used"`
}
