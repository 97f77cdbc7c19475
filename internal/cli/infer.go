package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/ashwinyue/qa-grader/internal/service/inference"
	"github.com/spf13/cobra"
)

// refSeparator --ref-answers 的列表分隔符
const refSeparator = "||"

func inferCmd(opts *rootOptions) *cobra.Command {
	var (
		questions     bool
		prompt        string
		question      string
		studentAnswer string
		refAnswers    string
		reduction     string
		checkpoint    string
	)

	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Generate a question or grade a student answer",
		Example: "  qa-grader infer --questions --prompt \"Generate a question about: variance\"\n" +
			"  qa-grader infer --question \"What is variance?\" --student-answer \"spread\" --ref-answers \"a||b\"",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if questions && prompt == "" {
				return errors.New("--prompt is required with --questions")
			}
			if !questions && question == "" {
				return errors.New("--question is required for grading")
			}

			refs, err := parseRefs(refAnswers)
			if err != nil {
				return err
			}

			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			svc, i, err := openServices(cmd.Context(), e)
			if err != nil {
				return err
			}
			defer i.Close()

			if questions {
				pred, err := svc.Question.Generate(cmd.Context(), prompt, checkpoint)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), pred)
			}

			result, err := svc.Grader.Classify(cmd.Context(), &inference.ClassifyRequest{
				Question:      question,
				StudentAnswer: studentAnswer,
				RefAnswers:    refs,
				Checkpoint:    checkpoint,
				Reduction:     reduction,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&questions, "questions", false, "generate a question instead of grading")
	cmd.Flags().StringVar(&prompt, "prompt", "", "question generation prompt")
	cmd.Flags().StringVar(&question, "question", "", "question text")
	cmd.Flags().StringVar(&studentAnswer, "student-answer", "", "student answer")
	cmd.Flags().StringVar(&refAnswers, "ref-answers", "", `reference answers as a JSON array or "||"-separated list`)
	cmd.Flags().StringVar(&reduction, "reduction", "mean", "logit reduction over reference answers: mean or max")
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "checkpoint path (defaults to the latest)")
	return cmd
}

// parseRefs 解析参考答案：JSON 数组或 || 分隔的列表
func parseRefs(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.HasPrefix(s, "[") {
		var refs []string
		if err := json.Unmarshal([]byte(s), &refs); err != nil {
			return nil, model.NewError("cli.ref_answers", model.KindInvalidArgument, fmt.Errorf("invalid JSON array: %w", err))
		}
		return refs, nil
	}

	var refs []string
	for _, part := range strings.Split(s, refSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			refs = append(refs, part)
		}
	}
	return refs, nil
}
