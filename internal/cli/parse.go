package cli

import (
	"errors"

	"github.com/ashwinyue/qa-grader/internal/service/generation"
	"github.com/ashwinyue/qa-grader/internal/service/llm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func parseCmd(opts *rootOptions) *cobra.Command {
	var questions, contexts bool

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Synthesize datasets with the chat-completion API",
		Long: "Without flags builds the graded answer dataset from the question file.\n" +
			"--questions generates question/answer pairs per subtopic, --context generates topic background paragraphs.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if questions && contexts {
				return errors.New("--questions and --context are mutually exclusive")
			}

			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			defer func() { _ = e.logger.Sync() }()

			ctx := cmd.Context()
			cm, err := llm.NewChatModel(ctx, &e.cfg.AI, e.cfg.DataParser.Temperature)
			if err != nil {
				return err
			}

			jsonModel, err := llm.NewJSONChatModel(ctx, &e.cfg.AI, e.cfg.DataParser.Temperature)
			if err != nil {
				return err
			}

			gen := generation.NewGenerator(cm, &e.cfg.DataParser, e.logger, generation.WithJSONModel(jsonModel))
			pipeline := generation.NewPipeline(gen, e.cfg, e.logger)

			var report *generation.Report
			switch {
			case questions:
				report, err = pipeline.RunSynthetic(ctx)
			case contexts:
				report, err = pipeline.RunContext(ctx)
			default:
				report, err = pipeline.RunBuildGraded(ctx)
			}
			if report != nil {
				e.logger.Info("parse finished",
					zap.Int("processed", report.Processed),
					zap.Int("written", report.Written),
					zap.Int("failed", report.Failed),
				)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&questions, "questions", false, "generate question/answer pairs")
	cmd.Flags().BoolVar(&contexts, "context", false, "generate topic contexts")
	return cmd
}
