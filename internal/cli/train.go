package cli

import (
	"errors"

	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/spf13/cobra"
)

func trainCmd(opts *rootOptions) *cobra.Command {
	var questions, grader, resume bool

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the question generator or the answer grader",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if questions == grader {
				return errors.New("exactly one of --questions or --grader is required")
			}
			kind := model.ModelGrader
			if questions {
				kind = model.ModelQGen
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

			result, err := svc.Trainer.Train(cmd.Context(), kind, resume)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&questions, "questions", false, "train the question generator")
	cmd.Flags().BoolVar(&grader, "grader", false, "train the answer grader")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the highest-epoch checkpoint")
	return cmd
}
