package cli

import (
	"fmt"

	"github.com/ashwinyue/qa-grader/internal/checkpoint"
	"github.com/ashwinyue/qa-grader/internal/model"
	"github.com/spf13/cobra"
)

func checkpointCmd(opts *rootOptions) *cobra.Command {
	c := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect model checkpoints",
	}

	c.AddCommand(checkpointLatestCmd(opts), checkpointResumeCmd(opts))
	return c
}

func checkpointLatestCmd(opts *rootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the most recently modified artifact under the model root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := model.ParseModelKind(kind)
			if err != nil {
				return err
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}

			artifact, err := checkpoint.NewFinder(e.logger).Latest(e.cfg.Base.ModelRoot, string(k))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), artifact)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "model kind: qgen or grader")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func checkpointResumeCmd(opts *rootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Show the checkpoint training would resume from",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := model.ParseModelKind(kind)
			if err != nil {
				return err
			}
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}

			dir := e.cfg.TrainConfigFor(string(k)).ModelDir
			path, found, err := checkpoint.NewFinder(e.logger).FindLatestByEpoch(dir, string(k))
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s checkpoint in %s, training would start fresh\n", k, dir)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "model kind: qgen or grader")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}
