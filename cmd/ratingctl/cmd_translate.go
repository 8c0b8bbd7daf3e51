package main

import (
	"fmt"
	"time"

	"hypothesis-rating/internal/repository"
	"hypothesis-rating/internal/translate"

	"github.com/spf13/cobra"
)

func newTranslateCommand(open opener) *cobra.Command {
	var opts translate.JobOptions

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Fill in Chinese content for pool rows that lack it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()

			if len(e.cfg.Providers) == 0 {
				return fmt.Errorf("no translation providers configured")
			}
			translator, err := translate.NewMultiProvider(e.cfg.Providers, e.cfg.MaxFailuresBeforeSwitch, e.logger)
			if err != nil {
				return err
			}
			defer translator.Close()

			job := translate.NewJob(repository.NewPoolRepository(e.db, e.logger), translator, e.logger)
			report, err := job.Run(cmd.Context(), opts)
			if report != nil {
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil && err == nil {
					err = perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Topic, "topic", "", "Only translate this topic (e.g. topic3)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Translate at most this many rows")
	cmd.Flags().DurationVar(&opts.Delay, "delay", time.Second, "Pause between provider calls")

	return cmd
}
