package main

import (
	"fmt"
	"strconv"
	"strings"

	"hypothesis-rating/internal/pool"
	"hypothesis-rating/internal/repository"

	"github.com/spf13/cobra"
)

func newBuilder(e *env) *pool.Builder {
	return pool.NewBuilder(
		repository.NewHypothesisRepository(e.db, e.logger),
		repository.NewPoolRepository(e.db, e.logger),
		nil,
		e.cfg.Pool.Seed,
		e.logger,
	)
}

func newBuildPoolsCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "build-pools",
		Short: "Create the comparison pool of every topic that has none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := newBuilder(e).BuildAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
}

func newRebuildCommand(open opener) *cobra.Command {
	var pairs []string

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Replace every pool with one sampled from the given topic:sub_topic pairs",
		Long: `Replace every pool with one sampled from the given topic:sub_topic pairs.

All existing pools are deleted first, including topics not named here.
Without --pair the standing selection list is used. Ratings reference raw
hypothesis ids, so recorded ratings keep their titles across rebuilds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			criteria := pool.DefaultSelections
			if len(pairs) > 0 {
				var err error
				if criteria, err = parseSelections(pairs); err != nil {
					return err
				}
			}

			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()

			report, err := newBuilder(e).Rebuild(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "topic:sub_topic to sample from, repeatable (e.g. 3:2)")

	return cmd
}

func parseSelections(pairs []string) ([]pool.Selection, error) {
	selections := make([]pool.Selection, 0, len(pairs))
	for _, p := range pairs {
		topic, subTopic, ok := strings.Cut(strings.TrimSpace(p), ":")
		if !ok {
			return nil, fmt.Errorf("invalid pair %q: want topic:sub_topic", p)
		}
		t, err := strconv.Atoi(topic)
		if err != nil || t < 1 {
			return nil, fmt.Errorf("invalid topic in pair %q", p)
		}
		s, err := strconv.Atoi(subTopic)
		if err != nil || s < 0 {
			return nil, fmt.Errorf("invalid sub_topic in pair %q", p)
		}
		selections = append(selections, pool.Selection{Topic: t, SubTopic: s})
	}
	return selections, nil
}
