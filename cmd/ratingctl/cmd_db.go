package main

import (
	"encoding/json"
	"fmt"
	"os"

	"hypothesis-rating/internal/models"
	"hypothesis-rating/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// open migrates
			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}

type inspectReport struct {
	Columns map[string][]string        `json:"columns"`
	Counts  []repository.SubTopicCount `json:"counts"`
	Content string                     `json:"content,omitempty"`
}

func newInspectCommand(open opener) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show table columns and hypothesis counts per topic and sub-topic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			repo := repository.NewHypothesisRepository(e.db, e.logger)

			report := inspectReport{Columns: make(map[string][]string)}
			for _, table := range []string{"hypothesis", "predefined_comparisons"} {
				cols, err := repo.Columns(ctx, table)
				if err != nil {
					return err
				}
				report.Columns[table] = cols
			}
			if report.Counts, err = repo.CountsBySubTopic(ctx); err != nil {
				return err
			}
			if id > 0 {
				if report.Content, err = repo.ContentByID(ctx, id); err != nil {
					return err
				}
			}

			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Also print the raw content of this hypothesis")

	return cmd
}

func newRepairContentCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "repair-content",
		Short: "Copy English content from the raw hypothesis table back into the pools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()

			n, err := repository.NewPoolRepository(e.db, e.logger).RefreshContentFromSource(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d pool rows\n", n)
			return nil
		},
	}
}

// importRecord is one hypothesis of an import file. hypothesis_content may
// be a JSON object or a string holding one.
type importRecord struct {
	models.Hypothesis
	Content json.RawMessage `json:"hypothesis_content"`
}

func (r *importRecord) rawContent() (string, error) {
	if len(r.Content) == 0 || string(r.Content) == "null" {
		return "", nil
	}
	if r.Content[0] == '"' {
		var s string
		if err := json.Unmarshal(r.Content, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(r.Content), nil
}

func newImportCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load raw hypotheses from a JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}
			var records []importRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return fmt.Errorf("failed to parse import file: %w", err)
			}

			e, err := open()
			if err != nil {
				return err
			}
			defer e.Close()

			repo := repository.NewHypothesisRepository(e.db, e.logger)
			for i := range records {
				h := records[i].Hypothesis
				if h.RawContent, err = records[i].rawContent(); err != nil {
					return fmt.Errorf("record %d: failed to read content: %w", i, err)
				}
				if err := repo.Insert(cmd.Context(), &h); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
			}

			e.logger.Info("Imported hypotheses", zap.Int("count", len(records)))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d hypotheses\n", len(records))
			return nil
		},
	}
}
