package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/ingest"
)

type flaggedRow struct {
	Row    int      `json:"row"`
	Issues []string `json:"issues"`
}

type validateReport struct {
	File       string                  `json:"file"`
	Category   catalog.Category        `json:"category"`
	Parsed     int                     `json:"parsed"`
	Accepted   int                     `json:"accepted"`
	Dropped    int                     `json:"dropped"`
	Flagged    []flaggedRow            `json:"flagged,omitempty"`
	Duplicates catalog.DuplicateReport `json:"duplicates"`
	Warnings   []string                `json:"warnings"`
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	var categoryFlag string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check an upload file the way the API would ingest it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := catalog.ParseCategory(categoryFlag)
			if err != nil {
				return err
			}
			v, err := opts.vocabulary()
			if err != nil {
				return err
			}
			logger, err := opts.logger(cmd)
			if err != nil {
				return err
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open %s: %w", path, err)
			}
			defer f.Close()

			pipeline := ingest.New(ingest.Options{Vocabulary: v, Logger: logger})
			outcome, err := pipeline.Ingest(cmd.Context(), catalog.IngestRequest{
				FileName: filepath.Base(path),
				Body:     f,
				Category: category,
				Limit:    limit,
			})
			if err != nil {
				printRejection(cmd.ErrOrStderr(), err)
				return fmt.Errorf("%s rechazado", filepath.Base(path))
			}

			report := validateReport{
				File:       filepath.Base(path),
				Category:   category,
				Parsed:     outcome.Parsed,
				Accepted:   len(outcome.Accepted),
				Dropped:    outcome.Dropped,
				Duplicates: outcome.Duplicates,
				Warnings:   outcome.Warnings,
			}
			for i, it := range outcome.Accepted {
				if len(it.Issues) > 0 {
					report.Flagged = append(report.Flagged, flaggedRow{Row: i + 1, Issues: it.Issues})
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(out, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryFlag, "category", "", "Catalog category (exercise or meal)")
	cmd.Flags().IntVar(&limit, "limit", catalog.Unlimited, "Plan limit to evaluate against (-1 for unlimited)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func printRejection(w io.Writer, err error) {
	fmt.Fprintln(w, err.Error())
	var schema *catalog.SchemaError
	if errors.As(err, &schema) {
		for _, d := range schema.Details() {
			fmt.Fprintf(w, "  - %s\n", d)
		}
	}
}

func printReport(w io.Writer, r validateReport) {
	fmt.Fprintf(w, "%s (%s)\n", r.File, r.Category.Label())
	fmt.Fprintf(w, "  filas leídas:    %d\n", r.Parsed)
	fmt.Fprintf(w, "  filas aceptadas: %d\n", r.Accepted)
	if r.Dropped > 0 {
		fmt.Fprintf(w, "  fuera de cupo:   %d\n", r.Dropped)
	}
	for _, f := range r.Flagged {
		for _, issue := range f.Issues {
			fmt.Fprintf(w, "  fila %d: %s\n", f.Row, issue)
		}
	}
	for _, d := range r.Duplicates.Diagnostics {
		fmt.Fprintf(w, "  duplicado: %s\n", d)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "  aviso: %s\n", warning)
	}
}
