package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/export"
)

func newTemplateCommand() *cobra.Command {
	var categoryFlag string
	var formatFlag string
	var outDir string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the reference upload template for a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := catalog.ParseCategory(categoryFlag)
			if err != nil {
				return err
			}
			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			res, err := export.Template(category, format)
			if err != nil {
				return err
			}
			target := filepath.Join(outDir, res.Filename)
			if err := os.WriteFile(target, res.Data, 0o644); err != nil {
				return fmt.Errorf("write template: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}

	cmd.Flags().StringVar(&categoryFlag, "category", "", "Catalog category (exercise or meal)")
	cmd.Flags().StringVar(&formatFlag, "format", "xlsx", "Template format (csv or xlsx)")
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Directory to write the template into")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}
