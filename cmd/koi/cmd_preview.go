package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/koi-classifier/internal/bootstrap"
)

var previewFlags struct {
	rows int
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the cleaned master dataset preview",
	Args:  cobra.NoArgs,
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().IntVar(&previewFlags.rows, "rows", 0, "number of rows to print (0 = all)")
}

func runPreview(cmd *cobra.Command, _ []string) error {
	if previewFlags.rows < 0 {
		return fmt.Errorf("--rows must not be negative")
	}
	return withApp(cmd, func(app *bootstrap.App) (any, error) {
		return app.PreviewUC.Preview(cmd.Context(), previewFlags.rows)
	})
}
