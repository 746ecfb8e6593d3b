package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/koi-classifier/internal/bootstrap"
)

var predictFlags struct {
	data string
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Classify every row of a dataset with the active model",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().StringVar(&predictFlags.data, "data", "", "CSV or XLSX file to classify (required)")
	_ = predictCmd.MarkFlagRequired("data")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(app *bootstrap.App) (any, error) {
		f, err := os.Open(predictFlags.data)
		if err != nil {
			return nil, fmt.Errorf("open data: %w", err)
		}
		defer f.Close()
		return app.PredictionUC.PredictUpload(cmd.Context(), filepath.Base(predictFlags.data), f)
	})
}
