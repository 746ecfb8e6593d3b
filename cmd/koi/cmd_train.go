package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kirillkom/koi-classifier/internal/bootstrap"
)

var trainFlags struct {
	data string
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Merge a labeled dataset into the master dataset and retrain",
	Long: "train merges --data into the master dataset and retrains the model.\n" +
		"Without --data it retrains on the master dataset as it is.",
	Args: cobra.NoArgs,
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainFlags.data, "data", "", "labeled CSV or XLSX file to merge before training")
}

func runTrain(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(app *bootstrap.App) (any, error) {
		if trainFlags.data == "" {
			return app.TrainingUC.Retrain(cmd.Context())
		}
		f, err := os.Open(trainFlags.data)
		if err != nil {
			return nil, fmt.Errorf("open data: %w", err)
		}
		defer f.Close()
		return app.TrainingUC.UploadAndRetrain(cmd.Context(), filepath.Base(trainFlags.data), f)
	})
}
