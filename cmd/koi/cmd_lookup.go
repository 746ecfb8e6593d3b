package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kirillkom/koi-classifier/internal/bootstrap"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <kepid>",
	Short: "Show the most recent recorded prediction for a Kepler ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	kepID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("kepid must be an integer: %q", args[0])
	}
	return withApp(cmd, func(app *bootstrap.App) (any, error) {
		return app.PredictionUC.Lookup(cmd.Context(), kepID)
	})
}
