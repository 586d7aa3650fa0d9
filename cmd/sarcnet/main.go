package main

import (
	"os"

	"github.com/spf13/cobra"

	internal "github.com/tapon22bce/sarcnet/sarcnet"
)

var (
	cfgFile string
	log     = internal.GetLogger()
)

func main() {
	root := &cobra.Command{
		Use:   internal.DefaultAppName,
		Short: "Dual-encoder sarcasm classifier: train, serve and predict",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")
	root.AddCommand(newTrainCmd(), newServeCmd(), newPredictCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
