package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/inference"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
	"github.com/tapon22bce/sarcnet/sarcnet/server"
	"github.com/tapon22bce/sarcnet/sarcnet/store"
)

// loadPipeline rebuilds the serving pipeline from the latest complete run for
// the current pipeline spec.
func loadPipeline(cfg *config.Config) (*inference.Pipeline, error) {
	spec := config.SpecFromConfig(cfg)
	branchA, branchB, err := buildBranches(cfg)
	if err != nil {
		return nil, err
	}

	runs, err := store.Open(cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	defer runs.Close()

	runID, err := runs.LatestRun(spec.Fingerprint())
	if err != nil {
		return nil, fmt.Errorf("no trained model for this pipeline spec: %w", err)
	}
	weightsBlob, err := runs.LoadArtifact(runID, store.ArtifactWeights)
	if err != nil {
		return nil, err
	}
	clfBlob, err := runs.LoadArtifact(runID, store.ArtifactClassifier)
	if err != nil {
		return nil, err
	}
	weights, err := model.DecodeWeights(weightsBlob)
	if err != nil {
		return nil, err
	}
	clf, err := model.DecodeClassifier(clfBlob)
	if err != nil {
		return nil, err
	}
	log.Info().Str("run", runID.String()).Msg("loaded artifacts")
	return inference.FromArtifacts(spec, branchA, branchB, weights, clf, cfg.Training.ExtractBatchSize)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo predict API from the latest trained run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			pipeline, err := loadPipeline(cfg)
			if err != nil {
				return err
			}
			return server.New(log, pipeline).ListenAndServe(cfg.Server.Addr)
		},
	}
}

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict [text]",
		Short: "Classify one text from the command line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			pipeline, err := loadPipeline(cfg)
			if err != nil {
				return err
			}
			label, category, err := pipeline.Predict(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%d\t%s\n", label, category)
			return nil
		},
	}
}
