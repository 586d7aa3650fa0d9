package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
	"github.com/tapon22bce/sarcnet/sarcnet/store"
	"github.com/tapon22bce/sarcnet/sarcnet/training"
)

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Run both training stages and persist the artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			spec := config.SpecFromConfig(cfg)
			ctx := cmd.Context()

			branchA, branchB, err := buildBranches(cfg)
			if err != nil {
				return err
			}

			corpus, err := dataset.LoadCSV(cfg.Dataset.Path, cfg.Dataset.TextColumn, cfg.Dataset.LabelColumn)
			if err != nil {
				return err
			}
			log.Info().Int("samples", corpus.Len()).Str("path", cfg.Dataset.Path).Msg("corpus loaded")

			tokenized, err := dataset.Tokenize(corpus, branchA.Tok, branchB.Tok)
			if err != nil {
				return err
			}
			split, err := dataset.SplitTokenized(tokenized, cfg.Dataset.TestFraction, cfg.Dataset.Seed)
			if err != nil {
				return err
			}

			runs, err := store.Open(cfg.Store.DSN)
			if err != nil {
				return err
			}
			defer runs.Close()
			runID, err := runs.CreateRun(spec.Fingerprint())
			if err != nil {
				return err
			}
			log.Info().Str("run", runID.String()).Str("fingerprint", spec.Fingerprint()[:12]).Msg("training run started")

			ft := model.NewFineTuner(spec, branchA, branchB, cfg.Training.Seed)
			orch := training.New(log, ft, training.HyperparamsFromConfig(cfg.Training))

			s1, err := orch.FineTune(ctx, split.Train)
			if err != nil {
				if errors.Is(err, training.ErrTrainingDiverged) {
					_ = runs.SetRunState(runID, "diverged")
				}
				return err
			}
			log.Info().
				Int("epochs", s1.EpochsRun).
				Float64("bestValLoss", s1.BestValLoss).
				Bool("earlyStopped", s1.EarlyStopped).
				Msg("stage 1 complete")

			weightsBlob, err := model.EncodeWeights(ft.Snapshot())
			if err != nil {
				return err
			}
			if err := runs.SaveArtifact(runID, store.ArtifactWeights, weightsBlob); err != nil {
				return err
			}

			s2, err := orch.FitClassifier(ctx, split, model.MLPConfig{
				MaxIter: cfg.Training.ClassifierMaxIter,
				Tol:     cfg.Training.ClassifierTol,
				Seed:    cfg.Training.ClassifierSeed,
			})
			if err != nil {
				// stage-1 artifacts are already persisted; stage 2 can rerun alone
				return err
			}

			clf, err := orch.Classifier()
			if err != nil {
				return err
			}
			clfBlob, err := model.EncodeClassifier(clf.Snapshot(spec.Fingerprint()))
			if err != nil {
				return err
			}
			if err := runs.SaveArtifact(runID, store.ArtifactClassifier, clfBlob); err != nil {
				return err
			}
			if err := runs.SaveMetrics(runID, s2.Eval); err != nil {
				return err
			}
			if err := runs.SetRunState(runID, "complete"); err != nil {
				return err
			}

			fmt.Printf("run %s complete\n", runID)
			fmt.Printf("  accuracy:  %.4f\n", s2.Eval.Accuracy)
			fmt.Printf("  precision: %.4f\n", s2.Eval.Precision)
			fmt.Printf("  recall:    %.4f\n", s2.Eval.Recall)
			fmt.Printf("  f1:        %.4f\n", s2.Eval.F1)
			fmt.Printf("  confusion: %v\n", s2.Eval.Confusion)
			if !s2.Converged {
				fmt.Printf("  note: classifier stopped at the %d-iteration cap\n", s2.Iterations)
			}
			return nil
		},
	}
}
