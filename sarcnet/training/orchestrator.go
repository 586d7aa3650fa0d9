package training

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/metrics"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
)

// State is the orchestrator's position in the two-stage protocol. There is
// exactly one allowed path: Initial -> FineTuned -> Complete.
type State int

const (
	StateInitial State = iota
	StateFineTuned
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateFineTuned:
		return "fine-tuned"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

var (
	// ErrStageOrder means a stage was invoked out of protocol order.
	ErrStageOrder = errors.New("training stages must run in order")
	// ErrTrainingDiverged means the epoch budget ran out with validation loss
	// never improving on its starting point. The run is terminated; stage 2
	// must not proceed on these weights.
	ErrTrainingDiverged = errors.New("training diverged: validation loss never improved")
)

// Hyperparams are the stage-1 knobs plus the extraction batch size.
type Hyperparams struct {
	Epochs             int
	BatchSize          int
	ExtractBatchSize   int
	LearningRate       float64
	LRFactor           float64
	LRPatience         int
	MinLR              float64
	StopPatience       int
	ValidationFraction float64
}

// HyperparamsFromConfig lifts the viper-backed config into the orchestrator's
// value type.
func HyperparamsFromConfig(tc config.TrainingConfig) Hyperparams {
	return Hyperparams{
		Epochs:             tc.Epochs,
		BatchSize:          tc.BatchSize,
		ExtractBatchSize:   tc.ExtractBatchSize,
		LearningRate:       tc.LearningRate,
		LRFactor:           tc.LRFactor,
		LRPatience:         tc.LRPatience,
		MinLR:              tc.MinLR,
		StopPatience:       tc.StopPatience,
		ValidationFraction: tc.ValidationFraction,
	}
}

// StageOneReport summarizes fine-tuning.
type StageOneReport struct {
	EpochsRun    int
	BestValLoss  float64
	EarlyStopped bool
	FinalLR      float64
}

// StageTwoReport summarizes classifier fitting and held-out evaluation.
type StageTwoReport struct {
	TrainSize  int
	TestSize   int
	Converged  bool
	Iterations int
	Eval       metrics.Report
}

// Orchestrator drives the two training stages in strict order. Stage 2 cannot
// start before stage 1 is terminal: the state machine rejects it, and even
// without the check no extractor exists until the fine-tuner is finished.
type Orchestrator struct {
	log   zerolog.Logger
	hp    Hyperparams
	ft    *model.FineTuner
	state State

	extractor *model.Extractor
	clf       *model.MLPClassifier
}

// New builds an orchestrator around an untrained fine-tuner.
func New(log zerolog.Logger, ft *model.FineTuner, hp Hyperparams) *Orchestrator {
	return &Orchestrator{log: log, hp: hp, ft: ft, state: StateInitial}
}

// State reports the current protocol position.
func (o *Orchestrator) State() State { return o.state }

// FineTune runs stage 1: joint training of the branch projections and the
// classification head over the train partition, with a held-out validation
// slice driving LR reduction and early stopping.
func (o *Orchestrator) FineTune(ctx context.Context, train *dataset.Tokenized) (*StageOneReport, error) {
	if o.state != StateInitial {
		return nil, fmt.Errorf("%w: fine-tune requested in state %s", ErrStageOrder, o.state)
	}
	n := train.Len()
	if n == 0 {
		return nil, dataset.ErrEmptyCorpus
	}

	valN := int(float64(n) * o.hp.ValidationFraction)
	if valN == 0 && n >= 10 {
		valN = 1
	}
	fitPart := train.Slice(0, n-valN)
	valPart := train.Slice(n-valN, n)

	scheduler := newPlateauScheduler(o.hp.LRFactor, o.hp.MinLR, o.hp.LRPatience)
	stopper := newEarlyStopper(o.hp.StopPatience)
	lr := o.hp.LearningRate

	initialVal := math.Inf(1)
	if valN > 0 {
		v, err := o.ft.Loss(ctx, valPart)
		if err != nil {
			return nil, err
		}
		initialVal = v
	}

	report := &StageOneReport{BestValLoss: math.Inf(1), FinalLR: lr}
	for epoch := 0; epoch < o.hp.Epochs; epoch++ {
		var epochLoss float64
		var steps int
		for start := 0; start < fitPart.Len(); start += o.hp.BatchSize {
			end := start + o.hp.BatchSize
			if end > fitPart.Len() {
				end = fitPart.Len()
			}
			loss, err := o.ft.TrainBatch(ctx, fitPart.Slice(start, end), lr)
			if err != nil {
				return nil, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			epochLoss += loss
			steps++
		}
		report.EpochsRun = epoch + 1

		if valN == 0 {
			o.log.Info().Int("epoch", epoch).Float64("trainLoss", epochLoss/float64(steps)).Msg("epoch complete (no validation slice)")
			continue
		}
		valLoss, err := o.ft.Loss(ctx, valPart)
		if err != nil {
			return nil, err
		}
		if valLoss < report.BestValLoss {
			report.BestValLoss = valLoss
		}
		lr = scheduler.next(valLoss, lr)
		report.FinalLR = lr
		o.log.Info().
			Int("epoch", epoch).
			Float64("trainLoss", epochLoss/float64(steps)).
			Float64("valLoss", valLoss).
			Float64("lr", lr).
			Msg("epoch complete")

		if stopper.observe(valLoss, o.ft.Snapshot) {
			report.EarlyStopped = true
			o.log.Info().Int("epoch", epoch).Float64("bestValLoss", stopper.best).Msg("early stopping: restoring best weights")
			break
		}
	}

	// Divergence check before committing: a run whose validation loss never
	// got below its pre-training value is a terminated run, not a model. The
	// stopper's improvement flag cannot stand in here: its baseline is +Inf,
	// so the first finite epoch always arms it even when training made the
	// model worse.
	if valN > 0 && report.BestValLoss >= initialVal {
		return nil, fmt.Errorf("%w (initial=%.4f best=%.4f)", ErrTrainingDiverged, initialVal, report.BestValLoss)
	}
	if stopper.bestSnap != nil {
		if err := o.ft.Restore(*stopper.bestSnap); err != nil {
			return nil, err
		}
	}
	o.ft.Finish()
	o.state = StateFineTuned
	return report, nil
}

// FitClassifier runs stage 2: extract frozen joint embeddings for both
// partitions, fit the secondary classifier on train only, evaluate held-out.
func (o *Orchestrator) FitClassifier(ctx context.Context, split *dataset.Split, clfCfg model.MLPConfig) (*StageTwoReport, error) {
	if o.state != StateFineTuned {
		return nil, fmt.Errorf("%w: classifier fit requested in state %s", ErrStageOrder, o.state)
	}
	extractor, err := model.NewExtractor(o.ft, o.hp.ExtractBatchSize)
	if err != nil {
		return nil, err
	}
	trainEmb, err := extractor.Embed(ctx, split.Train)
	if err != nil {
		return nil, fmt.Errorf("extract train embeddings: %w", err)
	}
	testEmb, err := extractor.Embed(ctx, split.Test)
	if err != nil {
		return nil, fmt.Errorf("extract test embeddings: %w", err)
	}

	clf := model.NewMLPClassifier(extractor.Width(), clfCfg)
	if err := clf.Fit(trainEmb, split.Train.Labels); err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	if !clf.Converged {
		o.log.Warn().Int("iters", clf.Iters).Msg("classifier hit iteration cap without converging; model may be underfit")
	}

	report := &StageTwoReport{
		TrainSize:  split.Train.Len(),
		TestSize:   split.Test.Len(),
		Converged:  clf.Converged,
		Iterations: clf.Iters,
	}
	if split.Test.Len() > 0 {
		preds, err := clf.PredictBatch(testEmb)
		if err != nil {
			return nil, err
		}
		eval, err := metrics.Evaluate(split.Test.Labels, preds)
		if err != nil {
			return nil, err
		}
		report.Eval = eval
	}

	o.extractor = extractor
	o.clf = clf
	o.state = StateComplete
	return report, nil
}

// Run drives both stages in sequence.
func (o *Orchestrator) Run(ctx context.Context, split *dataset.Split, clfCfg model.MLPConfig) (*StageOneReport, *StageTwoReport, error) {
	s1, err := o.FineTune(ctx, split.Train)
	if err != nil {
		return nil, nil, err
	}
	s2, err := o.FitClassifier(ctx, split, clfCfg)
	if err != nil {
		// Stage-1 weights remain valid; callers may retry stage 2 alone.
		return s1, nil, err
	}
	return s1, s2, nil
}

// Extractor returns the frozen extractor once the protocol is complete.
func (o *Orchestrator) Extractor() (*model.Extractor, error) {
	if o.state != StateComplete {
		return nil, fmt.Errorf("%w: extractor requested in state %s", ErrStageOrder, o.state)
	}
	return o.extractor, nil
}

// Classifier returns the fitted secondary classifier once complete.
func (o *Orchestrator) Classifier() (*model.MLPClassifier, error) {
	if o.state != StateComplete {
		return nil, fmt.Errorf("%w: classifier requested in state %s", ErrStageOrder, o.state)
	}
	return o.clf, nil
}

// FineTuner exposes the stage-1 model for snapshotting.
func (o *Orchestrator) FineTuner() *model.FineTuner { return o.ft }
