package training

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/tapon22bce/sarcnet/sarcnet/config"
	"github.com/tapon22bce/sarcnet/sarcnet/dataset"
	"github.com/tapon22bce/sarcnet/sarcnet/encoder"
	"github.com/tapon22bce/sarcnet/sarcnet/model"
	"github.com/tapon22bce/sarcnet/sarcnet/tokenize"
)

type OrchestratorTestSuite struct {
	suite.Suite
	spec  config.PipelineSpec
	split *dataset.Split
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.spec = config.PipelineSpec{
		MaxSeqLen: 8,
		BranchA:   config.BranchSpec{Provider: "whitespace", Model: "hash-a", Width: 16},
		BranchB:   config.BranchSpec{Provider: "whitespace", Model: "hash-b", Width: 16},
	}

	// 100 labeled comments, separable by a marker token.
	corpus := &dataset.Corpus{}
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			corpus.Texts = append(corpus.Texts, fmt.Sprintf("oh wonderful yet another thing %d", i))
			corpus.Labels = append(corpus.Labels, 1)
		} else {
			corpus.Texts = append(corpus.Texts, fmt.Sprintf("the schedule for item %d is ready", i))
			corpus.Labels = append(corpus.Labels, 0)
		}
	}
	tok := tokenize.NewWhitespace(s.spec.MaxSeqLen)
	tokenized, err := dataset.Tokenize(corpus, tok, tok)
	s.Require().NoError(err)
	split, err := dataset.SplitTokenized(tokenized, 0.2, 17)
	s.Require().NoError(err)
	s.split = split
}

func (s *OrchestratorTestSuite) newOrchestrator(hp Hyperparams) *Orchestrator {
	tok := tokenize.NewWhitespace(s.spec.MaxSeqLen)
	a := encoder.NewBranch("A", tok, encoder.NewHashEncoder(s.spec.BranchA.Width), encoder.PooledRepresentation{})
	b := encoder.NewBranch("B", tok, encoder.NewHashEncoder(s.spec.BranchB.Width), encoder.FirstTokenRepresentation{})
	ft := model.NewFineTuner(s.spec, a, b, 1)
	return New(zerolog.Nop(), ft, hp)
}

func defaultHyperparams() Hyperparams {
	return Hyperparams{
		Epochs:             5,
		BatchSize:          16,
		ExtractBatchSize:   32,
		LearningRate:       1e-2,
		LRFactor:           0.5,
		LRPatience:         1,
		MinLR:              1e-6,
		StopPatience:       2,
		ValidationFraction: 0.1,
	}
}

func (s *OrchestratorTestSuite) TestFullRun() {
	o := s.newOrchestrator(defaultHyperparams())
	s1, s2, err := o.Run(context.Background(), s.split, model.MLPConfig{Seed: 3})
	s.Require().NoError(err)

	s.GreaterOrEqual(s1.EpochsRun, 1)
	s.Equal(StateComplete, o.State())

	s.Equal(80, s2.TrainSize)
	s.Equal(20, s2.TestSize)
	s.Equal(20, s2.Eval.Confusion.Total())
	for _, v := range []float64{s2.Eval.Accuracy, s2.Eval.Precision, s2.Eval.Recall, s2.Eval.F1} {
		s.GreaterOrEqual(v, 0.0)
		s.LessOrEqual(v, 1.0)
	}

	ex, err := o.Extractor()
	s.Require().NoError(err)
	s.Equal(s.spec.JointWidth(), ex.Width())
	_, err = o.Classifier()
	s.Require().NoError(err)
}

func (s *OrchestratorTestSuite) TestStageOrderEnforced() {
	o := s.newOrchestrator(defaultHyperparams())

	_, err := o.FitClassifier(context.Background(), s.split, model.MLPConfig{})
	s.ErrorIs(err, ErrStageOrder)
	_, err = o.Extractor()
	s.ErrorIs(err, ErrStageOrder)
	_, err = o.Classifier()
	s.ErrorIs(err, ErrStageOrder)

	_, err = o.FineTune(context.Background(), s.split.Train)
	s.Require().NoError(err)
	s.Equal(StateFineTuned, o.State())

	// fine-tuning twice is out of protocol
	_, err = o.FineTune(context.Background(), s.split.Train)
	s.ErrorIs(err, ErrStageOrder)
}

func (s *OrchestratorTestSuite) TestDivergedRunAborts() {
	// an absurd learning rate makes every epoch worse than the untrained model
	hp := defaultHyperparams()
	hp.Epochs = 2
	hp.LearningRate = 1e6
	hp.StopPatience = 5
	o := s.newOrchestrator(hp)

	_, err := o.FineTune(context.Background(), s.split.Train)
	s.Require().ErrorIs(err, ErrTrainingDiverged)
	s.Equal(StateInitial, o.State())

	// diverged weights must never feed stage 2
	_, err = o.FitClassifier(context.Background(), s.split, model.MLPConfig{})
	s.ErrorIs(err, ErrStageOrder)
}

func (s *OrchestratorTestSuite) TestValidationSliceFloor() {
	// 80 * 0.01 truncates to zero; one sample is still held out when there is
	// enough data, otherwise divergence could never be observed
	hp := defaultHyperparams()
	hp.ValidationFraction = 0.01
	o := s.newOrchestrator(hp)

	report, err := o.FineTune(context.Background(), s.split.Train)
	s.Require().NoError(err)
	s.False(math.IsInf(report.BestValLoss, 1), "validation slice missing")
}

func (s *OrchestratorTestSuite) TestEmptyTrainSet() {
	o := s.newOrchestrator(defaultHyperparams())
	empty := s.split.Train.Slice(0, 0)
	_, err := o.FineTune(context.Background(), empty)
	s.ErrorIs(err, dataset.ErrEmptyCorpus)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func TestPlateauSchedulerReducesLR(t *testing.T) {
	p := newPlateauScheduler(0.5, 1e-6, 1)

	lr := 1e-3
	lr = p.next(0.7, lr) // first observation sets the baseline
	assert.Equal(t, 1e-3, lr)
	lr = p.next(0.7, lr) // wait = 1, within patience
	assert.Equal(t, 1e-3, lr)
	lr = p.next(0.7, lr) // patience exceeded
	assert.Equal(t, 5e-4, lr)

	lr = p.next(0.5, lr) // improvement resets the counter
	assert.Equal(t, 5e-4, lr)
	lr = p.next(0.5, lr)
	assert.Equal(t, 5e-4, lr)
}

func TestPlateauSchedulerFloor(t *testing.T) {
	p := newPlateauScheduler(0.5, 1e-4, 0)
	lr := 2e-4
	p.next(1.0, lr)
	for i := 0; i < 10; i++ {
		lr = p.next(1.0, lr)
	}
	assert.Equal(t, 1e-4, lr)
}

func TestEarlyStopperKeepsBestSnapshot(t *testing.T) {
	s := newEarlyStopper(2)
	snapAt := func(tag float64) func() model.WeightsSnapshot {
		return func() model.WeightsSnapshot {
			return model.WeightsSnapshot{Fingerprint: fmt.Sprintf("%v", tag)}
		}
	}

	assert.False(t, s.observe(0.9, snapAt(0.9)))
	assert.False(t, s.observe(0.5, snapAt(0.5)))
	assert.False(t, s.observe(0.6, snapAt(0.6))) // wait = 1
	assert.False(t, s.observe(0.6, snapAt(0.6))) // wait = 2
	assert.True(t, s.observe(0.6, snapAt(0.6)))  // wait = 3 > patience

	require.NotNil(t, s.bestSnap)
	// the retained snapshot is from the best epoch, not the last
	assert.Equal(t, "0.5", s.bestSnap.Fingerprint)
	assert.True(t, s.improved)
	assert.Equal(t, 0.5, s.best)
}

func TestEarlyStopperNeverImproved(t *testing.T) {
	s := newEarlyStopper(1)
	noSnap := func() model.WeightsSnapshot { return model.WeightsSnapshot{} }

	assert.False(t, s.observe(math.Inf(1), noSnap))
	assert.True(t, s.observe(math.Inf(1), noSnap))
	assert.False(t, s.improved)
	assert.Nil(t, s.bestSnap)
}
