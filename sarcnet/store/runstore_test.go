package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/tapon22bce/sarcnet/sarcnet/metrics"
)

type RunStoreTestSuite struct {
	suite.Suite
	store *RunStore
}

func (s *RunStoreTestSuite) SetupTest() {
	st, err := Open(filepath.Join(s.T().TempDir(), "runs.db"))
	s.Require().NoError(err)
	s.store = st
}

func (s *RunStoreTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *RunStoreTestSuite) TestRunLifecycle() {
	id, err := s.store.CreateRun("fp-1")
	s.Require().NoError(err)
	s.NotEqual(uuid.Nil, id)

	// not complete yet, so not servable
	_, err = s.store.LatestRun("fp-1")
	s.ErrorIs(err, ErrNoSuchRun)

	s.Require().NoError(s.store.SetRunState(id, "complete"))
	latest, err := s.store.LatestRun("fp-1")
	s.Require().NoError(err)
	s.Equal(id, latest)

	// other fingerprints never match
	_, err = s.store.LatestRun("fp-2")
	s.ErrorIs(err, ErrNoSuchRun)
}

func (s *RunStoreTestSuite) TestSetStateUnknownRun() {
	err := s.store.SetRunState(uuid.New(), "complete")
	s.ErrorIs(err, ErrNoSuchRun)
}

func (s *RunStoreTestSuite) TestArtifactRoundTrip() {
	id, err := s.store.CreateRun("fp-1")
	s.Require().NoError(err)

	payload := []byte{0x01, 0x02, 0x03, 0xff}
	s.Require().NoError(s.store.SaveArtifact(id, ArtifactWeights, payload))

	got, err := s.store.LoadArtifact(id, ArtifactWeights)
	s.Require().NoError(err)
	s.Equal(payload, got)

	_, err = s.store.LoadArtifact(id, ArtifactClassifier)
	s.ErrorIs(err, ErrNoSuchRun)

	// saving again replaces, one artifact per (run, kind)
	s.Require().NoError(s.store.SaveArtifact(id, ArtifactWeights, []byte{0xaa}))
	got, err = s.store.LoadArtifact(id, ArtifactWeights)
	s.Require().NoError(err)
	s.Equal([]byte{0xaa}, got)
}

func (s *RunStoreTestSuite) TestMetricsRoundTrip() {
	id, err := s.store.CreateRun("fp-1")
	s.Require().NoError(err)

	report := metrics.Report{
		Accuracy:  0.85,
		Precision: 0.8,
		Recall:    0.9,
		F1:        0.8470588235294118,
		Confusion: metrics.Confusion{{8, 2}, {1, 9}},
	}
	s.Require().NoError(s.store.SaveMetrics(id, report))

	got, err := s.store.LoadMetrics(id)
	s.Require().NoError(err)
	s.Equal(report, got)

	_, err = s.store.LoadMetrics(uuid.New())
	s.ErrorIs(err, ErrNoSuchRun)
}

func TestRunStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RunStoreTestSuite))
}
