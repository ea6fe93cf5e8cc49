package testcommon

import (
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type Suite struct {
	suite.Suite
	Logger *zap.Logger
}

func (s *Suite) SetupSuite() {
	s.Logger = SetupLogger(s.T())
}

func (s *Suite) TearDownSuite() {
	_ = s.Logger.Sync()
}

// FakeFeatureName returns a name that no compiled-in feature uses.
func (s *Suite) FakeFeatureName() string {
	return "FAKE_" + gofakeit.LetterN(10)
}
