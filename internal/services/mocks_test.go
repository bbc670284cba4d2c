package services

import (
	"io"

	"github.com/ruralpay/txengine/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockAuditLogger struct {
	mock.Mock
}

func (m *MockAuditLogger) LogTransaction(runID string, tx models.Transaction, status string) {
	m.Called(runID, tx, status)
}

func (m *MockAuditLogger) LogRejection(runID string, tx models.Transaction, status string, err error) {
	m.Called(runID, tx, status, err)
}

func (m *MockAuditLogger) LogError(runID string, err error) {
	m.Called(runID, err)
}

// sliceSource replays a fixed list of transactions and errors.
type sliceSource struct {
	items []sourceItem
	pos   int
}

type sourceItem struct {
	tx  models.Transaction
	err error
}

func (s *sliceSource) Next() (models.Transaction, error) {
	if s.pos >= len(s.items) {
		return models.Transaction{}, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item.tx, item.err
}
