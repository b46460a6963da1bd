package storage

import "github.com/theuszinp/chatbot/internal/types"

// Store persists service history: closed service records, evaluations
// and the message/event audit logs. Hot state never touches the store;
// the engine writes here asynchronously after the fact.
type Store interface {
	SaveServiceRecord(item types.ServiceRecordItem) error
	SaveEvaluation(eval types.Evaluation) error
	SaveMessage(msg types.MessageRecord) error
	SaveEvent(event types.Event) error
	GetServiceRecords(dateKey string) ([]types.ServiceRecordItem, error)
	FindServiceRecordByCode(dateKey, code string) (*types.ServiceRecordItem, error)
	GetEvaluationsByAttendant(attendantID string) ([]types.Evaluation, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveServiceRecord(_ types.ServiceRecordItem) error { return nil }
func (s *NoopStore) SaveEvaluation(_ types.Evaluation) error           { return nil }
func (s *NoopStore) SaveMessage(_ types.MessageRecord) error           { return nil }
func (s *NoopStore) SaveEvent(_ types.Event) error                     { return nil }
func (s *NoopStore) GetServiceRecords(_ string) ([]types.ServiceRecordItem, error) {
	return nil, nil
}
func (s *NoopStore) FindServiceRecordByCode(_, _ string) (*types.ServiceRecordItem, error) {
	return nil, nil
}
func (s *NoopStore) GetEvaluationsByAttendant(_ string) ([]types.Evaluation, error) {
	return nil, nil
}
func (s *NoopStore) TruncateAll() error { return nil }
