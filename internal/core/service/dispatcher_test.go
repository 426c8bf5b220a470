package service

import (
	"context"
	"errors"
	"testing"

	"ctfbot/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockOutbox struct {
	pending []domain.OutboundMessage
	sent    []string
	listErr error
	markErr error
}

func (m *MockOutbox) PendingDMs(_ context.Context, _ int) ([]domain.OutboundMessage, error) {
	return m.pending, m.listErr
}

func (m *MockOutbox) MarkSent(_ context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.sent = append(m.sent, id)
	return nil
}

type MockRoutes struct {
	routes map[string]int64
	err    error
}

func (m *MockRoutes) SaveRoute(_ context.Context, username, userType string, chatID int64) error {
	if m.routes == nil {
		m.routes = make(map[string]int64)
	}
	m.routes[username+"/"+userType] = chatID
	return m.err
}

func (m *MockRoutes) ChatRoute(_ context.Context, username, userType string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	chatID, ok := m.routes[username+"/"+userType]
	if !ok {
		return 0, domain.ErrNoRoute
	}
	return chatID, nil
}

type MockDMSender struct {
	sent    map[int64][]string
	sendErr error
}

func (m *MockDMSender) SendDM(_ context.Context, chatID int64, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.sent == nil {
		m.sent = make(map[int64][]string)
	}
	m.sent[chatID] = append(m.sent[chatID], text)
	return nil
}

func TestFlushDeliversAndMarksSent(t *testing.T) {
	outbox := &MockOutbox{pending: []domain.OutboundMessage{
		{ID: "dm-1", Username: "bob", UserType: "telegram", Text: "your submission code is abc"},
		{ID: "dm-2", Username: "alice", UserType: "telegram", Text: "unknown challenge :( "},
	}}
	routes := &MockRoutes{routes: map[string]int64{
		"bob/telegram":   100,
		"alice/telegram": 200,
	}}
	sender := &MockDMSender{}

	err := NewDispatcher(outbox, routes, sender).Flush(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"your submission code is abc"}, sender.sent[100])
	assert.Equal(t, []string{"unknown challenge :( "}, sender.sent[200])
	assert.Equal(t, []string{"dm-1", "dm-2"}, outbox.sent)
}

func TestFlushSkipsUnroutedMessages(t *testing.T) {
	outbox := &MockOutbox{pending: []domain.OutboundMessage{
		{ID: "dm-1", Username: "stranger", UserType: "telegram", Text: "hi"},
	}}
	sender := &MockDMSender{}

	err := NewDispatcher(outbox, &MockRoutes{}, sender).Flush(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sender.sent)
	assert.Empty(t, outbox.sent)
}

func TestFlushLeavesMessageQueuedOnSendFailure(t *testing.T) {
	outbox := &MockOutbox{pending: []domain.OutboundMessage{
		{ID: "dm-1", Username: "bob", UserType: "telegram", Text: "hi"},
	}}
	routes := &MockRoutes{routes: map[string]int64{"bob/telegram": 100}}
	sender := &MockDMSender{sendErr: errors.New("telegram unavailable")}

	err := NewDispatcher(outbox, routes, sender).Flush(context.Background())
	require.NoError(t, err)

	assert.Empty(t, outbox.sent)
}

func TestFlushListFailureAborts(t *testing.T) {
	outbox := &MockOutbox{listErr: errors.New("database locked")}

	err := NewDispatcher(outbox, &MockRoutes{}, &MockDMSender{}).Flush(context.Background())
	assert.ErrorContains(t, err, "database locked")
}
