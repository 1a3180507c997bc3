// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/verveadvisory/breakout-tracker-service/internal/domain/models"
)

// MockParticipantEventRepository implements ParticipantEventRepository for testing
type MockParticipantEventRepository struct {
	mock.Mock
}

func (m *MockParticipantEventRepository) Create(ctx context.Context, event *models.ParticipantEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockParticipantEventRepository) ListByDate(ctx context.Context, date string) ([]*models.ParticipantEvent, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ParticipantEvent), args.Error(1)
}

// MockCameraEventRepository implements CameraEventRepository for testing
type MockCameraEventRepository struct {
	mock.Mock
}

func (m *MockCameraEventRepository) Create(ctx context.Context, event *models.CameraEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockCameraEventRepository) ListByDate(ctx context.Context, date string) ([]*models.CameraEvent, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CameraEvent), args.Error(1)
}

// MockRoomMappingRepository implements RoomMappingRepository for testing
type MockRoomMappingRepository struct {
	mock.Mock
}

func (m *MockRoomMappingRepository) Create(ctx context.Context, mapping *models.RoomMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockRoomMappingRepository) ListByDate(ctx context.Context, date string) ([]*models.RoomMapping, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoomMapping), args.Error(1)
}

func (m *MockRoomMappingRepository) DeleteByDate(ctx context.Context, date string) (int, error) {
	args := m.Called(ctx, date)
	return args.Int(0), args.Error(1)
}

// MockQoSRepository implements QoSRepository for testing
type MockQoSRepository struct {
	mock.Mock
}

func (m *MockQoSRepository) Create(ctx context.Context, record *models.QoSRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockQoSRepository) ListByDate(ctx context.Context, date string) ([]*models.QoSRecord, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QoSRecord), args.Error(1)
}

func (m *MockQoSRepository) ListByMeetingUUID(ctx context.Context, meetingUUID string) ([]*models.QoSRecord, error) {
	args := m.Called(ctx, meetingUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QoSRecord), args.Error(1)
}

func (m *MockQoSRepository) DeleteOlderThan(ctx context.Context, cutoffDate string) (int, error) {
	args := m.Called(ctx, cutoffDate)
	return args.Int(0), args.Error(1)
}

// MockMessage implements Message for testing
type MockMessage struct {
	mock.Mock
	data    []byte
	subject string
}

func (m *MockMessage) Subject() string {
	return m.subject
}

func (m *MockMessage) Data() []byte {
	return m.data
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

// NewMockMessage creates a mock message for testing
func NewMockMessage(data []byte, subject string) *MockMessage {
	return &MockMessage{
		data:    data,
		subject: subject,
	}
}

// MockWebhookEventPublisher implements WebhookEventPublisher for testing
type MockWebhookEventPublisher struct {
	mock.Mock
}

func (m *MockWebhookEventPublisher) PublishZoomWebhookEvent(ctx context.Context, subject string, event models.ZoomWebhookEventMessage) error {
	args := m.Called(ctx, subject, event)
	return args.Error(0)
}

// MockCalibrationPublisher implements CalibrationPublisher for testing
type MockCalibrationPublisher struct {
	mock.Mock
}

func (m *MockCalibrationPublisher) PublishCalibrationStarted(ctx context.Context, msg models.CalibrationLifecycleMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockCalibrationPublisher) PublishCalibrationMapping(ctx context.Context, msg models.CalibrationMappingMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockCalibrationPublisher) PublishCalibrationCompleted(ctx context.Context, msg models.CalibrationLifecycleMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// MockPastMeetingProvider implements PastMeetingProvider for testing
type MockPastMeetingProvider struct {
	mock.Mock
}

func (m *MockPastMeetingProvider) GetPastMeetingParticipants(ctx context.Context, meetingUUID string) ([]models.PastParticipant, error) {
	args := m.Called(ctx, meetingUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PastParticipant), args.Error(1)
}

func (m *MockPastMeetingProvider) GetDashboardParticipants(ctx context.Context, meetingUUID string) ([]models.DashboardParticipant, error) {
	args := m.Called(ctx, meetingUUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DashboardParticipant), args.Error(1)
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendDailyReport(ctx context.Context, email ReportEmail) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
