package mongo

import (
	"context"
	"errors"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"
)

type MockCallbackArchive struct {
	mock.Mock
}

func (m *MockCallbackArchive) Archive(ctx context.Context, receivedAt time.Time, raw []byte) error {
	args := m.Called(ctx, receivedAt, raw)
	return args.Error(0)
}

func TestNewCallbackArchive(t *testing.T) {
	db := &mongo.Database{}
	logger := slog.Default()

	archive := NewCallbackArchive(logger, db)

	assert.NotNil(t, archive)
	assert.IsType(t, &CallbackArchive{}, archive)
}

func TestCallbackArchive_Archive(t *testing.T) {
	receivedAt := time.Now().UTC()
	raw := []byte(`{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`)

	tests := []struct {
		name          string
		setupMocks    func(m *MockCallbackArchive)
		expectedError error
	}{
		{
			name: "successful archive",
			setupMocks: func(m *MockCallbackArchive) {
				m.On("Archive", mock.Anything, receivedAt, raw).Return(nil)
			},
			expectedError: nil,
		},
		{
			name: "database error",
			setupMocks: func(m *MockCallbackArchive) {
				m.On("Archive", mock.Anything, receivedAt, raw).Return(errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockArchive := &MockCallbackArchive{}
			tt.setupMocks(mockArchive)

			ctx := context.Background()
			err := mockArchive.Archive(ctx, receivedAt, raw)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
			}

			mockArchive.AssertExpectations(t)
		})
	}
}
