package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid default config",
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name: "concurrency too low",
			config: Config{
				Concurrency:       0,
				PollInterval:      5 * time.Second,
				JobTimeout:        2 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "concurrency too high",
			config: Config{
				Concurrency:       101,
				PollInterval:      5 * time.Second,
				JobTimeout:        2 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "poll interval too short",
			config: Config{
				Concurrency:       2,
				PollInterval:      500 * time.Millisecond,
				JobTimeout:        2 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 10 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "stale threshold too short",
			config: Config{
				Concurrency:       2,
				PollInterval:      5 * time.Second,
				JobTimeout:        2 * time.Minute,
				ShutdownTimeout:   30 * time.Second,
				StaleJobThreshold: 30 * time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "permanent error",
			err:  NewPermanentError(context.Canceled),
			want: true,
		},
		{
			name: "wrapped permanent error",
			err:  errors.Join(errors.New("outer"), NewPermanentError(context.Canceled)),
			want: true,
		},
		{
			name: "regular error",
			err:  context.Canceled,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPermanent(tt.err))
		})
	}
}

// recordingNotifier captures deliveries for assertions.
type recordingNotifier struct {
	events []string
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, eventName string, payload json.RawMessage) error {
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, eventName)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeliverEventHandler_Handle(t *testing.T) {
	t.Run("delivers valid payload", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := NewDeliverEventHandler(notifier, testLogger())

		payload, err := json.Marshal(DeliverEventPayload{
			AppraisalID: uuid.New(),
			EventName:   "appraisal.approved",
			Event:       json.RawMessage(`{"plate":"ABC1D23"}`),
		})
		require.NoError(t, err)

		require.NoError(t, h.Handle(context.Background(), payload))
		assert.Equal(t, []string{"appraisal.approved"}, notifier.events)
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		h := NewDeliverEventHandler(&recordingNotifier{}, testLogger())

		err := h.Handle(context.Background(), []byte("{not json"))
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	})

	t.Run("missing event name is permanent", func(t *testing.T) {
		h := NewDeliverEventHandler(&recordingNotifier{}, testLogger())

		payload, err := json.Marshal(DeliverEventPayload{AppraisalID: uuid.New()})
		require.NoError(t, err)

		err = h.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.True(t, IsPermanent(err))
	})

	t.Run("notifier failure is retryable", func(t *testing.T) {
		notifier := &recordingNotifier{err: errors.New("endpoint down")}
		h := NewDeliverEventHandler(notifier, testLogger())

		payload, err := json.Marshal(DeliverEventPayload{
			AppraisalID: uuid.New(),
			EventName:   "appraisal.submitted",
		})
		require.NoError(t, err)

		err = h.Handle(context.Background(), payload)
		require.Error(t, err)
		assert.False(t, IsPermanent(err))
	})
}
