package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/nadzzz/cadence/internal/dispatch"
	"github.com/nadzzz/cadence/internal/message"
	"github.com/nadzzz/cadence/internal/ssml"
	"github.com/nadzzz/cadence/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type failingService struct{ err error }

func (f failingService) Speak(context.Context, *message.SpeakRequest) (*message.SpeakResult, error) {
	return nil, f.err
}

func (f failingService) Validate(context.Context, *message.ValidateRequest) (*ssml.Report, error) {
	return nil, f.err
}

func (f failingService) Rules(context.Context) (*message.RulesResult, error) {
	return nil, f.err
}

func dial(t *testing.T, svc transport.Service) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, svc)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})
	return NewClient(conn)
}

func TestSpeak(t *testing.T) {
	c := dial(t, dispatch.New(ssml.NewDefault()))

	res, err := c.Speak(context.Background(), &message.SpeakRequest{
		ID:               "abc",
		Text:             "Mam 5 zadań.",
		EmotionalContext: &ssml.EmotionalContext{PrimaryEmotion: ssml.EmotionStress, Confidence: 0.9},
		Validate:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", res.MessageID)
	assert.Equal(t, ssml.ProfileCalming, res.Profile)
	assert.Contains(t, res.SSML, "<speak")
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Valid)
}

func TestValidateAndRules(t *testing.T) {
	c := dial(t, dispatch.New(ssml.NewDefault()))

	rep, err := c.Validate(context.Background(), &message.ValidateRequest{SSML: "<speak>"})
	require.NoError(t, err)
	assert.False(t, rep.Valid)

	rules, err := c.Rules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pl-PL", rules.Settings["language"])
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"invalid", message.ErrInvalidRequest, codes.InvalidArgument},
		{"wrapped invalid", errors.Join(errors.New("text"), message.ErrInvalidRequest), codes.InvalidArgument},
		{"internal", errors.New("boom"), codes.Internal},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dial(t, failingService{err: tt.err})

			_, err := c.Speak(context.Background(), &message.SpeakRequest{Text: "x"})
			assert.Equal(t, tt.code, status.Code(err))

			_, err = c.Rules(context.Background())
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestEmptyTextRejected(t *testing.T) {
	c := dial(t, dispatch.New(ssml.NewDefault()))

	_, err := c.Speak(context.Background(), &message.SpeakRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListenStopsOnCancel(t *testing.T) {
	tr := New(0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tr.Listen(ctx, failingService{}) }()

	// Close may run before, during or after Listen installs the server.
	require.NoError(t, tr.Close())
	cancel()
	require.NoError(t, <-done)
	require.NoError(t, tr.Close())
}
