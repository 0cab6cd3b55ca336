package modeladapter_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/germanamz/tether/pkg/chats/turn"
	"github.com/germanamz/tether/pkg/modeladapter"
	"github.com/germanamz/tether/pkg/modeladapter/usage"
	"github.com/germanamz/tether/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter returns errs in order, then replies with "ok".
type scriptedCompleter struct {
	mu      sync.Mutex
	errs    []error
	calls   int
	tracker usage.Tracker
}

func (s *scriptedCompleter) Complete(context.Context, string, []turn.Turn, []toolbox.Declaration) (modeladapter.Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return modeladapter.Reply{}, err
	}
	return modeladapter.Reply{Text: "ok"}, nil
}

func (s *scriptedCompleter) UsageTracker() *usage.Tracker { return &s.tracker }

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newRetrying(inner modeladapter.Completer, opts modeladapter.RetryOpts) (*modeladapter.RetryingCompleter, *sleepRecorder) {
	rec := &sleepRecorder{}
	r := modeladapter.NewRetryingCompleter(inner, opts)
	r.SetSleepFunc(rec.sleep)
	return r, rec
}

func TestRetryingCompleter_PassthroughOnSuccess(t *testing.T) {
	inner := &scriptedCompleter{}
	r, rec := newRetrying(inner, modeladapter.RetryOpts{})

	reply, err := r.Complete(context.Background(), "m", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, rec.delays)
}

func TestRetryingCompleter_RetryOn429(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.RateLimitError{},
		&modeladapter.RateLimitError{},
	}}
	r, rec := newRetrying(inner, modeladapter.RetryOpts{BaseDelay: 100 * time.Millisecond})

	reply, err := r.Complete(context.Background(), "m", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", reply.Text)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, rec.delays)
}

func TestRetryingCompleter_RetryAfterWins(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.RateLimitError{RetryAfter: 5 * time.Second},
	}}
	r, rec := newRetrying(inner, modeladapter.RetryOpts{BaseDelay: time.Second})

	_, err := r.Complete(context.Background(), "m", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second}, rec.delays)
}

func TestRetryingCompleter_MaxDelayCaps(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.RateLimitError{},
		&modeladapter.RateLimitError{},
		&modeladapter.RateLimitError{},
	}}
	r, rec := newRetrying(inner, modeladapter.RetryOpts{BaseDelay: time.Second, MaxDelay: 3 * time.Second})

	_, err := r.Complete(context.Background(), "m", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, rec.delays)
}

func TestRetryingCompleter_MaxRetriesExhausted(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.RateLimitError{Body: "1"},
		&modeladapter.RateLimitError{Body: "2"},
		&modeladapter.RateLimitError{Body: "3"},
	}}
	r, rec := newRetrying(inner, modeladapter.RetryOpts{MaxRetries: 2})

	_, err := r.Complete(context.Background(), "m", nil, nil)

	var rle *modeladapter.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, "3", rle.Body)
	assert.Equal(t, 3, inner.calls)
	assert.Len(t, rec.delays, 2)
}

func TestRetryingCompleter_ModelErrorNotRetried(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{
		&modeladapter.ModelError{Kind: modeladapter.ErrEmptyContent},
	}}
	r, rec := newRetrying(inner, modeladapter.RetryOpts{})

	_, err := r.Complete(context.Background(), "m", nil, nil)
	assert.ErrorIs(t, err, modeladapter.ErrEmptyContent)
	assert.Equal(t, 1, inner.calls)
	assert.Empty(t, rec.delays)
}

func TestRetryingCompleter_OtherErrorNotRetried(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{errors.New("connection reset")}}
	r, _ := newRetrying(inner, modeladapter.RetryOpts{})

	_, err := r.Complete(context.Background(), "m", nil, nil)
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, 1, inner.calls)
}

func TestRetryingCompleter_ContextCancellation(t *testing.T) {
	inner := &scriptedCompleter{errs: []error{&modeladapter.RateLimitError{}}}
	r := modeladapter.NewRetryingCompleter(inner, modeladapter.RetryOpts{BaseDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Complete(ctx, "m", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryingCompleter_UsageForwarding(t *testing.T) {
	inner := &scriptedCompleter{}
	r := modeladapter.NewRetryingCompleter(inner, modeladapter.RetryOpts{})

	assert.Same(t, &inner.tracker, r.UsageTracker())

	bare := modeladapter.NewRetryingCompleter(&mockCompleter{}, modeladapter.RetryOpts{})
	assert.NotNil(t, bare.UsageTracker())
}
