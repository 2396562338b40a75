package notification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	to      []string
	subject string
	text    string
	calls   int
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Send(_ context.Context, to []string, subject, _, text string) error {
	f.calls++
	f.to = to
	f.subject = subject
	f.text = text
	return nil
}

func TestEmailSinkRendersTemplate(t *testing.T) {
	p := &fakeProvider{}
	sink := NewEmailSink(p, zap.NewNop())

	evt := NewEvent(EventAdvanceRejected, time.Now(), []string{"s@x.test", "s@x.test", ""}, map[string]any{
		"advance_id": "42",
		"requested":  "1000.00",
		"reason":     "missing documents",
	})
	require.NoError(t, sink.Notify(context.Background(), evt))

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, []string{"s@x.test"}, p.to)
	assert.Equal(t, "Advance request 42 rejected", p.subject)
	assert.Contains(t, p.text, "missing documents")
}

func TestEmailSinkSkipsEventsWithoutRecipients(t *testing.T) {
	p := &fakeProvider{}
	sink := NewEmailSink(p, zap.NewNop())

	require.NoError(t, sink.Notify(context.Background(), NewEvent(EventOrderCreated, time.Now(), nil, nil)))
	assert.Zero(t, p.calls)
}

func TestRenderUnknownEvent(t *testing.T) {
	_, _, err := Render(Event{Type: "unknown"})
	assert.Error(t, err)
}

func TestNewEventIDsAreUnique(t *testing.T) {
	now := time.Now()
	a := NewEvent(EventOrderCreated, now, nil, nil)
	b := NewEvent(EventOrderCreated, now, nil, nil)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 26)
}
