package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func TestNotifier_PublishesScanEvent(t *testing.T) {
	pub := &fakePublisher{}
	n := New(pub, "", zap.NewNop())
	at := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	n.ScanProcessed(context.Background(), types.Outcome{
		Kind:        types.OutcomeAccessGranted,
		TagID:       "TAG1",
		Response:    "ACCESS_GRANTED:User_1",
		Summary:     "Access granted to User_1",
		DisplayName: "User_1",
		DecidedAt:   at,
	}, &types.AccessEvent{ID: 42})

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, DefaultSubject, pub.subjects[0])

	var ev ScanEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &ev))
	assert.Equal(t, "TAG1", ev.TagID)
	assert.Equal(t, types.OutcomeAccessGranted, ev.Kind)
	assert.Equal(t, int64(42), ev.EventID)
	assert.True(t, ev.Journalled)
	assert.True(t, at.Equal(ev.Timestamp))
}

func TestNotifier_UnjournalledScan(t *testing.T) {
	pub := &fakePublisher{}
	New(pub, "custom.subject", zap.NewNop()).
		ScanProcessed(context.Background(), types.Outcome{Kind: types.OutcomeAccessDenied, TagID: "X"}, nil)

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "custom.subject", pub.subjects[0])
	assert.Contains(t, string(pub.payloads[0]), `"journalled":false`)
}

func TestNotifier_PublishErrorIsSwallowed(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats: connection closed")}
	n := New(pub, "", zap.NewNop())

	assert.NotPanics(t, func() {
		n.ScanProcessed(context.Background(), types.Outcome{Kind: types.OutcomeAccessDenied}, nil)
		n.ScanFailed(context.Background(), "X", errors.New("x"))
	})
	assert.Len(t, pub.payloads, 1)
}
