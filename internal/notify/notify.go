package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const DefaultSubject = "nfcgate.scans"

// Publisher is the slice of a NATS connection the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// ScanEvent is the JSON payload published for every processed scan.
type ScanEvent struct {
	TagID            string            `json:"uid"`
	Kind             types.OutcomeKind `json:"kind"`
	Response         string            `json:"response"`
	Summary          string            `json:"summary"`
	DisplayName      string            `json:"name,omitempty"`
	RegistrationMode bool              `json:"registration_mode"`
	EventID          int64             `json:"event_id,omitempty"`
	Journalled       bool              `json:"journalled"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Notifier fans scan outcomes out to a subject. Publish failures are logged
// and otherwise ignored.
type Notifier struct {
	pub     Publisher
	subject string
	logger  *zap.Logger
}

func New(pub Publisher, subject string, logger *zap.Logger) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Notifier{pub: pub, subject: subject, logger: logger}
}

func (n *Notifier) ScanProcessed(_ context.Context, out types.Outcome, entry *types.AccessEvent) {
	ev := ScanEvent{
		TagID:            out.TagID,
		Kind:             out.Kind,
		Response:         out.Response,
		Summary:          out.Summary,
		DisplayName:      out.DisplayName,
		RegistrationMode: out.RegistrationMode,
		Timestamp:        out.DecidedAt,
	}
	if entry != nil {
		ev.EventID = entry.ID
		ev.Journalled = true
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		n.logger.Error("scan event encode failed", zap.Error(err))
		return
	}
	if err := n.pub.Publish(n.subject, payload); err != nil {
		n.logger.Warn("scan event publish failed",
			zap.String("subject", n.subject),
			zap.String("tag", out.TagID),
			zap.Error(err))
	}
}

func (n *Notifier) ScanFailed(context.Context, string, error) {}

type Options struct {
	URL   string
	Token string
	Name  string
}

// Connect dials NATS. Reconnects are handled by the client.
func Connect(o Options) (*nats.Conn, error) {
	name := o.Name
	if name == "" {
		name = "nfcgate"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
	}

	// if token provided
	if o.Token != "" {
		opts = append(opts, nats.Token(o.Token))
	}

	return nats.Connect(o.URL, opts...)
}
