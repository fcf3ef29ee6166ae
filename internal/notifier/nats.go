package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"patron/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/nats-io/nats.go"
)

// Subject suffixes under the configured prefix
const (
	SubjectGrants = "grants"
	SubjectRounds = "rounds"
	SubjectAgent  = "agent"
)

// NATS publishes JSON events for downstream consumers (dashboards, bots)
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// Event is the envelope of every published message
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DialNATS connects to the server at url. Subjects are prefix.grants,
// prefix.rounds and prefix.agent.
func DialNATS(url, prefix string) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("patron"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return NewNATS(conn, prefix), nil
}

func NewNATS(conn *nats.Conn, prefix string) *NATS {
	return &NATS{conn: conn, prefix: prefix}
}

func (n *NATS) Name() string {
	return "nats"
}

func (n *NATS) Subject(suffix string) string {
	return n.prefix + "." + suffix
}

func (n *NATS) GrantDisbursed(ctx context.Context, grant models.Grant) error {
	return n.publish(SubjectGrants, "grant_disbursed", grant)
}

func (n *NATS) RoundCompleted(ctx context.Context, summary RoundSummary) error {
	return n.publish(SubjectRounds, "round_completed", summary)
}

func (n *NATS) AgentLive(ctx context.Context, treasury common.Address) error {
	return n.publish(SubjectAgent, "agent_live", map[string]string{"treasury": treasury.Hex()})
}

func (n *NATS) publish(suffix, kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", kind, err)
	}
	msg, err := json.Marshal(Event{Type: kind, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := n.conn.Publish(n.Subject(suffix), msg); err != nil {
		return fmt.Errorf("publish %s: %w", n.Subject(suffix), err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (n *NATS) Close() error {
	return n.conn.Drain()
}
