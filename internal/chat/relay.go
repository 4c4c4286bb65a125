// Package chat relays simulated-conversation turns to the backend reply
// generator and filters out replies the viewer has just seen.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/dedup"
	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
)

const (
	pathChatReply   = "/chat_reply"
	historyWindow   = 10
	recentWindow    = 3
	defaultScenario = "fake_investment"
	fromScammer     = "scammer"
	fromUser        = "user"
)

// ErrNoReply means the backend produced no usable scammer line.
var ErrNoReply = errors.New("no usable reply")

// Message is one chat bubble.
type Message struct {
	From string `json:"from"`
	Text string `json:"text"`
}

// Request is a reply request from the viewer.
type Request struct {
	Scenario string    `json:"scenario"`
	Persona  string    `json:"persona,omitempty"`
	History  []Message `json:"history" binding:"required"`
}

// Reply is the scammer's next line.
type Reply struct {
	From   string `json:"from"`
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

func (r Reply) usable() bool {
	return r.From == fromScammer && strings.TrimSpace(r.Text) != ""
}

// Relay forwards reply requests to the backend.
type Relay struct {
	client   *fetcher.Client
	attempts int
	logger   *zap.Logger
}

// NewRelay creates a relay retrying duplicates dedup.DefaultAttempts times.
func NewRelay(client *fetcher.Client, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{client: client, attempts: dedup.DefaultAttempts, logger: logger}
}

// Reply asks the backend for the next scammer line. A reply repeating one of
// the last three scammer lines is retried; a malformed reply counts as a
// repeat.
func (r *Relay) Reply(ctx context.Context, req Request) (Reply, error) {
	if req.Scenario == "" {
		req.Scenario = defaultScenario
	}
	recent := recentScammerLines(req.History)
	req.History = conversation(req.History)

	fetch := func(ctx context.Context) (Reply, error) {
		res := r.client.Post(ctx, pathChatReply, req)
		if !res.OK() {
			return Reply{}, res.Err
		}
		v := gjson.ParseBytes(res.Payload)
		return Reply{
			From:   v.Get("from").String(),
			Text:   v.Get("text").String(),
			Source: v.Get("source").String(),
		}, nil
	}
	isDup := func(reply Reply) bool {
		return !reply.usable() || dedup.TrimmedEqual(reply.Text, recent)
	}

	reply, err := dedup.UntilDistinct(ctx, r.attempts, fetch, isDup)
	if err != nil {
		r.logger.Warn("chat reply failed", zap.Error(err))
		return Reply{}, fmt.Errorf("chat reply: %w", err)
	}
	if !reply.usable() {
		return Reply{}, ErrNoReply
	}
	if dedup.TrimmedEqual(reply.Text, recent) {
		r.logger.Debug("chat reply still repeats a recent line", zap.String("text", reply.Text))
	}
	return reply, nil
}

// conversation keeps user and scammer turns, last historyWindow of them.
func conversation(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, m := range history {
		if m.From == fromUser || m.From == fromScammer {
			out = append(out, m)
		}
	}
	if len(out) > historyWindow {
		out = out[len(out)-historyWindow:]
	}
	return out
}

func recentScammerLines(history []Message) []string {
	var lines []string
	for _, m := range history {
		if m.From == fromScammer {
			lines = append(lines, m.Text)
		}
	}
	if len(lines) > recentWindow {
		lines = lines[len(lines)-recentWindow:]
	}
	return lines
}
