package chat

import (
	"context"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/normalize"
)

const (
	pathPresetScript = "/preset_script"
	presetFallback   = "體驗腳本"
)

// Preset is a scripted opening for the simulated chat.
type Preset struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Persona string    `json:"persona,omitempty"`
	Script  []Message `json:"script"`
	Source  string    `json:"source,omitempty"`
}

// Preset fetches an opening script trimmed so the scammer speaks last. A
// failed fetch yields an empty script; the chat still works without one.
func (r *Relay) Preset(ctx context.Context) Preset {
	empty := Preset{Script: []Message{}}

	res := r.client.Get(ctx, pathPresetScript, nil)
	if !res.OK() {
		r.logger.Warn("preset script unavailable", zap.Error(res.Err))
		return empty
	}
	v := gjson.ParseBytes(res.Payload)
	if !v.IsObject() && !v.IsArray() {
		r.logger.Warn("preset script is not JSON")
		return empty
	}

	p := Preset{
		ID:      v.Get("id").String(),
		Title:   v.Get("title").String(),
		Persona: v.Get("persona").String(),
		Source:  v.Get("source").String(),
	}
	turns := v.Get("script")
	if v.IsArray() {
		// bare list of turns
		turns = v
		p.Title = presetFallback
	}
	p.Script = openingTurns(normalize.Array(turns))
	return p
}

// openingTurns drops at most one trailing non-scammer turn.
func openingTurns(items []gjson.Result) []Message {
	script := make([]Message, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			continue
		}
		script = append(script, Message{From: item.Get("from").String(), Text: item.Get("text").String()})
	}
	if n := len(script); n > 0 && script[n-1].From != fromScammer {
		script = script[:n-1]
	}
	return script
}
