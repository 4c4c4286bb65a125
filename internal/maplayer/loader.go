package maplayer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
	"github.com/jengzang/scam-dashboard-go/internal/source"
)

// LoadErrorKind tells why the map could not be brought up.
type LoadErrorKind string

const (
	ErrMissingKey       LoadErrorKind = "missing_key"
	ErrScriptLoad       LoadErrorKind = "script_load"
	ErrMissingContainer LoadErrorKind = "missing_container"
)

// LoadError is the single failure type of map initialization.
type LoadError struct {
	Kind LoadErrorKind
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("map load failed: %s", e.Kind)
	}
	return fmt.Sprintf("map load failed: %s: %v", e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader brings up a map widget.
type Loader interface {
	Load(ctx context.Context) (Widget, error)
}

// ScriptLoader resolves the maps key and confirms the maps script is
// reachable with it before handing out a Scene.
type ScriptLoader struct {
	client    *fetcher.Client
	apiKey    string
	scriptURL string
	probe     bool
	http      *http.Client
}

// NewScriptLoader creates a loader. A non-empty apiKey skips /api/maps_key.
// An empty scriptURL or probe=false skips the reachability check.
func NewScriptLoader(client *fetcher.Client, apiKey, scriptURL string, probe bool) *ScriptLoader {
	return &ScriptLoader{
		client:    client,
		apiKey:    apiKey,
		scriptURL: scriptURL,
		probe:     probe && scriptURL != "",
		http:      &http.Client{},
	}
}

// Load resolves once the widget library is confirmed usable.
func (l *ScriptLoader) Load(ctx context.Context) (Widget, error) {
	key := l.apiKey
	if key == "" {
		got := source.Decode(l.client.Get(ctx, "/api/maps_key", nil), source.MapsKey)
		if !got.Available {
			return nil, &LoadError{Kind: ErrMissingKey, Err: errors.New(got.Reason)}
		}
		key = got.Value
	}

	if l.probe {
		if err := l.probeScript(ctx, key); err != nil {
			return nil, &LoadError{Kind: ErrScriptLoad, Err: err}
		}
	}

	return NewScene(key), nil
}

func (l *ScriptLoader) probeScript(ctx context.Context, key string) error {
	target := l.scriptURL + "?" + url.Values{"key": {key}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create script request: %w", err)
	}
	resp, err := l.http.Do(req)
	if err != nil {
		return fmt.Errorf("script request failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("script returned status %d", resp.StatusCode)
	}
	return nil
}
