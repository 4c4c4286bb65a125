package chat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
)

const pathAnalyze = "/analyze"

// ErrEmptyText rejects an analysis request with nothing to analyze.
var ErrEmptyText = errors.New("請先輸入要分析的文字。")

// RiskLevel bands a risk score.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "high"
	RiskMedium RiskLevel = "medium"
	RiskLow    RiskLevel = "low"
	RiskError  RiskLevel = "error"
)

// Band maps a 0-100 score to its level. Negative scores are errors.
func Band(score float64) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	case score >= 0:
		return RiskLow
	default:
		return RiskError
	}
}

// Analysis is the verdict on a suspicious text.
type Analysis struct {
	RiskScore float64   `json:"risk_score"`
	ScamType  string    `json:"scam_type"`
	Analysis  string    `json:"analysis"`
	Level     RiskLevel `json:"level"`
	Label     string    `json:"label"`
	Source    string    `json:"source,omitempty"`
}

func (a Analysis) banded() Analysis {
	a.Level = Band(a.RiskScore)
	score := strconv.FormatFloat(a.RiskScore, 'f', -1, 64)
	switch a.Level {
	case RiskHigh:
		a.Label = "高風險 (" + score + "%)"
	case RiskMedium:
		a.Label = "中風險 (" + score + "%)"
	case RiskLow:
		a.Label = "低風險 (" + score + "%)"
	default:
		a.Label = "分析錯誤"
	}
	return a
}

func failedAnalysis(err error) Analysis {
	return Analysis{
		RiskScore: -1,
		ScamType:  "錯誤",
		Analysis:  "分析時發生錯誤: " + err.Error(),
	}.banded()
}

// Analyzer forwards texts to the backend detector.
type Analyzer struct {
	client *fetcher.Client
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(client *fetcher.Client, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, logger: logger}
}

// Analyze scores text. A failed or unreadable verdict comes back as the
// error-banded result; only empty text is an error.
func (a *Analyzer) Analyze(ctx context.Context, text string) (Analysis, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Analysis{}, ErrEmptyText
	}

	res := a.client.Post(ctx, pathAnalyze, map[string]string{"text": text})
	if !res.OK() {
		a.logger.Warn("analysis failed", zap.Error(res.Err))
		return failedAnalysis(res.Err), nil
	}

	verdict, err := parseVerdict(res.Payload)
	if err != nil {
		a.logger.Warn("analysis unreadable", zap.Error(err))
		return failedAnalysis(err), nil
	}
	return verdict.banded(), nil
}

// parseVerdict reads the detector's answer. The verdict is either the
// payload itself or a JSON document encoded as a string under
// raw_llm_output.
func parseVerdict(raw []byte) (Analysis, error) {
	if !gjson.ValidBytes(raw) {
		return Analysis{}, errors.New("analysis payload is not JSON")
	}
	v := gjson.ParseBytes(raw)
	source := v.Get("source").String()

	if inner := v.Get("raw_llm_output"); inner.Exists() {
		switch {
		case inner.IsObject():
			v = inner
		case inner.Type == gjson.String && gjson.Valid(inner.Str):
			v = gjson.Parse(inner.Str)
		default:
			return Analysis{}, fmt.Errorf("raw_llm_output is not a JSON document: %.40q", inner.String())
		}
	}
	if !v.IsObject() {
		return Analysis{}, errors.New("analysis verdict is not an object")
	}

	score := v.Get("risk_score")
	if score.Type != gjson.Number {
		return Analysis{}, errors.New("analysis verdict has no numeric risk_score")
	}
	if s := v.Get("source").String(); s != "" {
		source = s
	}
	return Analysis{
		RiskScore: score.Float(),
		ScamType:  v.Get("scam_type").String(),
		Analysis:  v.Get("analysis").String(),
		Source:    source,
	}, nil
}
