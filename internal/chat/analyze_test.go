package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
)

func newAnalyzer(t *testing.T, status int, body string) (*Analyzer, *string) {
	t.Helper()
	var sent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathAnalyze, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		b, _ := io.ReadAll(r.Body)
		sent = string(b)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewAnalyzer(fetcher.NewClient(srv.URL, 0, nil), nil), &sent
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  RiskLevel
	}{
		{100, RiskHigh},
		{70, RiskHigh},
		{69.9, RiskMedium},
		{30, RiskMedium},
		{29, RiskLow},
		{0, RiskLow},
		{-1, RiskError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Band(tt.score), "score %v", tt.score)
	}
}

func TestAnalyzeNestedVerdict(t *testing.T) {
	a, sent := newAnalyzer(t, http.StatusOK,
		`{"raw_llm_output":"{\"risk_score\":85,\"scam_type\":\"假投資\",\"analysis\":\"保證獲利\"}","source":"detector"}`)

	got, err := a.Analyze(context.Background(), "  保證每月獲利 20%  ")
	require.NoError(t, err)
	assert.Equal(t, "保證每月獲利 20%", gjson.Get(*sent, "text").String(), "text is trimmed")
	assert.Equal(t, Analysis{
		RiskScore: 85,
		ScamType:  "假投資",
		Analysis:  "保證獲利",
		Level:     RiskHigh,
		Label:     "高風險 (85%)",
		Source:    "detector",
	}, got)
}

func TestAnalyzeFlatVerdict(t *testing.T) {
	a, _ := newAnalyzer(t, http.StatusOK, `{"risk_score":45,"scam_type":"假網拍","analysis":"要求私下匯款"}`)

	got, err := a.Analyze(context.Background(), "賣家要我私下匯款")
	require.NoError(t, err)
	assert.Equal(t, RiskMedium, got.Level)
	assert.Equal(t, "中風險 (45%)", got.Label)
	assert.Equal(t, "假網拍", got.ScamType)
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"backend error", http.StatusInternalServerError, `{"detail":"boom"}`},
		{"nested string is not JSON", http.StatusOK, `{"raw_llm_output":"sorry, I cannot help"}`},
		{"no score", http.StatusOK, `{"raw_llm_output":"{\"scam_type\":\"假投資\"}"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAnalyzer(t, tt.status, tt.body)
			got, err := a.Analyze(context.Background(), "hello")
			require.NoError(t, err)
			assert.Equal(t, float64(-1), got.RiskScore)
			assert.Equal(t, RiskError, got.Level)
			assert.Equal(t, "分析錯誤", got.Label)
			assert.Equal(t, "錯誤", got.ScamType)
			assert.Contains(t, got.Analysis, "分析時發生錯誤: ")
		})
	}
}

func TestAnalyzeRejectsEmptyText(t *testing.T) {
	a, sent := newAnalyzer(t, http.StatusOK, `{}`)
	_, err := a.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Empty(t, *sent)
}
