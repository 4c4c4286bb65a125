package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/jengzang/scam-dashboard-go/internal/fetcher"
)

func newRelay(t *testing.T, replies ...string) (*Relay, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathChatReply, r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if len(bodies) > len(replies) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(replies[len(bodies)-1]))
	}))
	t.Cleanup(srv.Close)
	return NewRelay(fetcher.NewClient(srv.URL, 0, nil), nil), &bodies
}

func scammer(text string) string {
	return fmt.Sprintf(`{"from":"scammer","text":%q,"source":"live"}`, text)
}

var history = []Message{
	{From: "scammer", Text: "您好，我是投資顧問"},
	{From: "user", Text: "你好"},
	{From: "system", Text: "（系統）提示"},
	{From: "scammer", Text: "名額有限，請盡快下載我們的 App 開始獲利。"},
}

func TestReplyDistinct(t *testing.T) {
	relay, bodies := newRelay(t, scammer("保證每月獲利 20%"))

	reply, err := relay.Reply(context.Background(), Request{History: history})
	require.NoError(t, err)
	assert.Equal(t, "保證每月獲利 20%", reply.Text)
	require.Len(t, *bodies, 1)

	sent := gjson.Parse((*bodies)[0])
	assert.Equal(t, "fake_investment", sent.Get("scenario").String())
	assert.Len(t, sent.Get("history").Array(), 3, "system turns are not sent")
}

func TestReplyRetriesDuplicate(t *testing.T) {
	relay, bodies := newRelay(t,
		scammer(" 名額有限，請盡快下載我們的 App 開始獲利。"),
		scammer("您好，我是投資顧問"),
		scammer("今天加入還送體驗金"),
	)

	reply, err := relay.Reply(context.Background(), Request{History: history})
	require.NoError(t, err)
	assert.Equal(t, "今天加入還送體驗金", reply.Text)
	assert.Len(t, *bodies, 3)
}

func TestReplyKeepsFirstWhenRetriesFail(t *testing.T) {
	relay, bodies := newRelay(t, scammer("您好，我是投資顧問"))

	reply, err := relay.Reply(context.Background(), Request{History: history})
	require.NoError(t, err)
	assert.Equal(t, "您好，我是投資顧問", reply.Text)
	assert.Len(t, *bodies, 2, "a failed retry stops retrying")
}

func TestReplyErrors(t *testing.T) {
	relay, _ := newRelay(t)
	_, err := relay.Reply(context.Background(), Request{History: history})
	var fe *fetcher.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.Status)

	relay, _ = newRelay(t, `{"from":"system","text":""}`, `{}`, `{"text":"x"}`)
	_, err = relay.Reply(context.Background(), Request{History: history})
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestConversationWindow(t *testing.T) {
	var long []Message
	for i := 0; i < 15; i++ {
		long = append(long, Message{From: "user", Text: fmt.Sprint(i)})
	}
	got := conversation(long)
	require.Len(t, got, historyWindow)
	assert.Equal(t, "5", got[0].Text)

	lines := recentScammerLines([]Message{
		{From: "scammer", Text: "a"}, {From: "scammer", Text: "b"},
		{From: "user", Text: "c"}, {From: "scammer", Text: "d"}, {From: "scammer", Text: "e"},
	})
	assert.Equal(t, []string{"b", "d", "e"}, lines)
}

func TestReplyRemembersLinesBeyondHistoryWindow(t *testing.T) {
	long := []Message{{From: "scammer", Text: "S1"}}
	for i := 0; i < historyWindow; i++ {
		long = append(long, Message{From: "user", Text: fmt.Sprint("u", i)})
	}
	relay, bodies := newRelay(t, scammer("S1"), scammer("S2"))

	reply, err := relay.Reply(context.Background(), Request{History: long})
	require.NoError(t, err)
	assert.Equal(t, "S2", reply.Text, "a repeat of a line outside the sent window is still retried")
	require.Len(t, *bodies, 2)

	sent := gjson.Parse((*bodies)[0]).Get("history").Array()
	require.Len(t, sent, historyWindow)
	assert.Equal(t, "user", sent[0].Get("from").String())
}
