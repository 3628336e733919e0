package transcript

import (
	"context"
	"testing"
	"time"

	"multimodalchat/core"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T, mutate func(*RedisTranscriptConfig)) (*RedisTranscriptWriter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	if mutate != nil {
		mutate(&cfg)
	}
	w, err := NewRedisTranscriptWriter(context.Background(), cfg, "conv-1", core.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, mr
}

func texts(entries []core.TranscriptEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

func TestKey(t *testing.T) {
	assert.Equal(t, "multimodalchat:transcript:abc-123", Key("abc-123"))
}

func TestAppend_PreservesOrder(t *testing.T) {
	w, _ := newTestWriter(t, nil)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, w.Append(core.TranscriptEntry{Role: "user", Sender: "user_proxy", Text: text}))
	}

	entries, err := w.Entries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, texts(entries))
	for _, e := range entries {
		assert.NotEmpty(t, e.Timestamp, "missing timestamps are filled in")
	}
}

func TestAppend_TrimsToNewestEntries(t *testing.T) {
	w, mr := newTestWriter(t, func(c *RedisTranscriptConfig) { c.MaxEntries = 2 })

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, w.Append(core.TranscriptEntry{Text: text}))
	}

	entries, err := w.Entries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "three"}, texts(entries))

	stored, err := mr.List(w.Key())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestAppend_RefreshesTTL(t *testing.T) {
	w, mr := newTestWriter(t, func(c *RedisTranscriptConfig) { c.TTLSeconds = 60 })

	require.NoError(t, w.Append(core.TranscriptEntry{Text: "hi"}))
	assert.Equal(t, time.Minute, mr.TTL(w.Key()))

	mr.FastForward(30 * time.Second)
	require.NoError(t, w.Append(core.TranscriptEntry{Text: "again"}))
	assert.Equal(t, time.Minute, mr.TTL(w.Key()), "each append restarts the expiry")

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists(w.Key()))
}

func TestAppend_ZeroTTLKeepsList(t *testing.T) {
	w, mr := newTestWriter(t, func(c *RedisTranscriptConfig) { c.TTLSeconds = 0 })

	require.NoError(t, w.Append(core.TranscriptEntry{Text: "hi"}))
	assert.Zero(t, mr.TTL(w.Key()))
}

func TestAppend_PublishesEntry(t *testing.T) {
	w, mr := newTestWriter(t, func(c *RedisTranscriptConfig) { c.Publish = true })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, MessagesChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err, "subscription confirmation")

	entry := core.TranscriptEntry{Timestamp: "2024-01-01T00:00:00Z", MessageID: "m1", Role: "assistant", Sender: "assistant", Text: "hello", Image: "image_1.png"}
	require.NoError(t, w.Append(entry))

	select {
	case msg := <-sub.Channel():
		var got core.TranscriptEntry
		require.NoError(t, sonic.UnmarshalString(msg.Payload, &got))
		assert.Equal(t, entry, got)
	case <-ctx.Done():
		t.Fatal("no message published")
	}
}

func TestAppend_NoPublishByDefault(t *testing.T) {
	w, mr := newTestWriter(t, nil)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sub := client.Subscribe(context.Background(), MessagesChannel)
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	require.NoError(t, w.Append(core.TranscriptEntry{Text: "quiet"}))

	select {
	case msg := <-sub.Channel():
		t.Fatalf("unexpected publish %q", msg.Payload)
	case <-time.After(200 * time.Millisecond):
	}
	entries, err := w.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppend_FailsWhenServerGone(t *testing.T) {
	w, mr := newTestWriter(t, func(c *RedisTranscriptConfig) { c.TimeoutMs = 200 })
	mr.Close()

	assert.Error(t, w.Append(core.TranscriptEntry{Text: "lost"}))
}

func TestEntries_EmptyConversation(t *testing.T) {
	w, _ := newTestWriter(t, nil)

	entries, err := w.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEntries_SkipsBadLines(t *testing.T) {
	w, mr := newTestWriter(t, nil)
	_, err := mr.RPush(w.Key(),
		`{"ts":"2024-01-01T00:00:00Z","message_id":"1","role":"user","sender":"user_proxy","text":"hi"}`,
		`not json`,
		`{"message_id":"2","role":"assistant","sender":"assistant","text":"hello","audio":"response_1.mp3"}`,
	)
	require.NoError(t, err)

	entries, err := w.Entries(context.Background())

	assert.Error(t, err, "the malformed line is reported")
	require.Len(t, entries, 2)
	assert.Equal(t, "user_proxy", entries[0].Sender)
	assert.Equal(t, "response_1.mp3", entries[1].Audio)
}

func TestNewRedisTranscriptWriter_Unreachable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.TimeoutMs = 500

	_, err := NewRedisTranscriptWriter(context.Background(), cfg, "conv", core.NewNopLogger())
	assert.ErrorContains(t, err, "failed to ping Redis")
}
