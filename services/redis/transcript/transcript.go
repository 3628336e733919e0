package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"multimodalchat/core"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "multimodalchat:transcript:"
	// MessagesChannel receives every appended entry as JSON.
	MessagesChannel = "multimodalchat:messages"
)

// RedisTranscriptConfig holds connection and retention settings for the mirror.
type RedisTranscriptConfig struct {
	Addr       string `json:"addr"`
	Password   string `json:"password,omitempty"`
	DB         int    `json:"db"`
	MaxEntries int64  `json:"max_entries"` // List is trimmed to the newest MaxEntries.
	TTLSeconds int64  `json:"ttl_seconds"` // Expiry refreshed on every append. 0 keeps lists forever.
	TimeoutMs  int    `json:"timeout_ms"`  // Per-call deadline.
	Publish    bool   `json:"publish"`     // Also publish entries on MessagesChannel.
}

// DefaultConfig returns a RedisTranscriptConfig with sensible defaults.
func DefaultConfig() RedisTranscriptConfig {
	return RedisTranscriptConfig{
		Addr:       "localhost:6379",
		MaxEntries: 1000,
		TTLSeconds: 7 * 24 * 60 * 60,
		TimeoutMs:  2000,
	}
}

func (c RedisTranscriptConfig) timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// RedisTranscriptWriter mirrors a conversation transcript into a Redis list,
// oldest entry first.
type RedisTranscriptWriter struct {
	client         *redis.Client
	config         RedisTranscriptConfig
	conversationID string
	logger         *core.Logger
}

// NewRedisTranscriptWriter connects and pings the server.
func NewRedisTranscriptWriter(ctx context.Context, config RedisTranscriptConfig, conversationID string, logger *core.Logger) (*RedisTranscriptWriter, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.TimeoutMs <= 0 {
		config.TimeoutMs = DefaultConfig().TimeoutMs
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, config.timeout())
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", config.Addr, err)
	}

	return &RedisTranscriptWriter{
		client:         client,
		config:         config,
		conversationID: conversationID,
		logger:         logger.With(map[string]any{"component": "redis_transcript", "conversation_id": conversationID}),
	}, nil
}

// Key is the list the transcript is written to.
func (w *RedisTranscriptWriter) Key() string {
	return Key(w.conversationID)
}

// Key returns the list key for a conversation.
func Key(conversationID string) string {
	return keyPrefix + conversationID
}

// Append pushes the entry, trims the list and refreshes its expiry in one pipeline.
func (w *RedisTranscriptWriter) Append(entry core.TranscriptEntry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := sonic.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis transcript: marshal: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.config.timeout())
	defer cancel()

	key := w.Key()
	pipe := w.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if w.config.MaxEntries > 0 {
		pipe.LTrim(ctx, key, -w.config.MaxEntries, -1)
	}
	if w.config.TTLSeconds > 0 {
		pipe.Expire(ctx, key, time.Duration(w.config.TTLSeconds)*time.Second)
	}
	if w.config.Publish {
		pipe.Publish(ctx, MessagesChannel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis transcript: append: %w", err)
	}
	return nil
}

// Entries returns the stored transcript, oldest first.
func (w *RedisTranscriptWriter) Entries(ctx context.Context) ([]core.TranscriptEntry, error) {
	raw, err := w.client.LRange(ctx, w.Key(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis transcript: read: %w", err)
	}
	return decodeEntries(raw)
}

func decodeEntries(raw []string) ([]core.TranscriptEntry, error) {
	entries := make([]core.TranscriptEntry, 0, len(raw))
	var errs []error
	for _, item := range raw {
		var entry core.TranscriptEntry
		if err := sonic.UnmarshalString(item, &entry); err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errors.Join(errs...)
}

func (w *RedisTranscriptWriter) Close() error {
	return w.client.Close()
}
