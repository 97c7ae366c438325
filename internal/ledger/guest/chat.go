package guest

import (
	"context"
	"strings"
	"time"

	"coinwise/internal/ledger"
	"coinwise/internal/log"
)

const (
	// MessageLimit is the number of prompts a guest may send per window.
	MessageLimit = 10
	UsageWindow  = time.Hour

	maxTranscript = 100
)

// usageRecord is the stored guest_usage value. ResetTime is epoch millis.
type usageRecord struct {
	Count     int   `json:"count"`
	ResetTime int64 `json:"resetTime"`
}

// Usage returns the current allowance. An expired or missing counter reads
// as a fresh window starting now.
func (s *Store) Usage(ctx context.Context) ledger.Usage {
	rec := s.usage(ctx)
	return toUsage(rec)
}

// reserve takes one slot of the window, or reports the exhausted usage.
func (s *Store) reserve(ctx context.Context) (usageRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.usage(ctx)
	if rec.Count >= MessageLimit {
		return rec, false
	}
	rec.Count++
	s.write(ctx, KeyUsage, rec)
	return rec, true
}

// release returns a slot taken by reserve, unless its window has since reset.
func (s *Store) release(ctx context.Context, taken usageRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.usage(ctx)
	if rec.ResetTime != taken.ResetTime || rec.Count == 0 {
		return
	}
	rec.Count--
	s.write(ctx, KeyUsage, rec)
}

func (s *Store) usage(ctx context.Context) usageRecord {
	now := s.now()
	var rec usageRecord
	if !s.read(ctx, KeyUsage, &rec) || now.UnixMilli() >= rec.ResetTime {
		rec = usageRecord{Count: 0, ResetTime: now.Add(UsageWindow).UnixMilli()}
	}
	return rec
}

func toUsage(rec usageRecord) ledger.Usage {
	remaining := MessageLimit - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return ledger.Usage{
		Count:     rec.Count,
		Limit:     MessageLimit,
		Remaining: remaining,
		ResetTime: time.UnixMilli(rec.ResetTime).UTC(),
	}
}

// Chat forwards prompt to the assistant while the guest has allowance left,
// then records both sides of the exchange. Failed replies are not counted.
func (s *Store) Chat(ctx context.Context, prompt string) (ledger.ChatReply, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ledger.ChatReply{}, ledger.ErrEmptyPrompt
	}
	if s.chat == nil {
		return ledger.ChatReply{}, ledger.ErrSignInRequired
	}
	slot, ok := s.reserve(ctx)
	if !ok {
		return ledger.ChatReply{Usage: ptr(toUsage(slot))}, ledger.ErrGuestLimitReached
	}

	reply, err := s.chat.GuestChat(ctx, prompt)
	if err != nil {
		s.release(ctx, slot)
		return ledger.ChatReply{}, err
	}

	usage := toUsage(slot)
	s.appendTranscript(ctx,
		ledger.ChatMessage{Role: "user", Content: prompt, Timestamp: s.now().UTC()},
		ledger.ChatMessage{Role: "assistant", Content: reply, Timestamp: s.now().UTC()},
	)
	s.logger.DebugContext(ctx, "Guest chat answered", log.FieldOperation, log.OpChat, "count", usage.Count)
	return ledger.ChatReply{Reply: reply, Usage: &usage}, nil
}

// ChatHistory returns the stored transcript, oldest first.
func (s *Store) ChatHistory(ctx context.Context) ([]ledger.ChatMessage, error) {
	var msgs []ledger.ChatMessage
	s.read(ctx, KeyChat, &msgs)
	if msgs == nil {
		msgs = []ledger.ChatMessage{}
	}
	return msgs, nil
}

func (s *Store) appendTranscript(ctx context.Context, msgs ...ledger.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var transcript []ledger.ChatMessage
	s.read(ctx, KeyChat, &transcript)
	transcript = append(transcript, msgs...)
	if len(transcript) > maxTranscript {
		transcript = transcript[len(transcript)-maxTranscript:]
	}
	s.write(ctx, KeyChat, transcript)
}

func ptr[T any](v T) *T { return &v }
