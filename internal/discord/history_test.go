package discord

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
)

// fakePager serves a fixed channel history (oldest-first storage) the way
// Discord does: pages of newest-first messages after a given id.
type fakePager struct {
	msgs  []*discordgo.Message
	calls int
}

func (p *fakePager) ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	p.calls++
	after, _ := strconv.ParseInt(afterID, 10, 64)
	var page []*discordgo.Message
	for _, m := range p.msgs {
		id, _ := strconv.ParseInt(m.ID, 10, 64)
		if id > after {
			page = append(page, m)
		}
		if len(page) == limit {
			break
		}
	}
	// Newest first within the page.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func fakeMessages(n int) []*discordgo.Message {
	msgs := make([]*discordgo.Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, &discordgo.Message{
			ID:      strconv.Itoa(1000 + i),
			Content: "msg " + strconv.Itoa(i),
			Author:  &discordgo.User{Username: "alice"},
		})
	}
	return msgs
}

func TestChannelHistory_WalksOldestFirst(t *testing.T) {
	pager := &fakePager{msgs: fakeMessages(5)}
	it := newChannelHistory(pager, "123", 0)

	var ids []int64
	for {
		msg, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		ids = append(ids, msg.ID)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not ascending: %v", ids)
		}
	}
	if ids[0] != 1000 || ids[4] != 1004 {
		t.Errorf("unexpected id range: %v", ids)
	}
}

func TestChannelHistory_Pages(t *testing.T) {
	// 250 messages means three pages: 100, 100, 50.
	pager := &fakePager{msgs: fakeMessages(250)}
	it := newChannelHistory(pager, "123", 0)

	count := 0
	var last int64
	for {
		msg, ok, err := it.Next(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		if msg.ID <= last {
			t.Fatalf("ids not ascending at message %d", count)
		}
		last = msg.ID
		count++
	}
	if count != 250 {
		t.Errorf("expected 250 messages, got %d", count)
	}
	if pager.calls != 3 {
		t.Errorf("expected 3 page fetches, got %d", pager.calls)
	}
}

func TestChannelHistory_Empty(t *testing.T) {
	it := newChannelHistory(&fakePager{}, "123", 0)
	_, ok, err := it.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected exhausted iterator")
	}
}

func TestChannelHistory_CancelledDuringPause(t *testing.T) {
	pager := &fakePager{msgs: fakeMessages(150)}
	it := newChannelHistory(pager, "123", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	// Drain the first page.
	for i := 0; i < 100; i++ {
		if _, ok, err := it.Next(ctx); err != nil || !ok {
			t.Fatalf("unexpected end at %d: %v", i, err)
		}
	}
	cancel()
	if _, _, err := it.Next(ctx); err == nil {
		t.Error("expected context error on next page fetch")
	}
}
