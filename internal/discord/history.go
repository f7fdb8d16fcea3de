package discord

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/plexllm/llamabot/internal/importer"
)

const historyPageSize = 100

// messagePager is the page-fetch surface of the Discord session, split out
// so the iterator can be tested without a gateway.
type messagePager interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
}

// channelHistory walks a channel's full Discord history oldest-first, one
// page at a time, pausing between page fetches so a long import neither
// starves other handlers nor tight-loops the API.
type channelHistory struct {
	pager     messagePager
	channelID string
	pause     time.Duration
	afterID   string
	buf       []*discordgo.Message
	done      bool
	fetched   bool
}

func newChannelHistory(pager messagePager, channelID string, pause time.Duration) *channelHistory {
	return &channelHistory{pager: pager, channelID: channelID, pause: pause, afterID: "0"}
}

// Next implements importer.Iterator.
func (it *channelHistory) Next(ctx context.Context) (importer.ExternalMessage, bool, error) {
	for len(it.buf) == 0 {
		if it.done {
			return importer.ExternalMessage{}, false, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return importer.ExternalMessage{}, false, err
		}
	}

	msg := it.buf[0]
	it.buf = it.buf[1:]

	id, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return importer.ExternalMessage{}, false, fmt.Errorf("bad message id %q: %w", msg.ID, err)
	}
	ext := importer.ExternalMessage{ID: id, Content: msg.Content}
	if msg.Author != nil {
		ext.Author = msg.Author.Username
		ext.FromBot = msg.Author.Bot
	}
	return ext, true, nil
}

func (it *channelHistory) fetchPage(ctx context.Context) error {
	if it.fetched && it.pause > 0 {
		select {
		case <-time.After(it.pause):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	it.fetched = true

	page, err := it.pager.ChannelMessages(it.channelID, historyPageSize, "", it.afterID, "")
	if err != nil {
		return fmt.Errorf("fetch channel history page: %w", err)
	}
	if len(page) == 0 {
		it.done = true
		return nil
	}
	// Discord returns pages newest-first; reverse to walk oldest-first.
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	it.buf = page
	it.afterID = page[len(page)-1].ID
	if len(page) < historyPageSize {
		it.done = true
	}
	return nil
}
