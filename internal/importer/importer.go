package importer

import (
	"context"
	"fmt"

	"github.com/plexllm/llamabot/internal/store"
)

// ExternalMessage is one message from the gateway's channel history. ID is
// the platform's message identifier, not a store row id.
type ExternalMessage struct {
	ID      int64
	Author  string
	Content string
	FromBot bool
}

// Iterator walks a channel's external history oldest-first. Next reports
// ok=false when the history is exhausted.
type Iterator interface {
	Next(ctx context.Context) (msg ExternalMessage, ok bool, err error)
}

// Run backfills a channel from its external history. Messages at or below
// the stored watermark are skipped, as are the bot's own messages and
// messages with no usable text. The watermark is upserted once, after the
// scan, so re-running is idempotent; a run that fails mid-scan still
// commits the highest id it appended, and the remaining tail is picked up
// by the next run. Returns the number of newly imported messages.
func Run(ctx context.Context, st *store.Store, channelID int64, it Iterator) (int, error) {
	watermark, found, err := st.LastImportedID(channelID)
	if err != nil {
		return 0, err
	}

	imported := 0
	last := watermark
	var scanErr error

	for {
		if err := ctx.Err(); err != nil {
			scanErr = err
			break
		}
		msg, ok, err := it.Next(ctx)
		if err != nil {
			scanErr = fmt.Errorf("read external history: %w", err)
			break
		}
		if !ok {
			break
		}
		if found && msg.ID <= watermark {
			continue
		}
		if msg.FromBot || msg.Author == "" || msg.Content == "" {
			continue
		}
		if err := st.Append(channelID, store.RoleUser, msg.Author, msg.Content); err != nil {
			scanErr = err
			break
		}
		imported++
		last = msg.ID
	}

	// Commit only what was actually appended; never past it.
	if imported > 0 && last > watermark {
		if err := st.SetLastImportedID(channelID, last); err != nil {
			if scanErr != nil {
				return imported, scanErr
			}
			return imported, err
		}
	}
	return imported, scanErr
}
