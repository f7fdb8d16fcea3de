package discord

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"

	"github.com/plexllm/llamabot/internal/prompt"
	"github.com/plexllm/llamabot/internal/store"
)

const (
	tldrInstruction      = "Summarize the following conversation for me. Be concise and to the point. 50 words or less please."
	summarizeInstruction = "Summarize the following conversation for the timeframe '%s'. Be concise and to the point. 500 words or less."
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "chat",
			Description: "Chat with the llama",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "message",
				Description: "Your message to the llama",
				Required:    true,
			}},
		},
		{
			Name:        "history",
			Description: "Show the conversation history for this channel",
		},
		{
			Name:        "search",
			Description: "Search the conversation history for a keyword in this channel",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "The keyword or phrase to search for",
				Required:    true,
			}},
		},
		{
			Name:        "tldr",
			Description: "Summarize everything since you last sent a message in this channel",
		},
		{
			Name:        "summarize",
			Description: "Summarize all messages in this channel for a given timeframe",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "timeframe",
				Description: "Timeframe to summarize: today, yesterday, this_month, or all",
				Required:    true,
			}},
		},
		{
			Name:        "message_count",
			Description: "Show how many messages have been sent in this channel",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "days",
				Description: "Number of days to look back, today, yesterday, or 'all' for all time",
				Required:    true,
			}},
		},
		{
			Name:        "import_history",
			Description: "Import all previous messages from this channel into the database (safe against duplicates)",
		},
		{
			Name:        "quote",
			Description: "Show recent Hall of Fame quotes for this channel",
		},
		{
			Name:        "personality",
			Description: "Show or set the llama's personality for this channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "show",
					Description: "Show the current personality",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Set the personality for this channel",
					Options: []*discordgo.ApplicationCommandOption{{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "The system prompt override",
						Required:    true,
					}},
				},
			},
		},
		{
			Name:        "db_size",
			Description: "Show how many messages are in the history database",
		},
		{
			Name:        "btc",
			Description: "Get the current price of Bitcoin (BTC)",
		},
		{
			Name:        "ath",
			Description: "Record an all-time high and show how long since your last one",
		},
		{
			Name: "Quote to Hall of Fame",
			Type: discordgo.MessageApplicationCommand,
		},
	}
}

// chatReply runs the full chat flow: append the user turn, assemble a
// bounded prompt, ask the model, sanitize, store, and return the reply.
func (b *Bot) chatReply(channelID int64, username, text string) string {
	if text == "" {
		return "Say something first."
	}
	if err := b.store.Append(channelID, store.RoleUser, username, text); err != nil {
		log.Printf("[bot] failed to append user message: %v", err)
		return "Error saving your message."
	}

	// +1 so the just-appended trigger does not eat a history slot.
	history, err := b.store.Recent(channelID, b.cfg.ContextTurns+1)
	if err != nil {
		log.Printf("[bot] failed to read history: %v", err)
		history = nil
	}
	personality, err := b.store.Personality(channelID)
	if err != nil {
		log.Printf("[bot] failed to read personality: %v", err)
		personality = ""
	}

	messages := b.assembler.Assemble(personality, history, username, text)
	reply := prompt.Sanitize(b.llm.Ask(messages))
	if reply == "" {
		reply = "No response from the llama."
	}
	if err := b.store.Append(channelID, store.RoleAssistant, b.botName, reply); err != nil {
		log.Printf("[bot] failed to append assistant reply: %v", err)
	}
	return reply
}

// historyReply renders the channel's full stored history, newest lines
// surviving the display cut.
func (b *Bot) historyReply(channelID int64) string {
	msgs, err := b.store.Recent(channelID, b.cfg.HistoryLimit)
	if err != nil {
		log.Printf("[bot] failed to read history: %v", err)
		return "Error reading history."
	}
	if len(msgs) == 0 {
		return "No conversation history for this channel."
	}
	return formatTranscript(msgs)
}

func (b *Bot) searchReply(channelID int64, query string) string {
	msgs, err := b.store.Search(channelID, query, 10)
	if err != nil {
		log.Printf("[bot] search failed: %v", err)
		return "Error searching history."
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("No results found for '%s'.", query)
	}
	return formatTranscript(msgs)
}

func (b *Bot) tldrReply(channelID int64, username string) string {
	msgs, err := b.store.MessagesAfterUserLast(channelID, username)
	if err != nil {
		log.Printf("[bot] tldr query failed: %v", err)
		return "Error reading history."
	}
	if len(msgs) == 0 {
		return "No new messages since your last message."
	}
	summary := prompt.Sanitize(b.llm.Ask(prompt.Summary(tldrInstruction, msgs)))
	return "**TL;DR:**\n" + summary
}

func (b *Bot) summarizeReply(channelID int64, raw string) string {
	tf, err := store.ParseTimeframe(raw)
	if err != nil {
		return "Please provide a valid timeframe: today, yesterday, this_month, or all."
	}
	msgs, err := b.store.MessagesInTimeframe(channelID, tf)
	if err != nil {
		log.Printf("[bot] summarize query failed: %v", err)
		return "Error reading history."
	}
	if len(msgs) == 0 {
		return fmt.Sprintf("No messages found for timeframe '%s'.", tf)
	}
	instruction := fmt.Sprintf(summarizeInstruction, tf)
	summary := prompt.Sanitize(b.llm.Ask(prompt.Summary(instruction, msgs)))
	return fmt.Sprintf("**Summary for %s:**\n%s", tf, summary)
}

func (b *Bot) countReply(channelID int64, raw string) string {
	period, err := store.ParsePeriod(raw)
	if err != nil {
		return "Please provide a number of days (e.g. 7), 'today', 'yesterday', or 'all'."
	}
	count, err := b.store.Count(channelID, period)
	if err != nil {
		log.Printf("[bot] count failed: %v", err)
		return "Error counting messages."
	}
	switch {
	case period.Kind == store.PeriodAll:
		return fmt.Sprintf("%d messages have been sent all time in this channel.", count)
	case period.Kind == store.PeriodYesterday:
		return fmt.Sprintf("%d messages have been sent yesterday in this channel.", count)
	case period.Days == 0:
		return fmt.Sprintf("%d messages have been sent today in this channel.", count)
	default:
		return fmt.Sprintf("%d messages have been sent in the last %d day(s) in this channel.", count, period.Days)
	}
}

func (b *Bot) quotesReply(channelID int64) string {
	quotes, err := b.store.Quotes(channelID, 5)
	if err != nil {
		log.Printf("[bot] quotes query failed: %v", err)
		return "Error reading quotes."
	}
	if len(quotes) == 0 {
		return "No Hall of Fame quotes yet for this channel."
	}
	lines := make([]string, 0, len(quotes))
	for _, q := range quotes {
		lines = append(lines, fmt.Sprintf("**%s**: \"%s\"\n_Quoted by %s on %s_",
			q.Username, q.Content, q.QuotedBy, q.Timestamp.Format("2006-01-02 15:04")))
	}
	return strings.Join(lines, "\n\n")
}

func (b *Bot) addQuoteReply(channelID, messageID int64, author, content, quotedBy string) string {
	if err := b.store.AddQuote(channelID, messageID, author, content, quotedBy); err != nil {
		log.Printf("[bot] failed to add quote: %v", err)
		return "Error saving the quote."
	}
	preview := content
	if runes := []rune(preview); len(runes) > 100 {
		preview = string(runes[:100]) + "..."
	}
	return fmt.Sprintf("Quoted %s: '%s' to the Hall of Fame!", author, preview)
}

func (b *Bot) personalityShowReply(channelID int64) string {
	text, err := b.store.Personality(channelID)
	if err != nil {
		log.Printf("[bot] failed to read personality: %v", err)
		return "Error reading personality."
	}
	if text == "" {
		return "No personality set for this channel; using the default."
	}
	return fmt.Sprintf("Current personality: %s", text)
}

func (b *Bot) personalitySetReply(channelID int64, text string) string {
	if err := b.store.SetPersonality(channelID, text); err != nil {
		log.Printf("[bot] failed to set personality: %v", err)
		return "Error saving personality."
	}
	return "Personality updated for this channel."
}

func (b *Bot) dbSizeReply() string {
	count, err := b.store.TotalMessages()
	if err != nil {
		log.Printf("[bot] failed to count messages: %v", err)
		return fmt.Sprintf("Error reading database: %v", err)
	}
	return fmt.Sprintf("There are %d messages in the history database.", count)
}

func (b *Bot) btcReply() string {
	q, err := b.finance.BTCPrice()
	if err != nil {
		return fmt.Sprintf("Error fetching BTC price: %v", err)
	}
	price := humanize.CommafWithDigits(q.PriceUSD, 2)
	if !q.HasChange {
		return fmt.Sprintf("Current BTC price: $%s USD (24h change unavailable)", price)
	}
	return fmt.Sprintf("Current BTC price: $%s USD (%+.2f%% 24h)", price, q.Change24h)
}

func (b *Bot) tickerReply(ticker string) string {
	price, err := b.finance.Quote(ticker)
	if err != nil {
		log.Printf("[bot] quote for %s failed: %v", ticker, err)
		return fmt.Sprintf("Could not fetch price for $%s.", ticker)
	}
	return fmt.Sprintf("$%s: $%s", ticker, humanize.CommafWithDigits(price, 2))
}

func (b *Bot) athReply(userID int64, username string) string {
	prev, err := b.store.Milestone(userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[bot] milestone read failed: %v", err)
		return "Error reading your record."
	}
	if touchErr := b.store.TouchMilestone(userID, username); touchErr != nil {
		log.Printf("[bot] milestone update failed: %v", touchErr)
		return "Error saving your record."
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("First all-time high on record for %s!", username)
	}
	since := time.Since(prev.LastEventAt).Round(time.Second)
	return fmt.Sprintf("It has been %s since %s's last all-time high.", since, username)
}

// formatTranscript renders messages as "**username (Role):** content" lines
// and keeps the tail when the result exceeds the display limit.
func formatTranscript(msgs []store.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("**%s (%s):** %s", m.Username, capitalize(string(m.Role)), m.Content))
	}
	out := strings.Join(lines, "\n")
	if runes := []rune(out); len(runes) > prompt.DisplayLimit {
		out = "...\n" + string(runes[len(runes)-prompt.DisplayLimit:])
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
