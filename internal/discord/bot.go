package discord

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/plexllm/llamabot/internal/config"
	"github.com/plexllm/llamabot/internal/finance"
	"github.com/plexllm/llamabot/internal/importer"
	"github.com/plexllm/llamabot/internal/prompt"
	"github.com/plexllm/llamabot/internal/store"
)

// Asker is the model client abstraction used by the command layer. Failures
// come back as reply text, never as an error.
type Asker interface {
	Ask(messages []prompt.Message) string
}

// Quoter fetches finance data for the /btc command and $TICKER replies.
type Quoter interface {
	BTCPrice() (finance.BTCQuote, error)
	Quote(ticker string) (float64, error)
}

// Bot wires the history core to the Discord gateway.
type Bot struct {
	cfg       config.BotConfig
	session   *discordgo.Session
	store     *store.Store
	llm       Asker
	finance   Quoter
	assembler *prompt.Assembler
	botName   string
}

// New creates a Bot around an opened store and clients.
func New(cfg config.BotConfig, st *store.Store, llm Asker, fin Quoter) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Bot{
		cfg:       cfg,
		session:   session,
		store:     st,
		llm:       llm,
		finance:   fin,
		assembler: &prompt.Assembler{CharBudget: cfg.ContextCharBudget},
		botName:   "llamabot",
	}, nil
}

// Run opens the gateway session, registers commands, and blocks until the
// context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessage)
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	defer b.session.Close()

	if _, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID, b.cfg.GuildID, commandDefinitions(),
	); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	log.Printf("[bot] logged in as %s", b.session.State.User.Username)

	<-ctx.Done()
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil && r.User.Username != "" {
		b.botName = r.User.Username
	}
}

var tickerPattern = regexp.MustCompile(`\$([A-Z]{1,5})\b`)

// onMessage appends every non-bot message to the store, answers $TICKER
// mentions, and treats a bot mention as a chat request.
func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	channelID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		log.Printf("[bot] bad channel id %q: %v", m.ChannelID, err)
		return
	}

	if match := tickerPattern.FindStringSubmatch(m.Content); match != nil {
		s.ChannelMessageSendReply(m.ChannelID, b.tickerReply(match[1]), m.Reference())
	}

	if b.mentionsMe(m) {
		content := strings.TrimSpace(b.stripMention(m.Content))
		reply := b.chatReply(channelID, m.Author.Username, content)
		s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference())
		return
	}

	if m.Content == "" {
		return
	}
	if err := b.store.Append(channelID, store.RoleUser, m.Author.Username, m.Content); err != nil {
		log.Printf("[bot] failed to append message: %v", err)
	}
}

func (b *Bot) mentionsMe(m *discordgo.MessageCreate) bool {
	me := b.session.State.User
	if me == nil {
		return false
	}
	for _, u := range m.Mentions {
		if u.ID == me.ID {
			return true
		}
	}
	return false
}

func (b *Bot) stripMention(content string) string {
	me := b.session.State.User
	if me == nil {
		return content
	}
	content = strings.ReplaceAll(content, "<@"+me.ID+">", "")
	content = strings.ReplaceAll(content, "<@!"+me.ID+">", "")
	return content
}

// onInteraction dispatches slash commands and context menus.
func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()

	channelID, err := strconv.ParseInt(i.ChannelID, 10, 64)
	if err != nil {
		respond(s, i, "Could not determine channel ID.", true)
		return
	}
	user := interactionUser(i)
	if user == nil {
		respond(s, i, "Could not determine who you are.", true)
		return
	}

	switch data.Name {
	case "chat":
		deferResponse(s, i, false)
		reply := b.chatReply(channelID, user.Username, data.Options[0].StringValue())
		followup(s, i, reply)
	case "history":
		respond(s, i, b.historyReply(channelID), false)
	case "search":
		respond(s, i, b.searchReply(channelID, data.Options[0].StringValue()), false)
	case "tldr":
		deferResponse(s, i, false)
		followup(s, i, b.tldrReply(channelID, user.Username))
	case "summarize":
		deferResponse(s, i, false)
		followup(s, i, b.summarizeReply(channelID, data.Options[0].StringValue()))
	case "message_count":
		respond(s, i, b.countReply(channelID, data.Options[0].StringValue()), false)
	case "import_history":
		if b.cfg.OwnerUserID == 0 || user.ID != strconv.FormatInt(b.cfg.OwnerUserID, 10) {
			respond(s, i, "You are not authorized to run this command.", true)
			return
		}
		deferResponse(s, i, true)
		followup(s, i, b.runImport(channelID, i.ChannelID))
	case "quote":
		respond(s, i, b.quotesReply(channelID), false)
	case "personality":
		b.handlePersonality(s, i, channelID, user)
	case "db_size":
		respond(s, i, b.dbSizeReply(), false)
	case "btc":
		deferResponse(s, i, false)
		followup(s, i, b.btcReply())
	case "ath":
		userID, err := strconv.ParseInt(user.ID, 10, 64)
		if err != nil {
			respond(s, i, "Could not determine your user ID.", true)
			return
		}
		respond(s, i, b.athReply(userID, user.Username), false)
	case "Quote to Hall of Fame":
		b.handleQuoteMenu(s, i, channelID, user)
	}
}

func (b *Bot) handlePersonality(s *discordgo.Session, i *discordgo.InteractionCreate, channelID int64, user *discordgo.User) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respond(s, i, b.personalityShowReply(channelID), false)
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "show":
		respond(s, i, b.personalityShowReply(channelID), false)
	case "set":
		if b.cfg.OwnerUserID != 0 && user.ID != strconv.FormatInt(b.cfg.OwnerUserID, 10) {
			respond(s, i, "You are not authorized to change the personality.", true)
			return
		}
		respond(s, i, b.personalitySetReply(channelID, sub.Options[0].StringValue()), false)
	}
}

func (b *Bot) handleQuoteMenu(s *discordgo.Session, i *discordgo.InteractionCreate, channelID int64, user *discordgo.User) {
	data := i.ApplicationCommandData()
	if data.Resolved == nil {
		respond(s, i, "Could not resolve the quoted message.", true)
		return
	}
	target, ok := data.Resolved.Messages[data.TargetID]
	if !ok || target.Author == nil {
		respond(s, i, "Could not resolve the quoted message.", true)
		return
	}
	messageID, err := strconv.ParseInt(target.ID, 10, 64)
	if err != nil {
		respond(s, i, "Could not resolve the quoted message.", true)
		return
	}
	respond(s, i, b.addQuoteReply(channelID, messageID, target.Author.Username, target.Content, user.Username), true)
}

// runImport walks the channel's full Discord history through the
// reconciler.
func (b *Bot) runImport(channelID int64, discordChannelID string) string {
	it := newChannelHistory(b.session, discordChannelID, 500*time.Millisecond)
	imported, err := importer.Run(context.Background(), b.store, channelID, it)
	if err != nil {
		log.Printf("[bot] import for channel %d failed: %v", channelID, err)
		return fmt.Sprintf("Import stopped after %d messages: %v. Re-run to pick up the rest.", imported, err)
	}
	return fmt.Sprintf("Imported %d new messages from this channel.", imported)
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, text string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: prompt.TruncateDisplay(text)}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Printf("[bot] failed to respond to interaction: %v", err)
	}
}

func deferResponse(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Printf("[bot] failed to defer interaction: %v", err)
	}
}

func followup(s *discordgo.Session, i *discordgo.InteractionCreate, text string) {
	_, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: prompt.TruncateDisplay(text),
	})
	if err != nil {
		log.Printf("[bot] failed to send followup: %v", err)
	}
}
