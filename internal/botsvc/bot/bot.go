// Package bot is the Telegram front end for card drops.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/cardbot-services/internal/botsvc/render"
	"github.com/avvvet/cardbot-services/internal/comm"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const claimPrefix = "claim:"

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type CardClient interface {
	Drop(ctx context.Context, actorID string, count int) ([]comm.DropData, error)
	Claim(ctx context.Context, dropID, actorID string) (comm.DropData, error)
	List(ctx context.Context, userID string, page int) (comm.ListData, error)
	Show(ctx context.Context, userID string, index int) (comm.ShowData, error)
}

type Renderer interface {
	Render(req render.Request) ([]byte, error)
}

// posted is a drop message that still carries a claim button.
type posted struct {
	chatID    int64
	messageID int
	photo     bool
}

type Bot struct {
	sender   Sender
	cards    CardClient
	renderer Renderer
	timeout  time.Duration
	drops    sync.Map // drop id -> posted
}

func New(sender Sender, cards CardClient, renderer Renderer, timeout time.Duration) *Bot {
	return &Bot{sender: sender, cards: cards, renderer: renderer, timeout: timeout}
}

// Run handles updates until ctx is done or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	userID := userID(m.From)
	args := strings.Fields(m.CommandArguments())

	switch m.Command() {
	case "drop":
		count := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				b.reply(m.Chat.ID, "Usage: /drop [count]")
				return
			}
			count = n
		}
		b.drop(ctx, m.Chat.ID, userID, count)
	case "list":
		page := 1
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				b.reply(m.Chat.ID, "Usage: /list [page]")
				return
			}
			page = n
		}
		b.list(ctx, m.Chat.ID, userID, page)
	case "show":
		if len(args) == 0 {
			b.reply(m.Chat.ID, "Usage: /show <index>")
			return
		}
		index, err := strconv.Atoi(args[0])
		if err != nil {
			b.reply(m.Chat.ID, "Usage: /show <index>")
			return
		}
		b.show(ctx, m.Chat.ID, userID, index)
	case "start", "help":
		b.reply(m.Chat.ID, helpText)
	}
}

const helpText = `/drop [count] - drop cards (operator only)
/list [page] - list your cards, 10 per page
/show <index> - show one of your cards`

func (b *Bot) drop(ctx context.Context, chatID int64, actorID string, count int) {
	drops, err := b.cards.Drop(ctx, actorID, count)
	if err != nil {
		if code(err) == comm.CodeUnauthorized {
			b.reply(chatID, "You are not authorized to drop a card.")
			return
		}
		log.Errorf("Error [CardClient.Drop] %s", err)
		b.reply(chatID, "Unable to drop a card right now.")
		return
	}

	for _, d := range drops {
		b.postDrop(chatID, d)
	}
}

func (b *Bot) postDrop(chatID int64, d comm.DropData) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Claim Card", claimPrefix+d.ID)),
	)

	img, err := b.renderer.Render(render.FromRecord(d.Card))
	if err != nil {
		log.Warnf("render %s: %s", d.Card.SerialNumber, err)
		msg := tgbotapi.NewMessage(chatID, "A card was dropped, but image generation failed.\n"+d.Card.String())
		msg.ReplyMarkup = keyboard
		sent, err := b.sender.Send(msg)
		if err != nil {
			log.Errorf("Failed to send drop %s: %v", d.ID, err)
			return
		}
		b.drops.Store(d.ID, posted{chatID: chatID, messageID: sent.MessageID})
		return
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: d.Card.SerialNumber + ".png", Bytes: img})
	photo.Caption = "Card Drop!\nA new card has been dropped! Tap Claim Card to add it to your collection."
	photo.ReplyMarkup = keyboard
	sent, err := b.sender.Send(photo)
	if err != nil {
		log.Errorf("Failed to send drop %s: %v", d.ID, err)
		return
	}
	b.drops.Store(d.ID, posted{chatID: chatID, messageID: sent.MessageID, photo: true})
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	dropID, ok := strings.CutPrefix(q.Data, claimPrefix)
	if !ok || q.From == nil {
		b.answer(q.ID, "")
		return
	}

	d, err := b.cards.Claim(ctx, dropID, userID(q.From))
	if err != nil {
		b.answer(q.ID, claimFailureText(err))
		if c := code(err); c == comm.CodeExpired || c == comm.CodeUnknownDrop {
			b.retire(dropID, "This drop has expired.")
		}
		return
	}

	b.answer(q.ID, "You claimed "+d.Card.SerialNumber+"!")
	b.retire(dropID, fmt.Sprintf("%s has claimed %s!", mention(q.From), d.Card.SerialNumber))
}

func claimFailureText(err error) string {
	switch code(err) {
	case comm.CodeAlreadyClaimed:
		return "This card has already been claimed."
	case comm.CodeExpired:
		return "This drop has expired."
	case comm.CodeUnauthorized:
		return "Only the dropper can claim this card."
	case comm.CodeUnknownDrop:
		return "This drop is no longer available."
	}
	log.Errorf("Error [CardClient.Claim] %s", err)
	return "Claim failed, please try again."
}

// HandleEvent retires drop messages claimed or expired elsewhere.
func (b *Bot) HandleEvent(msg *comm.WSMessage) {
	if msg.Type != comm.EventClaimed && msg.Type != comm.EventExpired {
		return
	}
	var d comm.DropData
	if err := json.Unmarshal(msg.Data, &d); err != nil {
		log.Errorf("Error decoding %s event: %s", msg.Type, err)
		return
	}

	if msg.Type == comm.EventExpired {
		b.retire(d.ID, "This drop has expired.")
		return
	}
	b.retire(d.ID, fmt.Sprintf("Claimed: %s", d.Card.SerialNumber))
}

// retire removes the claim button of a posted drop and replaces its text.
func (b *Bot) retire(dropID, text string) {
	v, ok := b.drops.LoadAndDelete(dropID)
	if !ok {
		return
	}
	p := v.(posted)

	var edit tgbotapi.Chattable
	if p.photo {
		edit = tgbotapi.NewEditMessageCaption(p.chatID, p.messageID, text)
	} else {
		edit = tgbotapi.NewEditMessageText(p.chatID, p.messageID, text)
	}
	if _, err := b.sender.Request(edit); err != nil {
		log.Errorf("Failed to retire drop %s: %v", dropID, err)
	}
}

func (b *Bot) list(ctx context.Context, chatID int64, userID string, page int) {
	data, err := b.cards.List(ctx, userID, page)
	if err != nil {
		log.Errorf("Error [CardClient.List] %s", err)
		b.reply(chatID, "Unable to list your cards right now.")
		return
	}
	b.reply(chatID, listText(data))
}

func listText(data comm.ListData) string {
	if data.Notice != "" {
		return data.Notice
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Your Cards (Page %d)\n", data.Page)
	for _, it := range data.Items {
		fmt.Fprintf(&sb, "%d. %s (%s)\n", it.Index, it.Card.SerialNumber, it.Card.Name)
	}
	if data.HasNext {
		fmt.Fprintf(&sb, "Next: /list %d", data.Page+1)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) show(ctx context.Context, chatID int64, userID string, index int) {
	data, err := b.cards.Show(ctx, userID, index)
	if err != nil {
		if code(err) == comm.CodeNotFound {
			b.reply(chatID, "You have no card at that index!")
			return
		}
		log.Errorf("Error [CardClient.Show] %s", err)
		b.reply(chatID, "Unable to show that card right now.")
		return
	}

	card := data.Card
	text := fmt.Sprintf("%s\n%s\nRarity: %s\nSerial Number: %s\nStats:%s",
		card.Set, card.Name, card.Rarity, card.SerialNumber, card.Stats.Lines())

	img, err := b.renderer.Render(render.FromRecord(card))
	if err != nil {
		log.Warnf("render %s: %s", card.SerialNumber, err)
		b.reply(chatID, text)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: card.SerialNumber + ".png", Bytes: img})
	photo.Caption = text
	if _, err := b.sender.Send(photo); err != nil {
		log.Errorf("Failed to send card %s: %v", card.SerialNumber, err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Errorf("Failed to send telegram message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.sender.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Errorf("Failed to answer callback %s: %v", callbackID, err)
	}
}

func code(err error) string {
	var ed *comm.ErrorData
	if errors.As(err, &ed) {
		return ed.Code
	}
	return ""
}

func userID(u *tgbotapi.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func mention(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return u.FirstName
}
