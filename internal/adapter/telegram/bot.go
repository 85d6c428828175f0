package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/petedillo/ollama-chat-api/internal/adapter/ollama"
	"github.com/petedillo/ollama-chat-api/internal/config"
	"github.com/petedillo/ollama-chat-api/internal/domain"
	"github.com/petedillo/ollama-chat-api/internal/usecase/chat"
)

const chunkSize = 2048

// sessionNamespace scopes the session ids derived from Telegram chat ids.
var sessionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://t.me/ollama-chat-api"))

// messenger is the part of the Bot API used to answer users.
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	api  *tgbotapi.BotAPI
	out  messenger
	cfg  config.Config
	chat *chat.Service
}

func NewBot(cfg config.Config, chatSvc *chat.Service) (*Bot, error) {
	if err := cfg.RequireTelegram(); err != nil {
		return nil, err
	}
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, err
	}
	log.Printf("authorized on telegram account %s", api.Self.UserName)

	return &Bot{
		api:  api,
		out:  api,
		cfg:  cfg,
		chat: chatSvc,
	}, nil
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			msg := update.Message
			if msg.From == nil {
				continue
			}
			go b.handleMessage(ctx, msg)
		}
	}
}

// SessionID maps a Telegram chat to its chat session. The same chat always
// gets the same session, across restarts.
func SessionID(chatID int64) string {
	return uuid.NewSHA1(sessionNamespace, []byte(strconv.FormatInt(chatID, 10))).String()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !isAllowedUser(msg.From.ID, b.cfg) {
		deny := tgbotapi.NewMessage(msg.Chat.ID, "access denied")
		deny.ReplyToMessageID = msg.MessageID
		if _, err := b.out.Send(deny); err != nil {
			log.Printf("failed to send deny message: %v", err)
		}
		return
	}

	sessionID := SessionID(msg.Chat.ID)
	session, err := b.chat.EnsureSession(ctx, sessionID)
	if err != nil {
		log.Printf("failed to open session %s: %v", sessionID, err)
		b.sendText(msg.Chat.ID, msg.MessageID, "something went wrong, try again later")
		return
	}

	switch msg.Command() {
	case "start":
		b.sendText(msg.Chat.ID, msg.MessageID, "hi, send me a message and i will ask the model")
		return
	case "title":
		b.sendText(msg.Chat.ID, msg.MessageID, "title: "+session.Title)
		return
	}

	userInput, respondAsFile := BuildUserInput(msg)
	b.sendChatAction(msg.Chat.ID, respondAsFile)

	exchange, err := b.chat.SendMessage(ctx, sessionID, userInput)
	if err != nil {
		if !errors.Is(err, chat.ErrEmptyMessage) {
			log.Printf("chat turn failed for session %s: %v", sessionID, err)
		}
		b.sendText(msg.Chat.ID, msg.MessageID, failureText(err))
		return
	}

	resp := exchange.AssistantMessage.Content
	if respondAsFile || shouldSendAsFile(resp) {
		if err := b.sendAsFile(msg.Chat.ID, msg.MessageID, resp); err != nil {
			log.Printf("failed to send file: %v", err)
			b.sendText(msg.Chat.ID, msg.MessageID, "could not send file, here is the text")
			b.sendText(msg.Chat.ID, msg.MessageID, resp)
		}
		return
	}

	b.sendText(msg.Chat.ID, msg.MessageID, resp)
}

func failureText(err error) string {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return "i need some content to work with"
	case ollama.IsTimeout(err):
		return "the model took too long to answer, try again later"
	case ollama.IsBackendAPI(err):
		return fmt.Sprintf("the model returned an error (%d), try again later", ollama.StatusCode(err))
	case ollama.IsTransport(err), ollama.IsResponseFormat(err):
		return "failed to reach the model, try again later"
	default:
		return "something went wrong, try again later"
	}
}

// sendText sends text in chunks as Markdown. Telegram rejects Markdown with
// unbalanced entities, so a chunk that fails is resent as plain text.
func (b *Bot) sendText(chatID int64, replyTo int, text string) {
	for idx, chunk := range splitText(text, chunkSize) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if idx == 0 {
			msg.ReplyToMessageID = replyTo
		}
		if _, err := b.out.Send(msg); err != nil {
			log.Printf("failed to send markdown reply, retrying as plain text: %v", err)
			msg.ParseMode = ""
			if _, err := b.out.Send(msg); err != nil {
				log.Printf("failed to send reply: %v", err)
			}
		}
	}
}

func (b *Bot) sendChatAction(chatID int64, asFile bool) {
	action := tgbotapi.ChatTyping
	if asFile {
		action = tgbotapi.ChatUploadDocument
	}
	if _, err := b.out.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		log.Printf("failed to send chat action: %v", err)
	}
}

func (b *Bot) sendAsFile(chatID int64, replyTo int, content string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "response.md",
		Bytes: []byte(content),
	})
	doc.ReplyToMessageID = replyTo

	_, err := b.out.Send(doc)
	return err
}

func shouldSendAsFile(text string) bool {
	return len([]rune(text)) > chunkSize
}

func isAllowedUser(userID int64, cfg config.Config) bool {
	for _, id := range cfg.AdminUserIDs {
		if id == userID {
			return true
		}
	}

	if len(cfg.AllowedUserIDs) == 0 {
		return true
	}

	for _, id := range cfg.AllowedUserIDs {
		if id == userID {
			return true
		}
	}

	return false
}

// BuildUserInput turns a Telegram message into a user turn. A leading /file
// asks for the reply as a document.
func BuildUserInput(msg *tgbotapi.Message) (chat.Input, bool) {
	respondAsFile := false
	text := msg.Text
	if strings.HasPrefix(strings.ToLower(text), "/file") {
		respondAsFile = true
		text = strings.TrimSpace(text[len("/file"):])
	}

	parts := make([]string, 0, 6)
	if text != "" {
		parts = append(parts, text)
	}
	if msg.Caption != "" {
		parts = append(parts, "Caption: "+msg.Caption)
	}
	parts = append(parts, DescribeAttachments(msg)...)

	return chat.Input{
		Role:    domain.RoleUser,
		Content: strings.Join(parts, "\n"),
	}, respondAsFile
}

func splitText(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}
