package telegram

import (
	"fmt"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// DescribeAttachments renders each attachment as a line of text. The model
// only reads text, so file contents are never downloaded.
func DescribeAttachments(msg *tgbotapi.Message) []string {
	parts := make([]string, 0, 8)

	if msg.Document != nil {
		parts = append(parts, fmt.Sprintf(
			"Document: %s (%d bytes, mime %s).",
			msg.Document.FileName, msg.Document.FileSize, msg.Document.MimeType,
		))
	}
	if len(msg.Photo) > 0 {
		best := msg.Photo[len(msg.Photo)-1]
		parts = append(parts, fmt.Sprintf(
			"Photo: resolution %dx%d (%d bytes).",
			best.Width, best.Height, best.FileSize,
		))
	}
	if msg.Audio != nil {
		parts = append(parts, fmt.Sprintf(
			"Audio: %s (%d sec, %d bytes, mime %s).",
			msg.Audio.Title, msg.Audio.Duration, msg.Audio.FileSize, msg.Audio.MimeType,
		))
	}
	if msg.Voice != nil {
		parts = append(parts, fmt.Sprintf(
			"Voice message: duration %d sec (%d bytes, mime %s).",
			msg.Voice.Duration, msg.Voice.FileSize, msg.Voice.MimeType,
		))
	}
	if msg.Video != nil {
		parts = append(parts, fmt.Sprintf(
			"Video: resolution %dx%d (%d sec, %d bytes, mime %s).",
			msg.Video.Width, msg.Video.Height, msg.Video.Duration,
			msg.Video.FileSize, msg.Video.MimeType,
		))
	}
	if msg.VideoNote != nil {
		parts = append(parts, fmt.Sprintf(
			"Video note: resolution %dx%d (%d sec, %d bytes).",
			msg.VideoNote.Length, msg.VideoNote.Length, msg.VideoNote.Duration, msg.VideoNote.FileSize,
		))
	}
	if msg.Sticker != nil {
		parts = append(parts, fmt.Sprintf(
			"Sticker received: set %s, emoji %s",
			msg.Sticker.SetName, msg.Sticker.Emoji,
		))
	}
	if msg.Animation != nil {
		name := msg.Animation.FileName
		if name == "" {
			name = filepath.Base(msg.Animation.FileID)
		}
		parts = append(parts, fmt.Sprintf(
			"Animation: %s (%d bytes, mime %s).",
			name, msg.Animation.FileSize, msg.Animation.MimeType,
		))
	}

	return parts
}
