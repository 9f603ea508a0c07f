package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ashureev/companion/internal/bot"
)

// maxMessageRunes is the Bot API limit for one text message.
const maxMessageRunes = 4096

func render(chatID int64, reply bot.Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, clip(reply.Text))
	if markup := keyboardMarkup(reply.Keyboard); markup != nil {
		msg.ReplyMarkup = markup
	}
	return msg
}

func keyboardMarkup(kb *bot.Keyboard) any {
	if kb == nil {
		return nil
	}
	switch kb.Kind {
	case bot.KeyboardRemove:
		return tgbotapi.NewRemoveKeyboard(false)

	case bot.KeyboardInline:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
			for _, b := range r {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return nil
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)

	case bot.KeyboardReply:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(kb.Rows))
		for _, r := range kb.Rows {
			row := make([]tgbotapi.KeyboardButton, 0, len(r))
			for _, b := range r {
				if b.RequestLocation {
					row = append(row, tgbotapi.NewKeyboardButtonLocation(b.Text))
				} else {
					row = append(row, tgbotapi.NewKeyboardButton(b.Text))
				}
			}
			rows = append(rows, row)
		}
		if len(rows) == 0 {
			return nil
		}
		markup := tgbotapi.NewReplyKeyboard(rows...)
		markup.ResizeKeyboard = true
		return markup
	}
	return nil
}

func clip(s string) string {
	r := []rune(s)
	if len(r) <= maxMessageRunes {
		return s
	}
	return string(r[:maxMessageRunes-1]) + "…"
}
