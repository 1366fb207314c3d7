package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Update is a Bot API webhook update. It decodes from the same JSON as
// tgbotapi.Update and adds the accessors the command controller needs.
type Update struct {
	tgbotapi.Update
}

// CommandText returns the text of the update's message when it looks like a
// bot command, and false otherwise. Edited messages are ignored.
func (u *Update) CommandText() (string, bool) {
	if u.Message == nil || u.Message.Text == "" || u.Message.Text[0] != '/' {
		return "", false
	}
	return u.Message.Text, true
}

// ChatID returns the originating chat id as the string form the Bot API
// accepts, or "" when the update carries no message.
func (u *Update) ChatID() string {
	if u.Message == nil || u.Message.Chat == nil {
		return ""
	}
	return strconv.FormatInt(u.Message.Chat.ID, 10)
}

// ID returns the update id, the key the replay guard remembers.
func (u *Update) ID() int64 {
	return int64(u.UpdateID)
}
