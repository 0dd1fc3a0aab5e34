package bot

import (
	"strconv"

	"gopkg.in/telebot.v3"
)

// SendMessage sends plain text to a chat.
func (bot *Bot) SendMessage(chatID int64, text string) error {
	_, err := bot.B.Send(&telebot.User{ID: chatID}, text)
	return err
}

// SendPrompt sends text with keep/cancel buttons for participationID and
// returns the id of the sent message.
func (bot *Bot) SendPrompt(chatID int64, text, participationID string) (int, error) {
	menu := &telebot.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data(btnAccept.Text, btnAccept.Unique, participationID),
		menu.Data(btnReject.Text, btnReject.Unique, participationID),
	))

	msg, err := bot.B.Send(&telebot.User{ID: chatID}, text, menu)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// EditMessage replaces the text of a sent message. The inline keyboard is
// dropped.
func (bot *Bot) EditMessage(chatID int64, messageID int, text string) error {
	stored := telebot.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	_, err := bot.B.Edit(stored, text)
	return err
}
