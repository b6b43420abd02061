package handlers

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aura-farm-transformer/internal/session"
	"aura-farm-transformer/internal/styles"
)

const styleCallbackPrefix = "st"

func (h *Handler) sendStylePicker(chatID int64, userID int64) error {
	state := h.sessions.Get(sessionKey(userID))
	_, err := h.tg.SendTextWithKeyboard(chatID, pickerText(state.Style), pickerKeyboard(userID, state.Style))
	return err
}

// Callback data: "st:<ownerID>:<style key>", following the owner-guard
// convention so a picker in a group chat only reacts to its requester.
func (h *Handler) handleCallback(q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil {
		return nil
	}

	parts := strings.Split(strings.TrimSpace(q.Data), ":")
	if len(parts) != 3 || parts[0] != styleCallbackPrefix {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		return h.tg.AnswerCallback(q.ID, "This menu is not yours.")
	}

	style, ok := styles.Parse(parts[2])
	if !ok {
		return h.tg.AnswerCallback(q.ID, "Unknown style.")
	}

	h.sessions.Update(sessionKey(ownerID), func(st *session.State) { st.Style = style })

	if err := h.tg.EditTextWithKeyboard(q.Message.Chat.ID, q.Message.MessageID, pickerText(style), pickerKeyboard(ownerID, style)); err != nil {
		h.logger.Warn("picker edit failed", "err", err)
	}
	return h.tg.AnswerCallback(q.ID, fmt.Sprintf("%s selected", style))
}

func pickerText(current styles.Style) string {
	return "Choose your transformation style:\n\nCurrent: " + string(current)
}

func pickerKeyboard(ownerID int64, current styles.Style) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(styles.All()))
	for _, s := range styles.All() {
		label := string(s)
		if s == current {
			label = "✅ " + label
		}
		data := fmt.Sprintf("%s:%d:%s", styleCallbackPrefix, ownerID, s.Key())
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, data),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
