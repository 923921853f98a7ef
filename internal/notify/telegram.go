package notify

import (
	"encoding/json"
	"fmt"

	"cliquesaude/internal/config"
	"cliquesaude/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier pushes booking events to the ops chat. Nil-safe: when no
// bot token is configured the constructor returns nil and every method is a
// no-op.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(cfg config.TelegramConfig, logger *zerolog.Logger) (*TelegramNotifier, error) {
	if cfg.BotToken == "" || len(cfg.ChatIDs) == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	bot.Debug = cfg.Debug

	return &TelegramNotifier{bot: bot, chatIDs: cfg.ChatIDs, logger: logger}, nil
}

// Notify sends a plain text message to every configured chat.
func (n *TelegramNotifier) Notify(text string) error {
	if n == nil || n.bot == nil {
		return nil
	}

	var lastErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send error")
			lastErr = err
		}
	}
	return lastErr
}

// SubscribeTo wires the notifier onto the event bus.
func (n *TelegramNotifier) SubscribeTo(bus *events.EventBus) {
	if n == nil || bus == nil {
		return
	}

	bus.Subscribe(events.EventAppointmentCreated, n.onEvent("Novo agendamento"))
	bus.Subscribe(events.EventAppointmentCancelled, n.onEvent("Agendamento cancelado"))
	bus.Subscribe(events.EventAppointmentDeleted, n.onEvent("Agendamento removido"))
	bus.Subscribe(events.EventCompensationFailed, n.onEvent("FALHA DE COMPENSAÇÃO"))
}

func (n *TelegramNotifier) onEvent(title string) events.EventHandler {
	return func(event *events.Event) error {
		var payload events.AppointmentEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload")
			return err
		}

		text := fmt.Sprintf("%s\nID: %s\nPaciente: %s\nStatus: %s\nTotal: R$ %.2f",
			title, payload.AppointmentID, payload.PatientName, payload.Status,
			float64(payload.TotalCents)/100)
		if payload.Detail != "" {
			text += "\nDetalhe: " + payload.Detail
		}
		return n.Notify(text)
	}
}
