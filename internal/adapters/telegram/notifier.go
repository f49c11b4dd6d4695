package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"liveSignalBot/internal/ports"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the subset of *tgbot.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
}

// DefaultSendTimeout bounds one message delivery, including the HTTP round trip.
const DefaultSendTimeout = 10 * time.Second

// Notifier forwards selected events to a Telegram chat. It implements ports.EventSink.
type Notifier struct {
	bot     Sender
	chatID  int64
	types   map[ports.EventType]bool
	timeout time.Duration
}

// DefaultTypes are the events worth a phone notification.
var DefaultTypes = []ports.EventType{
	ports.EventTradeOpened,
	ports.EventTradeClosed,
	ports.EventExecutionFailed,
	ports.EventConnection,
	ports.EventFatalError,
}

// NewNotifier creates a notifier from a bot token.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required: %w", ports.ErrConfigurationError)
	}
	b, err := tgbot.NewBotAPIWithClient(token, tgbot.APIEndpoint, &http.Client{Timeout: DefaultSendTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w: %w", ports.ErrConfigurationError, err)
	}
	return NewNotifierWithSender(b, chatID, DefaultTypes...), nil
}

// NewNotifierWithSender wires an existing sender. With no types, DefaultTypes apply.
func NewNotifierWithSender(bot Sender, chatID int64, types ...ports.EventType) *Notifier {
	if len(types) == 0 {
		types = DefaultTypes
	}
	allowed := make(map[ports.EventType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return &Notifier{bot: bot, chatID: chatID, types: allowed, timeout: DefaultSendTimeout}
}

// Emit sends ev when its type is selected. It waits at most the send timeout or until ctx
// ends; a send still in flight then finishes in the background.
func (n *Notifier) Emit(ctx context.Context, ev ports.Event) error {
	if n == nil || n.bot == nil || n.chatID == 0 || !n.types[ev.Type] {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	msg := tgbot.NewMessage(n.chatID, Format(ev))
	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send failed for %s: %w", ev.Type, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send abandoned for %s: %w", ev.Type, ctx.Err())
	}
}

// Close is a no-op; the bot API holds no resources.
func (n *Notifier) Close() error { return nil }

var icons = map[ports.EventType]string{
	ports.EventTradeOpened:     "🟢",
	ports.EventTradeClosed:     "🏁",
	ports.EventExecutionFailed: "⚠️",
	ports.EventConnection:      "🔌",
	ports.EventFatalError:      "⛔️",
}

// Format renders an event as a short plain-text message.
func Format(ev ports.Event) string {
	var b strings.Builder
	if icon, ok := icons[ev.Type]; ok {
		b.WriteString(icon)
		b.WriteString(" ")
	}
	b.WriteString(string(ev.Type))
	if ev.Configuration != "" {
		fmt.Fprintf(&b, " %s", ev.Configuration)
	}
	if ev.Symbol != "" {
		fmt.Fprintf(&b, " [%s]", ev.Symbol)
	}

	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, ev.Fields[k])
	}
	return b.String()
}
