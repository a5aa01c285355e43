package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Notifier delivers alert text to the bot administrators.
// Text is MarkdownV2; Escape must be applied to free-form parts.
type Notifier interface {
	NotifyAdmins(msg string)
}

// TelegramHandler is a slog.Handler that forwards records at or above minLevel
// to the bot admins, after passing them to the wrapped handler.
type TelegramHandler struct {
	handler  slog.Handler
	notifier Notifier
	minLevel slog.Level
	mu       *sync.Mutex
	attrs    []slog.Attr
	group    string
}

func NewTelegramHandler(handler slog.Handler, notifier Notifier, minLevel slog.Level) *TelegramHandler {
	return &TelegramHandler{
		handler:  handler,
		notifier: notifier,
		minLevel: minLevel,
		mu:       &sync.Mutex{},
		attrs:    make([]slog.Attr, 0),
	}
}

// Enabled defers to the wrapped handler; minLevel only gates forwarding.
func (h *TelegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TelegramHandler) Handle(ctx context.Context, record slog.Record) error {
	err := h.handler.Handle(ctx, record)
	if err != nil {
		return err
	}
	if record.Level < h.minLevel || h.notifier == nil {
		return nil
	}

	msg := h.format(record)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.notifier.NotifyAdmins(msg)
	return nil
}

func (h *TelegramHandler) format(record slog.Record) string {
	var b strings.Builder
	name := record.Message
	if h.group != "" {
		name = h.group + "." + name
	}
	b.WriteString(fmt.Sprintf("*%s* `%s`", record.Level.String(), Escape(name)))

	line := func(attr slog.Attr) {
		if attr.Key == "error" {
			b.WriteString(fmt.Sprintf("\n%s: ```error %s ```", Escape(attr.Key), Escape(attr.Value.String())))
			return
		}
		b.WriteString(Escape(fmt.Sprintf("\n%s: %v", attr.Key, attr.Value)))
	}
	for _, attr := range h.attrs {
		line(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		line(attr)
		return true
	})
	return b.String()
}

func (h *TelegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &TelegramHandler{
		handler:  h.handler.WithAttrs(attrs),
		notifier: h.notifier,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    newAttrs,
		group:    h.group,
	}
}

func (h *TelegramHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &TelegramHandler{
		handler:  h.handler.WithGroup(name),
		notifier: h.notifier,
		minLevel: h.minLevel,
		mu:       h.mu,
		attrs:    h.attrs,
		group:    group,
	}
}

// Escape escapes Telegram MarkdownV2 reserved characters.
func Escape(input string) string {
	const reserved = "\\_*[]()~`>#+-=|{}.!"
	var b strings.Builder
	b.Grow(len(input))
	for _, char := range input {
		if strings.ContainsRune(reserved, char) {
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
