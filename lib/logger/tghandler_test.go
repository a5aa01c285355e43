package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) NotifyAdmins(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func TestTelegramHandler_ForwardsAboveLevel(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	rec := &recorder{}
	log := slog.New(NewTelegramHandler(base, rec, slog.LevelError)).With(slog.String("mod", "listener"))

	log.Info("waiting for clicks")
	log.Error("source unavailable", slog.Int64("channel_id", -100), slog.String("error", errors.New("boom").Error()))

	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.msgs[0], "*ERROR*")
	assert.Contains(t, rec.msgs[0], "source unavailable")
	assert.Contains(t, rec.msgs[0], "channel\\_id: \\-100")
	assert.Contains(t, rec.msgs[0], "mod: listener")
	assert.Contains(t, buf.String(), "waiting for clicks")
	assert.Contains(t, buf.String(), "source unavailable")
}

func TestTelegramHandler_NilNotifier(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewTelegramHandler(slog.NewTextHandler(&buf, nil), nil, slog.LevelWarn))
	log.Error("still logged")
	assert.Contains(t, buf.String(), "still logged")
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a\\.b\\-c\\_d", Escape("a.b-c_d"))
	assert.Equal(t, "plain", Escape("plain"))
}
