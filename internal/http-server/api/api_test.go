package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"giftbot/entity"
	"giftbot/internal/admin"
	"giftbot/internal/listener"
	"giftbot/lib/api/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	healthy  bool
	list     []admin.CodeSummary
	removed  []string
	created  *entity.GiftCodeDraft
	reloaded int
}

func (f *fakeHandler) AuthenticateByToken(token string) (*entity.Operator, error) {
	if token != "good" {
		return nil, fmt.Errorf("operator not found")
	}
	return &entity.Operator{Name: "ops", Token: token}, nil
}

func (f *fakeHandler) ListCodes(context.Context) ([]admin.CodeSummary, error) {
	return f.list, nil
}

func (f *fakeHandler) CreateCode(_ context.Context, draft *entity.GiftCodeDraft) (*entity.GiftCode, error) {
	f.created = draft
	return &entity.GiftCode{Key: "ABCDEFGH12345678", Title: draft.Title, Amount: draft.Amount}, nil
}

func (f *fakeHandler) RemoveCode(_ context.Context, key string) error {
	if key == "MISSINGMISSING11" {
		return fmt.Errorf("deleting gift code: %w", entity.ErrCodeNotFound)
	}
	f.removed = append(f.removed, key)
	return nil
}

func (f *fakeHandler) PurgeCodes(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeHandler) AuditCode(_ context.Context, key string) (*admin.AuditReport, error) {
	if key == "bad" {
		return nil, entity.ErrInvalidCodeKey
	}
	return &admin.AuditReport{Key: key, Issued: 5, Expected: 5}, nil
}

func (f *fakeHandler) ReloadCodes(context.Context) (int, error) {
	f.reloaded++
	return 3, nil
}

func (f *fakeHandler) ListenerStatuses() []listener.Status {
	return []listener.Status{{ChannelID: -100, Up: f.healthy}}
}

func (f *fakeHandler) ListenersHealthy() bool {
	return f.healthy
}

func newServer(t *testing.T, h *fakeHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Router(slog.New(slog.NewTextHandler(io.Discard, nil)), h))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, body string) (*http.Response, response.Response) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed response.Response
	if strings.Contains(resp.Header.Get("Content-Type"), "json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	}
	return resp, parsed
}

func TestHealth(t *testing.T) {
	srv := newServer(t, &fakeHandler{healthy: true})

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}

func TestHealthListeners(t *testing.T) {
	h := &fakeHandler{healthy: true}
	srv := newServer(t, h)

	resp, _ := do(t, http.MethodGet, srv.URL+"/health/listeners", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.healthy = false
	resp, body := do(t, http.MethodGet, srv.URL+"/health/listeners", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.False(t, body.Success)
	assert.NotNil(t, body.Data)
}

func TestMetrics(t *testing.T) {
	srv := newServer(t, &fakeHandler{})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCodes_RequireToken(t *testing.T) {
	srv := newServer(t, &fakeHandler{})

	resp, _ := do(t, http.MethodGet, srv.URL+"/v1/codes", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/codes", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCodes_List(t *testing.T) {
	h := &fakeHandler{list: []admin.CodeSummary{{Key: "ABCDEFGH12345678", Amount: 2, Redeemed: 3}}}
	srv := newServer(t, h)

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/codes", "good", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ops", resp.Header.Get("X-Operator"))
	list, ok := body.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestCodes_Create(t *testing.T) {
	h := &fakeHandler{}
	srv := newServer(t, h)

	resp, _ := do(t, http.MethodPost, srv.URL+"/v1/codes", "good",
		`{"title":"T","subtitle":"S","amount":3,"duration":2,"rewards":{"xpReward":10}}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, h.created)
	assert.Equal(t, 3, h.created.Amount)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/codes", "good", `{"title":"T"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCodes_RemoveAuditReload(t *testing.T) {
	h := &fakeHandler{}
	srv := newServer(t, h)

	resp, _ := do(t, http.MethodDelete, srv.URL+"/v1/codes/ABCDEFGH12345678", "good", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"ABCDEFGH12345678"}, h.removed)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/v1/codes/MISSINGMISSING11", "good", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/codes/bad/audit", "good", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/codes/reload", "good", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, h.reloaded)
}
