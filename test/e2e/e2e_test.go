// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonhttp "asset-lookup-bot/internal/common/http"
	"asset-lookup-bot/internal/common/logger"
	"asset-lookup-bot/internal/common/observability"
	"asset-lookup-bot/internal/lookup/conversation"
	"asset-lookup-bot/internal/lookup/dataset"
	"asset-lookup-bot/internal/lookup/directory"
	"asset-lookup-bot/internal/lookup/query"
	"asset-lookup-bot/internal/lookup/scope"
	"asset-lookup-bot/internal/lookup/session"
	"asset-lookup-bot/internal/sources/cache"
	"asset-lookup-bot/internal/sources/sheet"
	"asset-lookup-bot/internal/transport/telegram"
)

// ==========================
// Fake Upstreams
// ==========================

const permissionsCSV = "\ufeffID,Филиал,РЭС,ФИО\n" +
	"42,All,All,Иванов И.И.\n" +
	"7,BranchY,North,Сидоров С.С.\n"

var branchCSV = map[string]string{
	"/x.csv": "Наименование ТП,РЭС,Опора\nТП-AB1,East,1\nТП-AB10,East,2\n",
	"/y.csv": "Наименование ТП,РЭС,Опора\nТП-TP9,South,9\nТП-TP1,North,1\n",
}

// sheetServer serves the permission and branch CSVs; flipping down makes the
// permission sheet return 503.
type sheetServer struct {
	*httptest.Server
	down       atomic.Bool
	branchHits atomic.Int32
}

func newSheetServer(t *testing.T) *sheetServer {
	s := &sheetServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/zones.csv" {
			if s.down.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(permissionsCSV))
			return
		}
		body, ok := branchCSV[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.branchHits.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(s.Close)
	return s
}

type sentMessage struct {
	ChatID      int64  `json:"chat_id"`
	Text        string `json:"text"`
	ReplyMarkup *struct {
		Keyboard [][]struct {
			Text string `json:"text"`
		} `json:"keyboard"`
	} `json:"reply_markup"`
}

func (m sentMessage) options() []string {
	if m.ReplyMarkup == nil {
		return nil
	}
	var out []string
	for _, row := range m.ReplyMarkup.Keyboard {
		for _, b := range row {
			out = append(out, b.Text)
		}
	}
	return out
}

// botAPI records sendMessage calls.
type botAPI struct {
	*httptest.Server
	mu   sync.Mutex
	sent []sentMessage
}

func newBotAPI(t *testing.T) *botAPI {
	b := &botAPI{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m sentMessage
		_ = json.NewDecoder(r.Body).Decode(&m)
		b.mu.Lock()
		b.sent = append(b.sent, m)
		b.mu.Unlock()
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *botAPI) last(t *testing.T) sentMessage {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.sent)
	return b.sent[len(b.sent)-1]
}

// ==========================
// Service Wiring
// ==========================

type service struct {
	webhook  http.Handler
	sheets   *sheetServer
	bot      *botAPI
	sessions *session.Store
	updateID int64
}

func newService(t *testing.T) *service {
	t.Helper()
	log := logger.NewTestLogger(t)
	sheets := newSheetServer(t)
	bot := newBotAPI(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	httpClient := commonhttp.NewClient(2 * time.Second)
	fetcher := sheet.NewFetcher(httpClient, 0, log)

	dir := directory.New(&directory.Config{
		Unrestricted: "All",
		Columns:      directory.Columns{Operator: "ID", Branch: "Филиал", Region: "РЭС", Name: "ФИО"},
	}, sheet.NewPermissionSource(fetcher, sheets.URL+"/zones.csv"), log)

	sheetDatasets := sheet.NewDatasetSource(fetcher)
	sheetDatasets.Add("BranchX", sheets.URL+"/x.csv")
	sheetDatasets.Add("BranchY", sheets.URL+"/y.csv")
	cached := cache.New(rdb, sheetDatasets, time.Minute, log)

	provider := dataset.NewProvider(dataset.Columns{Asset: "Наименование ТП", Region: "РЭС"}, log)
	provider.Register("BranchX", cached)
	provider.Register("BranchY", cached)

	sessions := session.NewStore()
	controller := conversation.NewController(conversation.DefaultConfig(), &conversation.Dependencies{
		Directory:     dir,
		Datasets:      provider,
		Resolver:      scope.NewResolver("All"),
		Engine:        query.NewEngine("ТП-"),
		Sessions:      sessions,
		Observability: observability.NewNoop(),
		Logger:        log,
	})

	server, err := telegram.NewServer("/webhook", controller, telegram.NewClient(bot.URL, "test-token", httpClient), log)
	require.NoError(t, err)

	return &service{webhook: server.Router(), sheets: sheets, bot: bot, sessions: sessions}
}

func (s *service) send(t *testing.T, operatorID int64, text string) sentMessage {
	t.Helper()
	s.updateID++
	body := fmt.Sprintf(`{"update_id": %d, "message": {"message_id": %d, "text": %q, "chat": {"id": %d}, "from": {"id": %d}}}`,
		s.updateID, s.updateID, text, operatorID, operatorID)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body)).WithContext(context.Background())
	rec := httptest.NewRecorder()
	s.webhook.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return s.bot.last(t)
}

// ==========================
// Scenarios
// ==========================

func TestE2E_GlobalOperatorAmbiguity(t *testing.T) {
	svc := newService(t)

	msg := svc.send(t, 42, "Выбор филиала")
	assert.Contains(t, msg.Text, "Иванов И.И.")
	assert.Equal(t, []string{"BranchX", "BranchY"}, msg.options())

	msg = svc.send(t, 42, "BranchX")
	assert.Contains(t, msg.Text, "BranchX")

	msg = svc.send(t, 42, "AB1")
	assert.Equal(t, []string{"ТП-AB1", "ТП-AB10", "Назад"}, msg.options())

	msg = svc.send(t, 42, "ТП-AB1")
	assert.Contains(t, msg.Text, "ТП-AB1 находится в East РЭС")
	assert.Contains(t, msg.Text, "Опора: 1")

	msg = svc.send(t, 42, "AB10")
	assert.Contains(t, msg.Text, "ТП-AB10 находится в East РЭС")
	assert.Equal(t, int32(1), svc.sheets.branchHits.Load(), "repeat query served from redis")
}

func TestE2E_RegionOperatorScopeViolation(t *testing.T) {
	svc := newService(t)

	svc.send(t, 7, "/start")
	msg := svc.send(t, 7, "TP9")
	assert.Contains(t, msg.Text, "вне Вашей зоны доступа")

	msg = svc.send(t, 7, "TP1")
	assert.Contains(t, msg.Text, "ТП-TP1 находится в North РЭС")
}

func TestE2E_PermissionSourceOutageKeepsSession(t *testing.T) {
	svc := newService(t)

	svc.send(t, 42, "/start")
	svc.send(t, 42, "BranchY")
	before := svc.sessions.Get(42)

	svc.sheets.down.Store(true)
	msg := svc.send(t, 42, "TP9")
	assert.Contains(t, msg.Text, "Не удалось загрузить данные")
	assert.Equal(t, before, svc.sessions.Get(42))

	svc.sheets.down.Store(false)
	msg = svc.send(t, 42, "TP9")
	assert.Contains(t, msg.Text, "ТП-TP9 находится в South РЭС")
}

func TestE2E_UnknownOperator(t *testing.T) {
	svc := newService(t)

	msg := svc.send(t, 555, "/start")

	assert.Contains(t, msg.Text, "555")
	assert.False(t, svc.sessions.Exists(555))
}
