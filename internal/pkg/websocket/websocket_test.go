package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/repositories"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/services"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/middleware"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/apperrors"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/autosave"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/validation"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = validation.RegisterWithGin()
}

type wsFixture struct {
	hub     *Hub
	svc     services.SnapshotService
	server  *httptest.Server
	ownerID int64
}

func newWSFixture(t *testing.T, policy autosave.Policy) *wsFixture {
	t.Helper()
	database := testutil.SQLite(t)
	owner := testutil.CreateUser(t, database, "ws@uol.edu.pk")

	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	svc := services.NewSnapshotService(repositories.NewSnapshotRepository(database), nil, hub, zerolog.Nop())
	handler := NewHandler(hub, svc, policy, []string{"*"}, zerolog.Nop())

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, owner.ID)
		c.Next()
	}, handler.HandleConnection)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &wsFixture{hub: hub, svc: svc, server: server, ownerID: owner.ID}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return f.hub.ClientsCount(f.ownerID) > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg OutboundMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil collects messages until every wanted type was seen
func readUntil(t *testing.T, conn *websocket.Conn, types ...string) map[string]OutboundMessage {
	t.Helper()
	seen := map[string]OutboundMessage{}
	for len(seen) < len(types) {
		msg := readMessage(t, conn)
		for _, want := range types {
			if msg.Type == want {
				seen[want] = msg
			}
		}
	}
	return seen
}

const draftJSON = `{"type":"draft","courses":[{"name":"Calculus","credits":3,"grade":"A"},{"name":"Physics","credits":4,"grade":"B"}]}`

func TestDraftReturnsResultAndAutoSaves(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: 20 * time.Millisecond, MaxWait: time.Second, SaveTimeout: time.Second})
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(draftJSON)))

	result := readMessage(t, conn)
	require.Equal(t, TypeResult, result.Type)
	require.NotNil(t, result.Result)
	assert.InDelta(t, 7.0, result.Result.TotalCredits, 1e-9)
	assert.InDelta(t, 24.0, result.Result.TotalGradePoints, 1e-9)
	require.NotNil(t, result.Result.CGPA)
	assert.InDelta(t, 24.0/7.0, *result.Result.CGPA, 1e-9)

	msgs := readUntil(t, conn, TypeAutoSave, TypeEvent)
	require.NotNil(t, msgs[TypeAutoSave].AutoSave)
	assert.True(t, msgs[TypeAutoSave].AutoSave.Saved)
	require.NotNil(t, msgs[TypeAutoSave].AutoSave.Calculation)
	assert.Equal(t, models.AutoSaveName, msgs[TypeAutoSave].AutoSave.Calculation.CalculationName)
	require.NotNil(t, msgs[TypeEvent].Event)
	assert.Equal(t, models.SnapshotAutoSaved, msgs[TypeEvent].Event.Type)
	assert.Equal(t, f.ownerID, msgs[TypeEvent].Event.OwnerID)
}

func TestFlushSavesImmediately(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, MaxWait: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(draftJSON)))
	assert.Equal(t, TypeResult, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"flush"}`)))
	msgs := readUntil(t, conn, TypeAutoSave)
	assert.True(t, msgs[TypeAutoSave].AutoSave.Saved)
}

func TestInvalidMessagesReplyWithError(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	for _, raw := range []string{
		`not json`,
		`{"type":"shout"}`,
		`{"type":"draft","courses":[{"credits":3,"grade":"Z"}]}`,
		`{"type":"draft","courses":[{"credits":-1,"grade":"A"}]}`,
	} {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))
		msg := readMessage(t, conn)
		assert.Equal(t, TypeError, msg.Type, raw)
		assert.NotNil(t, msg.Error, raw)
	}
}

func TestDisconnectFlushesPendingDraft(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, MaxWait: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(draftJSON)))
	assert.Equal(t, TypeResult, readMessage(t, conn).Type)
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		view, err := f.svc.GetAutoSave(context.Background(), f.ownerID)
		return err == nil && view != nil && view.Snapshot.TotalCredits == 7
	}, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return f.hub.ClientsCount(f.ownerID) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClearedDraftIsNotSaved(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, MaxWait: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(draftJSON)))
	assert.Equal(t, TypeResult, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"draft","courses":[]}`)))
	assert.Equal(t, TypeResult, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"flush"}`)))
	// messages are handled in order, so this reply means the flush is done
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, TypeError, readMessage(t, conn).Type)

	_, err := f.svc.GetAutoSave(context.Background(), f.ownerID)
	assert.ErrorIs(t, err, apperrors.ErrSnapshotNotFound)
}

func TestEventsReachOnlyTheOwner(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	f.hub.Publish(context.Background(), models.SnapshotEvent{Type: models.SnapshotDeleted, OwnerID: f.ownerID + 1, SnapshotID: "other"})
	f.hub.Publish(context.Background(), models.SnapshotEvent{Type: models.SnapshotRenamed, OwnerID: f.ownerID, SnapshotID: "mine", Name: "Fall"})

	msg := readMessage(t, conn)
	require.Equal(t, TypeEvent, msg.Type)
	assert.Equal(t, "mine", msg.Event.SnapshotID)
	assert.Equal(t, "Fall", msg.Event.Name)
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	f.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestRegisterAfterCloseIsRejected(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.Close()
	assert.False(t, hub.Register(&Client{}))

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	assert.NoError(t, hub.Wait(waitCtx))
}

func TestRegisterWhileStoppingBalancesSessions(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	// Run never started, so only done can unblock Register
	results := make(chan bool, 1)
	go func() { results <- hub.Register(&Client{}) }()

	time.Sleep(20 * time.Millisecond)
	hub.Close()
	assert.False(t, <-results)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	assert.NoError(t, hub.Wait(waitCtx))
}

func TestHandlerRequiresUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	handler := NewHandler(hub, nil, autosave.Policy{}, nil, zerolog.Nop())

	router := gin.New()
	router.GET("/ws", handler.HandleConnection)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	open := originChecker([]string{"*"})
	assert.True(t, open(req("https://evil.example")))

	strict := originChecker([]string{"https://cgpa.uol.edu.pk/"})
	assert.True(t, strict(req("https://cgpa.uol.edu.pk")))
	assert.True(t, strict(req("")))
	assert.False(t, strict(req("https://evil.example")))
}

func TestRedisBusDeliversToHub(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis integration tests")
	}
	f := newWSFixture(t, autosave.Policy{Debounce: time.Hour, SaveTimeout: time.Second})
	conn := f.dial(t)

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, "cgpa-test-events", f.hub, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = bus.Run(ctx) }()

	// the subscription may not be live yet; publish until it arrives
	event := models.SnapshotEvent{Type: models.SnapshotCreated, OwnerID: f.ownerID, SnapshotID: "via-redis"}
	received := make(chan OutboundMessage, 1)
	go func() {
		var msg OutboundMessage
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case msg := <-received:
			assert.Equal(t, "via-redis", msg.Event.SnapshotID)
			return
		case <-tick.C:
			bus.Publish(ctx, event)
		case <-deadline:
			t.Fatal("event not delivered through redis")
		}
	}
}

func TestOutboundMessageShape(t *testing.T) {
	data, err := json.Marshal(OutboundMessage{Type: TypeEvent, Event: &models.SnapshotEvent{Type: models.SnapshotCreated, SnapshotID: "x"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"event"`)
	assert.NotContains(t, string(data), `"result"`)
	assert.NotContains(t, string(data), `"error"`)
}
