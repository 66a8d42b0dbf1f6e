package live

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilab/lims/internal/platform/auth"
)

var (
	doctor     = auth.Identity{UserID: "u-doc", Role: auth.RoleDoctor}
	technician = auth.Identity{UserID: "u-tech", Role: auth.RoleTechnician}
)

func TestAllowedTopics(t *testing.T) {
	tests := []struct {
		name string
		id   auth.Identity
		want []string
	}{
		{"admin", auth.Identity{Role: auth.RoleAdmin}, []string{TopicPendingApprovals, TopicReviewed, TopicLab}},
		{"doctor", doctor, []string{TopicPendingApprovals}},
		{"technician", technician, []string{TopicReviewed, TopicLab}},
		{"staff", auth.Identity{Role: auth.RoleStaff}, []string{TopicReviewed, TopicLab}},
		{"linked patient", auth.Identity{Role: auth.RolePatient, PatientRef: "p-1"}, []string{"patient.p-1"}},
		{"unlinked patient", auth.Identity{Role: auth.RolePatient}, nil},
		{"unknown role", auth.Identity{Role: "Guest"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedTopics(tt.id))
		})
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	client := NewClient("c-1", technician, 4)
	hub.Register(client)

	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.TopicCount(TopicLab))

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.TopicCount(TopicLab))
	_, open := <-client.Send
	assert.False(t, open, "send channel should be closed")

	// A second unregister is a no-op.
	hub.Unregister(client)
}

func TestHub_PublishReachesTopicOnly(t *testing.T) {
	hub := NewHub()
	doc := NewClient("doc", doctor, 4)
	tech := NewClient("tech", technician, 4)
	hub.Register(doc)
	hub.Register(tech)

	require.NoError(t, hub.Publish(context.Background(), Event{
		Type: "status_change", Topic: TopicPendingApprovals, Entity: "test_result", EntityID: "r-1",
		From: "Draft", To: "Pending Approval", Timestamp: time.Now(),
	}))

	select {
	case raw := <-doc.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, "r-1", ev.EntityID)
		assert.Equal(t, "Pending Approval", ev.To)
	default:
		t.Fatal("doctor should have received the event")
	}
	assert.Empty(t, tech.Send)
}

func TestHub_PublishSkipsFullBuffer(t *testing.T) {
	hub := NewHub()
	client := NewClient("slow", doctor, 1)
	hub.Register(client)

	ev := Event{Topic: TopicPendingApprovals}
	require.NoError(t, hub.Publish(context.Background(), ev))
	require.NoError(t, hub.Publish(context.Background(), ev))
	assert.Len(t, client.Send, 1)
}

func TestHub_SubscribeOnlyAllowedTopics(t *testing.T) {
	hub := NewHub()
	client := NewClient("c", technician, 4)
	hub.Register(client)

	hub.ProcessMessage(client, ClientMessage{Action: "unsubscribe", Topics: []string{TopicLab}})
	assert.Equal(t, []string{TopicReviewed}, client.Topics)
	assert.Equal(t, 0, hub.TopicCount(TopicLab))

	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicLab, TopicPendingApprovals, "patient.p-9", TopicLab}})
	assert.Equal(t, []string{TopicReviewed, TopicLab}, client.Topics)
	assert.Equal(t, 1, hub.TopicCount(TopicLab))
	assert.Equal(t, 0, hub.TopicCount(TopicPendingApprovals))
	assert.Equal(t, 0, hub.TopicCount("patient.p-9"))

	require.Len(t, client.Send, 1)
	var notice Notice
	require.NoError(t, json.Unmarshal(<-client.Send, &notice))
	assert.Equal(t, Notice{Type: "error", Action: "subscribe", Topics: []string{TopicPendingApprovals, "patient.p-9"},
		Message: "topic not permitted"}, notice)
}

func TestHub_AllowedSubscribeSendsNothing(t *testing.T) {
	hub := NewHub()
	client := NewClient("c", technician, 4)
	hub.Register(client)

	assert.Empty(t, hub.Subscribe(client, []string{TopicLab}))
	hub.ProcessMessage(client, ClientMessage{Action: "subscribe", Topics: []string{TopicReviewed}})
	assert.Empty(t, client.Send)

	hub.ProcessMessage(client, ClientMessage{Action: "shout"})
	require.Len(t, client.Send, 1)
	assert.Contains(t, string(<-client.Send), `"unknown action"`)
}

func TestHub_ConcurrentPublish(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := NewClient("c", doctor, 8)
			hub.Register(c)
			hub.Unregister(c)
		}()
		go func() {
			defer wg.Done()
			_ = hub.Publish(context.Background(), Event{Topic: TopicPendingApprovals})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}

func withIdentity(id auth.Identity) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(c.Request().Context(), id)))
			return next(c)
		}
	}
}

func TestHandler_ConnectRequiresIdentity(t *testing.T) {
	h := NewHandler(NewHub(), nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	err := h.Connect(e.NewContext(req, httptest.NewRecorder()))

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, he.Code)
}

func TestHandler_UnlinkedPatientForbidden(t *testing.T) {
	h := NewHandler(NewHub(), nil)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u-p", Role: auth.RolePatient}))
	err := h.Connect(e.NewContext(req, httptest.NewRecorder()))

	he, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, he.Code)
}

func TestHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := NewHub()
	e := echo.New()
	g := e.Group("", withIdentity(doctor))
	NewHandler(hub, []string{"http://lab.example"}).RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/live"

	conn, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.TopicCount(TopicPendingApprovals) == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), Event{
		Type: "status_change", Topic: TopicPendingApprovals, Entity: "test_result", EntityID: "r-42",
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "r-42", got.EntityID)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", Topics: []string{TopicLab}}))
	var notice Notice
	require.NoError(t, conn.ReadJSON(&notice))
	assert.Equal(t, "error", notice.Type)
	assert.Equal(t, []string{TopicLab}, notice.Topics)
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	e := echo.New()
	g := e.Group("", withIdentity(doctor))
	NewHandler(NewHub(), []string{"http://lab.example"}).RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/live"

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
