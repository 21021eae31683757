package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/gatekeep/internal/assessment"
)

func dialProctor(t *testing.T, baseURL, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/sessions/" + id + "/proctor"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) ProctorMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg ProctorMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestProctorStreamTerminatesOnCritical(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ts, engine := newTestServer(t)
	id := startSession(t, ts.URL)

	conn := dialProctor(t, ts.URL, id)
	defer conn.Close()

	assert.Equal(t, "connected", readMessage(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"kind": "camera_off"}))
	msg = readMessage(t, conn)
	require.Equal(t, "outcome", msg.Type)
	require.NotNil(t, msg.Outcome)
	assert.Equal(t, 1, msg.Outcome.Violations)
	assert.False(t, msg.Outcome.Terminated)

	require.NoError(t, conn.WriteJSON(map[string]any{"kind": "multiple_faces"}))
	msg = readMessage(t, conn)
	require.Equal(t, "outcome", msg.Type)
	assert.True(t, msg.Outcome.Terminated)
	assert.True(t, msg.Outcome.Critical)

	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)

	sess, err := engine.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, assessment.StageTerminated, sess.CurrentStage)

	conn.Close()
	ts.Close()
}

func TestProctorStreamRejectsFinishedSession(t *testing.T) {
	ts, _ := newTestServer(t)
	id := startSession(t, ts.URL)
	_, env := do(t, http.MethodPost, ts.URL+"/api/v1/sessions/"+id+"/abort", map[string]string{"reason": "done"})
	require.True(t, env.Success)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/sessions/" + id + "/proctor"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}
