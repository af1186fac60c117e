// File: internal/server/server_test.go
package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/config"
)

type classifierFunc func(ctx context.Context, text string) schemas.IntentResult

func (f classifierFunc) Classify(ctx context.Context, text string) schemas.IntentResult {
	return f(ctx, text)
}

type executorFunc func(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome

func (f executorFunc) Execute(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome {
	return f(ctx, intent, publisher, solver)
}

func testConfig() config.Config {
	return config.Config{
		Checkpoint: config.CheckpointConfig{Timeout: 2 * time.Second},
	}
}

// dial spins up the orchestrator and opens one websocket session to it.
func dial(t *testing.T, classifier classifierFunc, executor executorFunc) *websocket.Conn {
	t.Helper()
	srv := New(testConfig(), classifier, executor, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads one frame and decodes the type-tagged envelope.
func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg any) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func registerClassifier() classifierFunc {
	return func(ctx context.Context, text string) schemas.IntentResult {
		return schemas.IntentResult{
			Intent: schemas.IntentRegister,
			Data: schemas.IntentFields{
				Name: "John Doe", DOB: "1998-05-10", Gender: "Male",
				Phone: "5551234", Address: "1 Main St",
			},
		}
	}
}

// checkpointExecutor narrates one step, suspends on the solver, and
// succeeds only for the expected answer.
func checkpointExecutor(expectedCode string) executorFunc {
	return func(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome {
		_ = publisher.Publish(schemas.NewAgentLog("Submitting the registration..."))
		code, err := solver.Solve(ctx, []byte("challenge-png"))
		if err != nil {
			return schemas.Failure(err.Error())
		}
		if code != expectedCode {
			return schemas.Failure("wrong captcha answer")
		}
		return schemas.Outcome{Success: true, EID: "123456789012"}
	}
}

func TestEndToEndRegistrationScenario(t *testing.T) {
	conn := dial(t, registerClassifier(), checkpointExecutor("AB12"))

	// Greeting arrives first.
	greeting := readMessage(t, conn)
	assert.Equal(t, schemas.MsgAgentLog, greeting["type"])

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgUserMessage, Text: "register John Doe, dob May 10 1998, male, phone 5551234, address 1 Main St"})

	// Ordered progress, then exactly one checkpoint.
	progress := readMessage(t, conn)
	assert.Equal(t, schemas.MsgAgentLog, progress["type"])
	assert.Contains(t, progress["message"], "Submitting")

	challenge := readMessage(t, conn)
	require.Equal(t, schemas.MsgCaptchaRequired, challenge["type"])
	assert.Contains(t, challenge["image"], "data:image/png;base64,")

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgCaptchaSolution, Code: "AB12"})

	// Exactly one terminal result.
	result := readMessage(t, conn)
	require.Equal(t, schemas.MsgAgentResult, result["type"])
	outcome := result["result"].(map[string]any)
	assert.Equal(t, true, outcome["success"])
	assert.Equal(t, "123456789012", outcome["eId"])
}

func TestStaleCaptchaSolutionIsNoOp(t *testing.T) {
	conn := dial(t, registerClassifier(), checkpointExecutor("AB12"))
	readMessage(t, conn) // greeting

	// A solution with no pending checkpoint is silently dropped and must
	// not poison the later, legitimate checkpoint.
	send(t, conn, schemas.InboundMessage{Type: schemas.MsgCaptchaSolution, Code: "STALE"})

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgUserMessage, Text: "register me"})
	readMessage(t, conn) // progress line
	challenge := readMessage(t, conn)
	require.Equal(t, schemas.MsgCaptchaRequired, challenge["type"])

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgCaptchaSolution, Code: "AB12"})

	result := readMessage(t, conn)
	require.Equal(t, schemas.MsgAgentResult, result["type"])
	outcome := result["result"].(map[string]any)
	assert.Equal(t, true, outcome["success"])
}

func TestUnknownIntentGetsAIReplyWithoutTask(t *testing.T) {
	executed := false
	classifier := classifierFunc(func(ctx context.Context, text string) schemas.IntentResult {
		return schemas.IntentResult{
			Intent: schemas.IntentUnknown,
			Data:   schemas.IntentFields{MissingInfo: "I can register, download, or update an E-ID."},
		}
	})
	executor := executorFunc(func(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome {
		executed = true
		return schemas.Failure("should not run")
	})

	conn := dial(t, classifier, executor)
	readMessage(t, conn) // greeting

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgUserMessage, Text: "what's the weather"})

	reply := readMessage(t, conn)
	require.Equal(t, schemas.MsgAIReply, reply["type"])
	assert.Contains(t, reply["text"], "register")
	assert.False(t, executed, "no task may start for an unknown intent")
}

func TestMissingFieldsGetGeneratedClarification(t *testing.T) {
	classifier := classifierFunc(func(ctx context.Context, text string) schemas.IntentResult {
		// Oracle claims registration but extracted almost nothing and
		// forgot to set missingInfo.
		return schemas.IntentResult{
			Intent: schemas.IntentRegister,
			Data:   schemas.IntentFields{Name: "John Doe"},
		}
	})
	executor := executorFunc(func(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome {
		t.Error("executor must not run with incomplete fields")
		return schemas.Failure("unreachable")
	})

	conn := dial(t, classifier, executor)
	readMessage(t, conn) // greeting

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgUserMessage, Text: "register me"})

	reply := readMessage(t, conn)
	require.Equal(t, schemas.MsgAIReply, reply["type"])
	assert.Contains(t, reply["text"], "date of birth")
}

func TestSequentialMessagesSerializePerSession(t *testing.T) {
	calls := make(chan string, 2)
	classifier := classifierFunc(func(ctx context.Context, text string) schemas.IntentResult {
		return schemas.IntentResult{
			Intent: schemas.IntentDownload,
			Data:   schemas.IntentFields{EID: "123456789012"},
		}
	})
	executor := executorFunc(func(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome {
		calls <- "run"
		return schemas.Outcome{Success: true, Document: "doc"}
	})

	conn := dial(t, classifier, executor)
	readMessage(t, conn) // greeting

	send(t, conn, schemas.InboundMessage{Type: schemas.MsgUserMessage, Text: "download 123456789012"})
	send(t, conn, schemas.InboundMessage{Type: schemas.MsgUserMessage, Text: "download 123456789012"})

	// Both complete, in order, one terminal result each.
	for i := 0; i < 2; i++ {
		result := readMessage(t, conn)
		require.Equal(t, schemas.MsgAgentResult, result["type"], "message %d", i)
	}
	assert.Len(t, calls, 2)
}

func TestHealthEndpoint(t *testing.T) {
	srv := New(testConfig(), registerClassifier(), checkpointExecutor("x"), zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
