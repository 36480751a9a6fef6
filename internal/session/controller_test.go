package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"finquery-client/internal/api"
	"finquery-client/internal/constant"
	"finquery-client/internal/pkg/logger"
	"finquery-client/internal/selection"
	"finquery-client/internal/transcript"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) logger.ILogger {
	return logger.NewIsolatedLogger(filepath.Join(t.TempDir(), "test.log"))
}

func newTestController(t *testing.T, handler http.Handler, streaming bool) (*Controller, *transcript.Store, *selection.Set) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := testLogger(t)
	client := api.NewClient(server.URL, 10*time.Second, nil, nil, log)
	selectionSet := selection.NewSet(2)
	transcriptStore := transcript.NewStore(nil)
	controller := NewController(client, transcriptStore, selectionSet, log, streaming, 5)
	return controller, transcriptStore, selectionSet
}

func lastMessage(t *testing.T, s *transcript.Store) (content string, sources int) {
	msgs := s.Messages()
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	return last.Content, len(last.Sources)
}

func TestUnscopedQueryCarriesNullScope(t *testing.T) {
	var rawScope json.RawMessage
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rawScope = body["document_names"]

		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\"42\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"done\",\"sources\":[]}\n")
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	require.NoError(t, controller.Submit(context.Background(), "What was my highest expense?"))

	assert.JSONEq(t, "null", string(rawScope), "empty selection must be sent as unscoped, not []")
	content, _ := lastMessage(t, transcriptStore)
	assert.Equal(t, "42", content)
	assert.Equal(t, StateCompleted, controller.State())
}

func TestScopedQueryCarriesSelection(t *testing.T) {
	var scope []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DocumentNames []string `json:"document_names"`
			NResults      int      `json:"n_results"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		scope = body.DocumentNames
		assert.Equal(t, 5, body.NResults)

		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\"ok\"}\n")
		fmt.Fprint(w, "data: {\"type\":\"done\",\"sources\":[]}\n")
	})

	controller, _, selectionSet := newTestController(t, handler, true)
	require.NoError(t, selectionSet.Toggle("a.pdf"))
	require.NoError(t, selectionSet.Toggle("b.pdf"))

	require.NoError(t, controller.Submit(context.Background(), "Compare revenue"))

	assert.Equal(t, []string{"a.pdf", "b.pdf"}, scope)
}

func TestStreamSplitMidFrame(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, "data: {\"type\":\"tok")
		flusher.Flush()
		fmt.Fprint(w, "en\",\"content\":\"Hi\"}\n")
		flusher.Flush()
		fmt.Fprint(w, "data: {\"type\":\"done\",\"sources\":[{\"page\":2}]}\n")
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	require.NoError(t, controller.Submit(context.Background(), "Say hi"))

	msgs := transcriptStore.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[1].Content)
	require.Len(t, msgs[1].Sources, 1)
	assert.Equal(t, 2, msgs[1].Sources[0].Page)
}

func TestTokenConcatenationRoundTrip(t *testing.T) {
	tokens := []string{"The ", "revenue ", "grew ", "12%."}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, tok := range tokens {
			payload, _ := json.Marshal(map[string]string{"type": "token", "content": tok})
			fmt.Fprintf(w, "data: %s\n", payload)
		}
		fmt.Fprint(w, "data: {\"type\":\"done\",\"sources\":[]}\n")
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	require.NoError(t, controller.Submit(context.Background(), "How did revenue develop?"))

	var want string
	for _, tok := range tokens {
		want += tok
	}
	content, _ := lastMessage(t, transcriptStore)
	assert.Equal(t, want, content)
}

func TestEmptyStreamAppliesApology(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	require.NoError(t, controller.Submit(context.Background(), "Anything there?"))

	content, sources := lastMessage(t, transcriptStore)
	assert.Equal(t, constant.AnswerUnavailableFallback, content)
	assert.Zero(t, sources)
	assert.Equal(t, StateCompleted, controller.State())
}

func TestTruncatedStreamKeepsPartialAnswer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\"partial answer\"}\n")
		// Connection closes without a done frame.
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	require.NoError(t, controller.Submit(context.Background(), "Tell me more"))

	content, sources := lastMessage(t, transcriptStore)
	assert.Equal(t, "partial answer", content)
	assert.Zero(t, sources)
	assert.Equal(t, StateCompleted, controller.State())
}

func TestOpenFailureAppliesApology(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	err := controller.Submit(context.Background(), "Will this work?")
	require.Error(t, err)

	msgs := transcriptStore.Messages()
	require.Len(t, msgs, 2, "the question must still get an assistant entry")
	assert.Equal(t, constant.AnswerUnavailableFallback, msgs[1].Content)
	assert.Empty(t, msgs[1].Sources)
	assert.Equal(t, StateFailed, controller.State())
}

func TestSubmitWhileStreamingIsBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"type\":\"token\",\"content\":\"thinking\"}\n")
		flusher.Flush()
		close(entered)
		<-release
		fmt.Fprint(w, "data: {\"type\":\"done\",\"sources\":[]}\n")
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- controller.Submit(context.Background(), "First question")
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("stream never started")
	}

	before := transcriptStore.Len()
	err := controller.Submit(context.Background(), "Second question")
	assert.ErrorIs(t, err, ErrSessionBusy)
	assert.Equal(t, before, transcriptStore.Len(), "rejected submit must not touch the transcript")

	close(release)
	require.NoError(t, <-firstDone)

	// The slot is free again after completion.
	assert.Equal(t, StateCompleted, controller.State())
}

func TestBlockingModeAppliesWholeAnswer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		resp := map[string]interface{}{
			"answer": "Operating expenses were flat.",
			"sources": []map[string]interface{}{
				{"filename": "q3.pdf", "page": 7},
			},
			"question":      "q",
			"searched_docs": []string{"q3.pdf"},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	controller, transcriptStore, _ := newTestController(t, handler, false)

	require.NoError(t, controller.Submit(context.Background(), "What about opex?"))

	msgs := transcriptStore.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Operating expenses were flat.", msgs[1].Content)
	require.Len(t, msgs[1].Sources, 1)
	assert.Equal(t, "q3.pdf", msgs[1].Sources[0].Filename)
	assert.Equal(t, 7, msgs[1].Sources[0].Page)
	assert.Equal(t, StateCompleted, controller.State())
}

func TestQuestionTooShortFailsValidation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the transport")
	})

	controller, transcriptStore, _ := newTestController(t, handler, true)

	err := controller.Submit(context.Background(), "a")
	require.Error(t, err)

	content, _ := lastMessage(t, transcriptStore)
	assert.Equal(t, constant.AnswerUnavailableFallback, content)
	assert.Equal(t, StateFailed, controller.State())
}
