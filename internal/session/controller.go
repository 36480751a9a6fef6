package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"finquery-client/internal/constant"
	"finquery-client/internal/dto"
	"finquery-client/internal/mapper"
	"finquery-client/internal/pkg/logger"
	"finquery-client/internal/selection"
	"finquery-client/internal/stream"
	"finquery-client/internal/transcript"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrSessionBusy is returned by Submit while an exchange is in flight.
// The new question is dropped and the transcript stays untouched.
var ErrSessionBusy = errors.New("a question is already being answered")

// State of the one in-flight exchange.
type State string

const (
	StateIdle      State = "IDLE"
	StateSending   State = "SENDING"
	StateStreaming State = "STREAMING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Querier is the transport surface the controller drives. Both calls
// carry the question, the document scope and the result limit; which
// one is used is a configuration choice, not a per-call decision.
type Querier interface {
	Query(ctx context.Context, request *dto.QueryRequest) (*dto.QueryResponse, error)
	QueryStream(ctx context.Context, request *dto.QueryRequest) (io.ReadCloser, error)
}

// Controller orchestrates one question/answer exchange at a time:
// it snapshots the document scope, opens the transport, feeds response
// bytes through the frame decoder and applies each frame to the
// transcript's active assistant entry.
type Controller struct {
	api        Querier
	transcript *transcript.Store
	selection  *selection.Set
	mapper     *mapper.ChatMapper
	logger     logger.ILogger

	streaming   bool
	resultLimit int

	mu    sync.Mutex
	state State
}

func NewController(
	api Querier,
	transcriptStore *transcript.Store,
	selectionSet *selection.Set,
	log logger.ILogger,
	streaming bool,
	resultLimit int,
) *Controller {
	if resultLimit <= 0 {
		resultLimit = constant.DefaultResultLimit
	}
	return &Controller{
		api:         api,
		transcript:  transcriptStore,
		selection:   selectionSet,
		mapper:      mapper.NewChatMapper(),
		logger:      log,
		streaming:   streaming,
		resultLimit: resultLimit,
		state:       StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit runs one full exchange and blocks until it resolves. Whatever
// happens, the submitted question ends with a materialized assistant
// entry: streamed text, a blocking answer, or the fallback apology.
func (c *Controller) Submit(ctx context.Context, question string) error {
	if err := c.begin(); err != nil {
		return err
	}

	ctx, span := otel.Tracer("finquery-client/session").Start(ctx, "query.exchange")
	span.SetAttributes(
		attribute.Bool("query.streaming", c.streaming),
		attribute.Int("query.result_limit", c.resultLimit),
	)
	defer span.End()

	c.transcript.AppendUser(question)
	answerId := c.transcript.AppendAssistant()
	defer c.transcript.Close(answerId)

	request := &dto.QueryRequest{
		Question:      question,
		DocumentNames: c.selection.Snapshot(),
		NResults:      c.resultLimit,
	}
	span.SetAttributes(attribute.Int("query.scope_size", len(request.DocumentNames)))

	var err error
	if c.streaming {
		err = c.runStream(ctx, request, answerId)
	} else {
		err = c.runBlocking(ctx, request, answerId)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		c.setState(StateFailed)
		return err
	}

	c.setState(StateCompleted)
	return nil
}

// begin claims the single exchange slot. Completed and Failed are both
// Idle-eligible; only Sending and Streaming block a new submit.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSending || c.state == StateStreaming {
		return ErrSessionBusy
	}
	c.state = StateSending
	return nil
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) runStream(ctx context.Context, request *dto.QueryRequest, answerId uuid.UUID) error {
	body, err := c.api.QueryStream(ctx, request)
	if err != nil {
		// Open failure: no partial content exists, only the apology.
		_ = c.transcript.SetContent(answerId, constant.AnswerUnavailableFallback)
		c.logger.Error("Session", "Query stream open failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("open query stream: %w", err)
	}
	defer body.Close()

	c.setState(StateStreaming)

	decoder := stream.NewDecoder(c.logger)
	var accumulated int
	var sawDone bool

	apply := func(frames []stream.Frame) {
		for _, frame := range frames {
			switch frame.Type {
			case stream.FrameToken:
				accumulated += len(frame.Content)
				_ = c.transcript.AppendContent(answerId, frame.Content)
			case stream.FrameDone:
				sawDone = true
				_ = c.transcript.SetSources(answerId, c.mapper.SourcesToCitations(frame.Sources))
			}
		}
	}

	buf := make([]byte, 4096)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			apply(decoder.Feed(buf[:n]))
		}
		if readErr == io.EOF {
			apply(decoder.Flush())
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				// Cancelled mid-stream: the entry keeps what it has, or
				// the apology when nothing arrived.
				if accumulated == 0 {
					_ = c.transcript.SetContent(answerId, constant.AnswerUnavailableFallback)
				}
				return fmt.Errorf("query stream cancelled: %w", ctx.Err())
			}
			// Truncation is not fatal: keep the partial answer.
			c.logger.Warn("Session", "Stream ended early", map[string]interface{}{"error": readErr.Error()})
			break
		}
	}

	if accumulated == 0 {
		_ = c.transcript.SetContent(answerId, constant.AnswerUnavailableFallback)
	}
	if !sawDone {
		c.logger.Warn("Session", "Stream closed without terminal frame", map[string]interface{}{
			"accumulated_bytes": accumulated,
		})
	}
	return nil
}

// runBlocking is the degraded mode for deployments without the
// streaming endpoint: the whole answer lands as one content update
// followed by its sources.
func (c *Controller) runBlocking(ctx context.Context, request *dto.QueryRequest, answerId uuid.UUID) error {
	response, err := c.api.Query(ctx, request)
	if err != nil {
		_ = c.transcript.SetContent(answerId, constant.AnswerUnavailableFallback)
		c.logger.Error("Session", "Query failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("query: %w", err)
	}

	c.setState(StateStreaming)

	answer := response.Answer
	if answer == "" {
		answer = constant.AnswerUnavailableFallback
	}
	_ = c.transcript.AppendContent(answerId, answer)
	_ = c.transcript.SetSources(answerId, c.mapper.SourcesToCitations(response.Sources))
	return nil
}
