package llm

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/edura/edura-core/internal/logger"
	"github.com/edura/edura-core/internal/metrics"
)

// FSM States
type FSMState stateless.State

var (
	StateIdle       FSMState = "Idle"
	StateConnecting FSMState = "Connecting"
	StateStreaming  FSMState = "Streaming"
	StateDone       FSMState = "Done"   // Terminal: upstream ended or the consumer stopped
	StateFailed     FSMState = "Failed" // Terminal: one error frame was emitted
)

// FSM Triggers
type FSMTrigger stateless.Trigger

var (
	TriggerOpen      FSMTrigger = "Open"
	TriggerConnected FSMTrigger = "Connected"
	TriggerEnded     FSMTrigger = "Ended"
	TriggerStopped   FSMTrigger = "Stopped"
	TriggerFailed    FSMTrigger = "Failed"
)

// Relay performs the upstream streaming call and re-emits it as Events.
type Relay struct {
	client  *http.Client
	timeout time.Duration
	metrics *metrics.Collector
}

// NewRelay creates a relay. A nil client uses http.DefaultClient; a zero
// timeout leaves the upstream call without a deadline.
func NewRelay(client *http.Client, timeout time.Duration, m *metrics.Collector) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{client: client, timeout: timeout, metrics: m}
}

// Converse streams msgs preceded by a system turn carrying prompt.
func (r *Relay) Converse(ctx context.Context, p Provider, prompt string, msgs []Message) iter.Seq[Event] {
	return r.Stream(ctx, p, WithSystem(prompt, msgs))
}

// Stream returns the outward event sequence for one completion. Nothing
// happens until the sequence is ranged over, and it can be ranged over once.
// Stopping the range closes the upstream connection.
func (r *Relay) Stream(ctx context.Context, p Provider, msgs []Message) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		run := &streamRun{relay: r, provider: p, msgs: msgs, yield: yield}
		run.execute(ctx)
	}
}

// streamRun carries the state of a single relay through its FSM.
type streamRun struct {
	relay    *Relay
	provider Provider
	msgs     []Message
	yield    func(Event) bool

	fsm      *stateless.StateMachine
	body     io.ReadCloser
	lastErr  error
	outcome  string
	frames   int
	started  time.Time
	response strings.Builder
}

func (s *streamRun) execute(ctx context.Context) {
	if s.relay.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.relay.timeout)
		defer cancel()
	}
	defer func() {
		if s.body != nil {
			s.body.Close()
		}
	}()

	s.started = time.Now()
	s.fsm = stateless.NewStateMachine(StateIdle)

	s.fsm.Configure(StateIdle).
		Permit(TriggerOpen, StateConnecting)

	s.fsm.Configure(StateConnecting).
		OnEntry(s.connect).
		Permit(TriggerConnected, StateStreaming).
		Permit(TriggerFailed, StateFailed)

	s.fsm.Configure(StateStreaming).
		OnEntry(s.forward).
		Permit(TriggerEnded, StateDone).
		Permit(TriggerStopped, StateDone).
		Permit(TriggerFailed, StateFailed)

	s.fsm.Configure(StateDone).
		OnEntry(s.finish)

	s.fsm.Configure(StateFailed).
		OnEntry(s.fail)

	if err := s.fsm.FireCtx(ctx, TriggerOpen); err != nil {
		logger.L.Error("relay state machine error", "provider", s.provider.Name(), logger.Err(err))
	}
}

// connect builds the provider request and opens the upstream stream.
func (s *streamRun) connect(ctx context.Context, _ ...any) error {
	req, err := s.provider.BuildRequest(s.msgs)
	if err != nil {
		s.lastErr = err
		s.outcome = metrics.OutcomeConfigError
		if !errors.Is(err, ErrMissingConfig) {
			s.outcome = metrics.OutcomeTransport
		}
		return s.fsm.FireCtx(ctx, TriggerFailed)
	}

	logger.L.Info("LLM request", "provider", s.provider.Name(), "question", lastUserQuestion(s.msgs))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		s.lastErr = fmt.Errorf("failed to create request: %w", err)
		s.outcome = metrics.OutcomeTransport
		return s.fsm.FireCtx(ctx, TriggerFailed)
	}
	httpReq.Header = req.Header.Clone()

	resp, err := s.relay.client.Do(httpReq)
	if err != nil {
		s.lastErr = fmt.Errorf("Upstream request failed: %w", err)
		s.outcome = transportOutcome(ctx)
		return s.fsm.FireCtx(ctx, TriggerFailed)
	}
	s.body = resp.Body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, err := io.ReadAll(resp.Body)
		body := string(raw)
		if err != nil {
			logger.L.Warn("reading upstream error body", "provider", s.provider.Name(), logger.Err(err))
			body += fmt.Sprintf(" (error body truncated: %v)", err)
		}
		s.lastErr = &UpstreamError{StatusCode: resp.StatusCode, Body: body}
		s.outcome = metrics.OutcomeHTTPError
		return s.fsm.FireCtx(ctx, TriggerFailed)
	}
	return s.fsm.FireCtx(ctx, TriggerConnected)
}

// forward hands every upstream line to the consumer unchanged, then feeds it
// to the provider parser for the logged transcript. Parsing never affects
// forwarding.
func (s *streamRun) forward(ctx context.Context, _ ...any) error {
	reader := bufio.NewReader(s.body)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.frames++
			if !s.yield(Event{Data: line}) {
				s.outcome = metrics.OutcomeCancelled
				return s.fsm.FireCtx(ctx, TriggerStopped)
			}
			if delta, ok := s.provider.ParseLine(line); ok {
				s.response.WriteString(delta)
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			s.outcome = metrics.OutcomeOK
			return s.fsm.FireCtx(ctx, TriggerEnded)
		}
		s.lastErr = fmt.Errorf("failed to read stream: %w", err)
		s.outcome = transportOutcome(ctx)
		return s.fsm.FireCtx(ctx, TriggerFailed)
	}
}

func (s *streamRun) finish(_ context.Context, _ ...any) error {
	s.record()
	logger.L.Info("LLM response",
		"provider", s.provider.Name(),
		"outcome", s.outcome,
		"frames", s.frames,
		"response", s.response.String(),
	)
	return nil
}

// fail emits the single error frame that ends a failed stream. A client that
// went away gets nothing.
func (s *streamRun) fail(ctx context.Context, _ ...any) error {
	s.record()
	logger.L.Error("LLM error",
		"provider", s.provider.Name(),
		"outcome", s.outcome,
		"frames", s.frames,
		logger.Err(s.lastErr),
	)
	if s.outcome == metrics.OutcomeCancelled {
		return nil
	}
	s.yield(ErrorEvent(s.lastErr))
	return nil
}

func (s *streamRun) record() {
	s.relay.metrics.ObserveUpstream(s.provider.Name(), s.outcome, time.Since(s.started))
	s.relay.metrics.AddFrames(s.provider.Name(), s.frames)
}

// transportOutcome separates a caller that went away from a real failure.
func transportOutcome(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.Canceled) {
		return metrics.OutcomeCancelled
	}
	return metrics.OutcomeTransport
}

// Collect drains a stream into a slice. Intended for tests and tooling.
func Collect(seq iter.Seq[Event]) []Event {
	var out []Event
	for ev := range seq {
		out = append(out, ev)
	}
	return out
}
