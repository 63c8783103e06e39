package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ErrNoTenant indicates a turn was attempted without a resolvable tenant.
// Every tool is tenant-scoped, so no coherent turn is possible; this is the
// only error a turn is allowed to propagate to the caller.
var ErrNoTenant = errors.New("no tenant selected")

// ModelClient is the provider seam the orchestrator generates through.
// Implemented by GeminiClient in production and by scripted models in tests.
type ModelClient interface {
	Generate(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

// OrchestratorConfig contains all required parameters for the Orchestrator.
type OrchestratorConfig struct {
	Model      ModelClient
	Dispatcher *Dispatcher
	Logger     *slog.Logger

	// MaxToolRounds bounds the tool-call sub-loop within one turn. A model
	// that keeps requesting tools past the bound gets no further dispatches
	// and the turn degrades to ExhaustedText. Zero uses the default of 5.
	MaxToolRounds int

	// RetryConfig tunes model-call retries (zero value uses defaults).
	RetryConfig RetryConfig

	// RateLimiter paces model calls across retries (nil = default limiter).
	RateLimiter *rate.Limiter
}

func (cfg OrchestratorConfig) validate() error {
	if cfg.Model == nil {
		return errors.New("model client is required")
	}
	if cfg.Dispatcher == nil {
		return errors.New("dispatcher is required")
	}
	return nil
}

// Orchestrator runs the per-turn state machine: send the conversation to the
// model, and while the reply requests tool calls, dispatch them sequentially
// and feed the batched results back until the model answers in plain text or
// the round bound is hit.
//
// Orchestrator is stateless across turns and safe for concurrent use; the
// conversation log is owned by the Session facade.
type Orchestrator struct {
	model      ModelClient
	dispatcher *Dispatcher
	logger     *slog.Logger
	maxRounds  int

	retryConfig RetryConfig
	rateLimiter *rate.Limiter
}

// NewOrchestrator creates an Orchestrator with the given configuration.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 5
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}

	return &Orchestrator{
		model:       cfg.Model,
		dispatcher:  cfg.Dispatcher,
		logger:      logger,
		maxRounds:   maxRounds,
		retryConfig: retryConfig,
		rateLimiter: limiter,
	}, nil
}

// Run executes one turn against the model. log is the conversation including
// the just-appended user message. The returned string is the final
// model-authored reply text; an error is returned only when the model itself
// is unreachable (the caller converts that into the apology reply) or when
// tenantID is absent.
func (o *Orchestrator) Run(ctx context.Context, tenantID uuid.UUID, log []Message) (string, error) {
	if tenantID == uuid.Nil {
		return "", ErrNoTenant
	}

	contents := outboundHistory(log)
	if len(contents) == 0 {
		return "", errors.New("empty conversation log")
	}

	for round := 0; ; round++ {
		resp, err := o.generateWithRetry(ctx, contents)
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}

		calls := functionCalls(resp)
		if len(calls) == 0 {
			return replyText(resp), nil
		}

		if round == o.maxRounds {
			o.logger.Warn("tool round bound reached, degrading turn",
				"rounds", round, "pending_calls", len(calls))
			return ExhaustedText, nil
		}

		// The model's function-call content must precede the result batch in
		// the follow-up request so call identity lines up.
		contents = append(contents, resp.Candidates[0].Content)

		// Sequential by contract: results are returned as one batch keyed by
		// call identity, and handlers carry no cross-call coordination
		// guarantee.
		batch := make([]*genai.Part, 0, len(calls))
		for _, call := range calls {
			result := o.dispatcher.Execute(ctx, call.Name, call.Args, tenantID)
			batch = append(batch, genai.NewPartFromFunctionResponse(result.Name, result.Payload))
		}
		contents = append(contents, genai.NewContentFromParts(batch, genai.RoleUser))

		o.logger.Debug("dispatched tool round", "round", round+1, "calls", len(calls))
	}
}

// outboundHistory maps the conversation log to the provider's content shape.
// A leading model-authored entry (the welcome message) is dropped because the
// provider requires the first turn to be user-authored.
func outboundHistory(log []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(log))
	for i, msg := range log {
		if i == 0 && msg.Role == RoleModel {
			continue
		}
		var role genai.Role = genai.RoleUser
		if msg.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

// functionCalls extracts the tool-call requests from a reply, in the order
// received. Tolerates replies with no candidates or no parts.
func functionCalls(resp *genai.GenerateContentResponse) []*genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []*genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

// replyText concatenates the text parts of a reply, falling back to a fixed
// message when the model produced nothing usable.
func replyText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return FallbackText
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return FallbackText
	}
	return sb.String()
}
