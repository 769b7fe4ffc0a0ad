// Package service wires the domain pieces into the proxy pipeline: decrypt,
// resolve the interception rule, apply it, forward upstream, re-encrypt, and
// audit the exchange.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lin-gate/lingate/internal/adapter/outbound/upstream"
	"github.com/lin-gate/lingate/internal/cryptor"
	"github.com/lin-gate/lingate/internal/ctxkey"
	"github.com/lin-gate/lingate/internal/domain/action"
	"github.com/lin-gate/lingate/internal/domain/auditlog"
	"github.com/lin-gate/lingate/internal/domain/command"
	"github.com/lin-gate/lingate/internal/domain/rpc"
	"github.com/lin-gate/lingate/internal/domain/rule"
)

// decryptFailurePlaceholder replaces params that would not decrypt. The
// placeholder flows through the rest of the pipeline like real params: it is
// matched against rules, re-encrypted, forwarded, and audited.
const decryptFailurePlaceholder = "Failed to decrypt params"

// upstreamErrorBody is returned with a 502 when the control server is
// unreachable.
var upstreamErrorBody = []byte(`{"error":"Failed to connect to target server"}`)

// Forwarder sends a request body to the control server.
type Forwarder interface {
	Post(ctx context.Context, path string, body []byte) (*upstream.Response, error)
}

// Metrics is the pipeline's metrics hook. The HTTP layer provides the
// Prometheus implementation; the zero service uses a no-op.
type Metrics interface {
	ExchangeProcessed(method, requestAction, responseAction string)
	UpstreamError()
	LogAppendFailure()
}

type noopMetrics struct{}

func (noopMetrics) ExchangeProcessed(string, string, string) {}
func (noopMetrics) UpstreamError()                           {}
func (noopMetrics) LogAppendFailure()                        {}

// Exchange is what the transport returns to the endpoint.
type Exchange struct {
	Status int
	Body   []byte
}

// InterceptService is the proxy pipeline. Every failure short of an
// unreachable upstream degrades to passthrough: the endpoint exchange is
// never gated on rules, transforms, or the audit trail.
type InterceptService struct {
	cryptor  *cryptor.Cryptor
	rules    rule.Store
	logs     auditlog.Appender
	commands command.Store // nil disables command capture
	forward  Forwarder
	rng      action.Rand
	metrics  Metrics
	logger   *slog.Logger
}

// Option configures an InterceptService.
type Option func(*InterceptService)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(s *InterceptService) { s.logger = l }
}

// WithRand injects the randomness source for the duration transform.
func WithRand(r action.Rand) Option {
	return func(s *InterceptService) { s.rng = r }
}

// WithCommandStore enables capture of command payloads from getCmd responses.
func WithCommandStore(cs command.Store) Option {
	return func(s *InterceptService) { s.commands = cs }
}

// WithMetrics sets the metrics hook.
func WithMetrics(m Metrics) Option {
	return func(s *InterceptService) { s.metrics = m }
}

// SetMetrics attaches the metrics hook after construction. The HTTP transport
// owns the Prometheus registry but takes the service as a dependency, so the
// hook is wired in a second step before the server starts.
func (s *InterceptService) SetMetrics(m Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// NewInterceptService creates the pipeline.
func NewInterceptService(c *cryptor.Cryptor, rules rule.Store, logs auditlog.Appender, fwd Forwarder, opts ...Option) *InterceptService {
	s := &InterceptService{
		cryptor: c,
		rules:   rules,
		logs:    logs,
		forward: fwd,
		rng:     action.DefaultRand,
		metrics: noopMetrics{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InterceptService) loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return l
	}
	return s.logger
}

// Handle processes one endpoint request. path is the request path, forwarded
// verbatim to the upstream; body is the raw request body.
func (s *InterceptService) Handle(ctx context.Context, path string, body []byte) *Exchange {
	logger := s.loggerFrom(ctx)

	env, err := rpc.Parse(body)
	if err != nil {
		// Not an envelope we can inspect: pure relay, no audit record.
		logger.Debug("uninterceptable body, relaying", "error", err)
		return s.relay(ctx, logger, path, body)
	}

	method := env.Method()
	originalPlain := s.decryptParams(logger, env)
	email := env.Email()
	logger = logger.With("method", method, "email", email)

	matched, err := s.rules.Resolve(ctx, method, email)
	if err != nil {
		logger.Warn("rule resolution failed, passing through", "error", err)
		matched = nil
	}

	res, err := action.Apply(matched, env, s.rng)
	if err != nil {
		logger.Warn("rule application failed, passing through",
			"rule_id", matched.ID, "action", matched.Action, "error", err)
		res = action.Result{Envelope: env}
	}

	if res.ShortCircuit {
		return s.shortCircuit(ctx, logger, method, email, originalPlain, res)
	}

	outBody, err := s.encryptOutbound(res.Envelope)
	if err != nil {
		logger.Warn("outbound marshal failed, relaying original", "error", err)
		outBody = body
		res = action.Result{Envelope: env}
	}

	resp, err := s.forward.Post(ctx, path, outBody)
	if err != nil {
		// No audit record on upstream failure.
		logger.Error("upstream request failed", "error", err)
		s.metrics.UpstreamError()
		return &Exchange{Status: 502, Body: upstreamErrorBody}
	}

	respPlain, respDecryptOK := s.decryptResponse(logger, resp.Body)

	// The response-side transform slot sits here. Only replace produces a
	// response action today and it never reaches this point.
	finalBody := resp.Body
	if respDecryptOK {
		finalBody = []byte(s.cryptor.Encrypt(respPlain))
	}

	if method == "getCmd" && respDecryptOK {
		s.captureCommands(ctx, logger, respPlain)
	}

	rec := &auditlog.Record{
		Method:        method,
		Email:         email,
		RequestBody:   originalPlain,
		ResponseBody:  respPlain,
		RequestAction: res.RequestAction,
	}
	if res.RequestAction != "" {
		rec.InterceptedRequest = s.interceptedRequestJSON(logger, res)
	}
	s.appendLog(ctx, logger, rec)
	s.metrics.ExchangeProcessed(method, res.RequestAction, res.ResponseAction)

	return &Exchange{Status: resp.Status, Body: finalBody}
}

// relay forwards bytes with no inspection and no audit record.
func (s *InterceptService) relay(ctx context.Context, logger *slog.Logger, path string, body []byte) *Exchange {
	resp, ex := s.forwardRaw(ctx, logger, path, body)
	if resp == nil {
		return ex
	}
	return &Exchange{Status: resp.Status, Body: resp.Body}
}

func (s *InterceptService) forwardRaw(ctx context.Context, logger *slog.Logger, path string, body []byte) (*upstream.Response, *Exchange) {
	resp, err := s.forward.Post(ctx, path, body)
	if err != nil {
		logger.Error("upstream request failed", "error", err)
		s.metrics.UpstreamError()
		return nil, &Exchange{Status: 502, Body: upstreamErrorBody}
	}
	return resp, nil
}

// decryptParams decrypts the envelope's params in place and returns the
// plaintext rendering of the whole envelope for the audit trail. Params that
// would not decrypt are replaced with an error placeholder and the pipeline
// continues: rules still resolve and the placeholder is what gets re-encrypted
// and forwarded, so probing traffic stays observable.
func (s *InterceptService) decryptParams(logger *slog.Logger, env *rpc.Envelope) string {
	enc, ok := env.Params().(string)
	if !ok {
		// Already-plain params (or none). Nothing to decrypt.
		plain, _ := env.Marshal()
		return string(plain)
	}

	plaintext, err := s.cryptor.Decrypt(enc)
	if err != nil {
		logger.Warn("params decrypt failed", "method", env.Method(), "error", err)
		env.SetParams(map[string]any{"error": decryptFailurePlaceholder})
		rendered, _ := env.Marshal()
		return string(rendered)
	}

	var params any
	if err := json.Unmarshal([]byte(plaintext), &params); err != nil {
		// Decrypted but not JSON; keep the raw string visible.
		params = plaintext
	}
	env.SetParams(params)
	rendered, _ := env.Marshal()
	return string(rendered)
}

// decryptResponse returns the response plaintext, or the raw body when the
// upstream reply is not an encrypted blob. The second return reports whether
// decryption succeeded.
func (s *InterceptService) decryptResponse(logger *slog.Logger, body []byte) (string, bool) {
	plain, err := s.cryptor.Decrypt(string(body))
	if err != nil {
		logger.Debug("response not encrypted, keeping raw", "error", err)
		return string(body), false
	}
	return plain, true
}

// encryptOutbound re-encrypts the envelope's params and renders the body the
// upstream expects.
func (s *InterceptService) encryptOutbound(env *rpc.Envelope) ([]byte, error) {
	out := env.Clone()
	if p := out.Params(); p != nil {
		plain, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		out.SetParams(s.cryptor.Encrypt(string(plain)))
	}
	return out.Marshal()
}

func (s *InterceptService) shortCircuit(ctx context.Context, logger *slog.Logger, method, email, originalPlain string, res action.Result) *Exchange {
	logger.Info("replace rule short-circuited upstream", "method", method)
	s.appendLog(ctx, logger, &auditlog.Record{
		Method:              method,
		Email:               email,
		RequestBody:         originalPlain,
		InterceptedRequest:  originalPlain,
		ResponseBody:        res.ResponseOverride,
		InterceptedResponse: res.ResponseOverride,
		ResponseAction:      res.ResponseAction,
	})
	s.metrics.ExchangeProcessed(method, res.RequestAction, res.ResponseAction)
	return &Exchange{Status: 200, Body: []byte(s.cryptor.Encrypt(res.ResponseOverride))}
}

// interceptedRequestJSON renders the transformed outbound envelope for the
// audit record, folding the transform trace in under _rule_info.
func (s *InterceptService) interceptedRequestJSON(logger *slog.Logger, res action.Result) string {
	rendered, err := res.Envelope.Marshal()
	if err != nil {
		logger.Warn("intercepted request render failed", "error", err)
		return ""
	}
	if len(res.RuleInfo) == 0 {
		return string(rendered)
	}
	var m map[string]any
	if err := json.Unmarshal(rendered, &m); err != nil {
		return string(rendered)
	}
	m["_rule_info"] = res.RuleInfo
	withInfo, err := json.Marshal(m)
	if err != nil {
		return string(rendered)
	}
	return string(withInfo)
}

// captureCommands enqueues command items found in a getCmd response for
// operator review. All failures are swallowed; capture never gates the
// exchange.
func (s *InterceptService) captureCommands(ctx context.Context, logger *slog.Logger, respPlain string) {
	if s.commands == nil {
		return
	}
	items := extractCommandItems(respPlain)
	for _, item := range items {
		if _, err := s.commands.Insert(ctx, item); err != nil {
			logger.Warn("command capture failed", "error", err)
			return
		}
	}
	if len(items) > 0 {
		logger.Info("captured commands for review", "count", len(items))
	}
}

// extractCommandItems pulls the command list out of a getCmd response body:
// either a top-level array or an object with a data array.
func extractCommandItems(respPlain string) []string {
	var v any
	if err := json.Unmarshal([]byte(respPlain), &v); err != nil {
		return nil
	}
	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any:
		list, _ = t["data"].([]any)
	}
	var out []string
	for _, item := range list {
		b, err := json.Marshal(item)
		if err != nil {
			continue
		}
		out = append(out, string(b))
	}
	return out
}

func (s *InterceptService) appendLog(ctx context.Context, logger *slog.Logger, rec *auditlog.Record) {
	if _, err := s.logs.Append(ctx, rec); err != nil {
		logger.Warn("audit log append failed", "method", rec.Method, "error", err)
		s.metrics.LogAppendFailure()
	}
}
