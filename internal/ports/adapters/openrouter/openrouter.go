package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"

	"github.com/forPelevin/hookcut/internal/types"
)

const (
	requestTimeout = 90 * time.Second
	defaultModel   = "google/gemini-2.0-flash-001"
	// Tried once when the primary model is overloaded or unavailable.
	defaultFallbackModel = "google/gemini-2.0-flash-lite-001"

	// Rate-limit retries give up once the next wait would exceed maxWait.
	defaultMaxRetries = 3
	defaultFirstDelay = time.Second
	defaultMaxWait    = 20 * time.Second
	hintBuffer        = time.Second

	maxTranscriptRunes = 20000
	wordsPerLine       = 12
)

// Adapter asks an OpenAI-compatible chat endpoint (OpenRouter by default) for
// hook candidates.
type Adapter struct {
	key      string
	model    string
	fallback string
	client   *openai.Client

	maxRetries uint64
	firstDelay time.Duration
	maxWait    time.Duration

	Logf func(format string, args ...any)
}

// New builds an adapter. An empty model selects the default pair. An empty
// fallback keeps the default fallback, and "none" disables failover.
func New(apiKey, model, fallback, baseURL string) *Adapter {
	if model == "" {
		model = defaultModel
	}
	switch strings.TrimSpace(fallback) {
	case "":
		fallback = defaultFallbackModel
	case "none":
		fallback = ""
	}
	if fallback == model {
		fallback = ""
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = apiBaseURL(baseURL)
	cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	return &Adapter{
		key:        apiKey,
		model:      model,
		fallback:   fallback,
		client:     openai.NewClientWithConfig(cfg),
		maxRetries: defaultMaxRetries,
		firstDelay: defaultFirstDelay,
		maxWait:    defaultMaxWait,
	}
}

// Analyze returns the model's raw answer. Parsing and validation happen in
// the caller, which treats the text as untrusted.
func (a *Adapter) Analyze(ctx context.Context, tr types.Transcript) (string, error) {
	text := promptTranscript(tr)
	if strings.TrimSpace(text) == "" {
		return "[]", nil
	}
	content, err := a.complete(ctx, a.model, text)
	if err == nil || a.fallback == "" || ctx.Err() != nil || !shouldFallback(err) {
		return content, err
	}
	a.logf("openrouter: %s failed (%v), falling back to %s", a.model, err, a.fallback)
	return a.complete(ctx, a.fallback, text)
}

// complete runs one model with its own rate-limit retry budget.
func (a *Adapter) complete(ctx context.Context, model, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Transcript:\n" + text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	policy := &retryPolicy{
		exp:     a.exponential(),
		maxWait: a.maxWait,
	}
	var (
		content    string
		lastStatus int
	)
	op := func() error {
		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		resp, err := a.client.CreateChatCompletion(reqCtx, req)
		if err != nil {
			if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				lastStatus = http.StatusGatewayTimeout
				return backoff.Permanent(fmt.Errorf("timeout after %s (model=%s)", requestTimeout, model))
			}
			lastStatus = statusCode(err)
			if lastStatus == http.StatusTooManyRequests {
				policy.hint = retryDelayHint(err.Error())
				return err
			}
			return backoff.Permanent(errors.New(redactSecrets(err.Error(), a.key)))
		}
		if len(resp.Choices) == 0 {
			lastStatus = http.StatusBadGateway
			return backoff.Permanent(errors.New("empty choices"))
		}
		content = resp.Choices[0].Message.Content
		return nil
	}
	notify := func(err error, wait time.Duration) {
		a.logf("openrouter: %s rate limited, retrying in %s", model, wait)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, a.maxRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if lastStatus == http.StatusTooManyRequests {
			msg := "retries exhausted"
			if policy.exceeded > 0 {
				msg = fmt.Sprintf("required wait %s exceeds %s", policy.exceeded.Round(time.Second), a.maxWait)
			}
			err = fmt.Errorf("%w: %s: %s", types.ErrRateLimited, msg, redactSecrets(err.Error(), a.key))
		}
		return "", &types.ExternalServiceError{Service: "openrouter", Stage: "analyze", Err: &statusError{status: lastStatus, err: err}}
	}
	return content, nil
}

// statusError keeps the upstream HTTP status of a failed completion.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

// shouldFallback reports whether a failure looks like the model being
// overloaded or unavailable rather than a bad request or bad credentials.
func shouldFallback(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	switch {
	case se.status == http.StatusTooManyRequests, se.status >= 500:
		return true
	case se.status == http.StatusNotFound:
		// Unknown or retired model id.
		return true
	case se.status == 0:
		// Transport failure with no HTTP response.
		return true
	}
	return false
}

func (a *Adapter) exponential() *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = a.firstDelay
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Hour
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}

func (a *Adapter) logf(format string, args ...any) {
	if a.Logf != nil {
		a.Logf(format, args...)
	}
}

// retryPolicy is exponential backoff that honors a server-suggested delay
// (plus a buffer) and stops once a wait would exceed maxWait.
type retryPolicy struct {
	exp      *backoff.ExponentialBackOff
	maxWait  time.Duration
	hint     time.Duration
	exceeded time.Duration
}

func (p *retryPolicy) NextBackOff() time.Duration {
	d := p.exp.NextBackOff()
	if d == backoff.Stop {
		return backoff.Stop
	}
	if p.hint > 0 {
		d = p.hint + hintBuffer
		p.hint = 0
	}
	if d > p.maxWait {
		p.exceeded = d
		return backoff.Stop
	}
	return d
}

func (p *retryPolicy) Reset() {
	p.exp.Reset()
	p.hint = 0
	p.exceeded = 0
}

func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

var (
	reRetryDelay = regexp.MustCompile(`(?i)"?retry_?delay"?\s*[:=]\s*"?(\d+(?:\.\d+)?)s`)
	reRetryAfter = regexp.MustCompile(`(?i)retry[- ]after\D{0,5}(\d+(?:\.\d+)?)`)
)

// retryDelayHint pulls a provider-suggested wait out of an error message. It
// is best effort: zero means "no hint", and the plain exponential delay is used.
func retryDelayHint(msg string) time.Duration {
	for _, re := range []*regexp.Regexp{reRetryDelay, reRetryAfter} {
		m := re.FindStringSubmatch(msg)
		if len(m) < 2 {
			continue
		}
		sec, err := strconv.ParseFloat(m[1], 64)
		if err != nil || sec <= 0 {
			continue
		}
		return time.Duration(sec * float64(time.Second))
	}
	return 0
}

// promptTranscript renders the transcript for the model. With word timings
// every line is prefixed with its start second so the model can place cuts.
func promptTranscript(tr types.Transcript) string {
	if len(tr.Words) == 0 {
		return truncate(strings.TrimSpace(tr.Text), maxTranscriptRunes)
	}
	var b strings.Builder
	for i := 0; i < len(tr.Words); i += wordsPerLine {
		line := tr.Words[i:min(i+wordsPerLine, len(tr.Words))]
		fmt.Fprintf(&b, "[%.1f] ", line[0].Start.Seconds())
		for j, w := range line {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(w.Text)
		}
		b.WriteByte('\n')
	}
	return truncate(b.String(), maxTranscriptRunes)
}

const systemPrompt = `You pick short viral clips ("hooks") out of long videos.
Find up to 3 hooks in the transcript. Lines start with their start time in seconds.

A hook may merge separate parts of the video into one narrative, for example a
setup at 0-30s and its payoff at 120-150s: return that as one hook with
segments [{"start":0,"end":30},{"start":120,"end":150}]. Segments play in the
order listed. The combined length of all segments of a hook must be between 60
and 180 seconds. Start every segment at the beginning of a sentence.

Score virality from 0 to 100: hook strength in the first seconds (40%), pacing
(30%), emotional or practical value (30%).

Answer with JSON only:
{"hooks":[{"start_time":number,"end_time":number,"segments":[{"start":number,"end":number}],"virality_score":number,"type":string,"title":string}]}
type is one of "The Deep Dive", "The Story Arc", "The Contrarian Argument",
"Pattern Interrupt", "High-Retention Hook".`

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var (
	bearerTokenRE = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._-]+\b`)
	authHeaderRE  = regexp.MustCompile(`(?i)(authorization\s*[:=]\s*)([^\n\r,;]+)`)
	apiKeyFieldRE = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([^\n\r,;]+)`)
)

func redactSecrets(s, apiKey string) string {
	if s == "" {
		return s
	}
	out := s
	if apiKey != "" {
		out = strings.ReplaceAll(out, apiKey, "[REDACTED]")
	}
	out = bearerTokenRE.ReplaceAllString(out, "Bearer [REDACTED]")
	out = authHeaderRE.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyFieldRE.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}
