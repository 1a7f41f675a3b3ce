// Package analysis asks an OpenAI-compatible chat endpoint for a short coaching report on a
// workout. It never returns an error: unavailability is reported in-band through fixed
// sentinel texts so the report can still be delivered.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/agentworkforce/courtwatch/internal/workout"
)

const (
	SentinelUnavailable = "⚠️ 分析服务暂时不可用。"
	SentinelFailed      = "⚠️ AI 分析生成失败。"

	DefaultBaseURL     = "https://api.deepseek.com"
	DefaultModel       = "deepseek-reasoner"
	DefaultTemperature = 0.3
	DefaultTimeout     = 90 * time.Second
)

var (
	errEmptyChoices = errors.New("completion has no choices")

	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtwatch",
		Subsystem: "analysis",
		Name:      "requests_total",
		Help:      "Analysis requests by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(requestCounter)
}

// IsSentinel reports whether text is one of the fixed unavailability messages.
func IsSentinel(text string) bool {
	return text == SentinelUnavailable || text == SentinelFailed
}

// Options configures a Client. A nil Temperature means DefaultTemperature; zero is a valid
// setting.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature *float64
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

type Client struct {
	http        *resty.Client
	apiKey      string
	model       string
	temperature float64
	logger      *zap.Logger
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(baseURL)
	rc.SetTimeout(timeout)
	rc.SetHeader("Content-Type", "application/json")
	rc.SetHeader("Accept", "application/json")

	return &Client{
		http:        rc,
		apiKey:      strings.TrimSpace(opts.APIKey),
		model:       model,
		temperature: temperature,
		logger:      logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Analyze returns the coaching report for w, or a sentinel text.
func (c *Client) Analyze(ctx context.Context, w workout.Workout) string {
	if c.apiKey == "" {
		requestCounter.WithLabelValues("sentinel").Inc()
		return SentinelUnavailable
	}
	text, err := c.complete(ctx, w)
	if err != nil {
		requestCounter.WithLabelValues("sentinel").Inc()
		c.logger.Error("analysis request failed", zap.String("workout_id", w.ID), zap.Error(err))
		return SentinelFailed
	}
	requestCounter.WithLabelValues("ok").Inc()
	return text
}

func (c *Client) complete(ctx context.Context, w workout.Workout) (string, error) {
	prompt, err := BuildPrompt(w.Raw)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	var (
		out    chatResponse
		failed apiError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: prompt},
			},
			Temperature: c.temperature,
		}).
		SetResult(&out).
		SetError(&failed).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		if msg := strings.TrimSpace(failed.Error.Message); msg != "" {
			return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode(), msg)
		}
		return "", fmt.Errorf("chat completion status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", errEmptyChoices
	}
	return out.Choices[0].Message.Content, nil
}
