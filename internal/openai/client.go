package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"aura-farm-transformer/internal/styles"
)

const defaultModel = "gpt-4o"

// Sizes are the output sizes the image-edit endpoint accepts here.
var Sizes = []string{"1024x1024", "512x512", "256x256"}

func ValidSize(size string) bool {
	for _, s := range Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// ServiceError carries the upstream failure message so the boundary can
// show it to the user. Any failed transformation surfaces as one.
type ServiceError struct {
	Status  string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Status != "" && e.Message != "":
		return fmt.Sprintf("image service %s: %s", e.Status, e.Message)
	case e.Message != "":
		return "image service: " + e.Message
	default:
		return "image service request failed"
	}
}

func (e *ServiceError) Unwrap() error { return e.Err }

type Options struct {
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client wraps the external image-edit API. The API key is supplied per
// call rather than held on the client: it belongs to the end user, not
// the process.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// Transform sends one image-edit request and returns the result URLs in
// response order. The sequence may be shorter than n when individual
// generations fail upstream without an error.
func (c *Client) Transform(ctx context.Context, apiKey string, image []byte, style styles.Style, n int, size string) ([]string, error) {
	if c.httpClient == nil {
		return nil, &ServiceError{Message: "http client is nil"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ServiceError{Message: "API key is empty"}
	}
	if len(image) == 0 {
		return nil, &ServiceError{Message: "source image is empty"}
	}

	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	if !ValidSize(size) {
		size = Sizes[0]
	}

	body, contentType, err := encodeEditForm(image, style.Prompt(), c.model, n, size)
	if err != nil {
		return nil, &ServiceError{Message: err.Error(), Err: err}
	}

	url := c.baseURL + "/v1/images/edits"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Message: err.Error(), Err: err}
	}
	httpReq.Header.Set("content-type", contentType)
	httpReq.Header.Set("authorization", "Bearer "+apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{Message: err.Error(), Err: err}
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &ServiceError{Status: httpResp.Status, Message: err.Error(), Err: err}
	}

	if httpResp.StatusCode >= 400 {
		return nil, &ServiceError{
			Status:  httpResp.Status,
			Message: upstreamMessage(rawBody),
		}
	}

	var decoded editResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return nil, &ServiceError{Status: httpResp.Status, Message: "unparseable response", Err: err}
	}

	urls := make([]string, 0, len(decoded.Data))
	for _, item := range decoded.Data {
		if item.URL == "" {
			continue
		}
		urls = append(urls, item.URL)
	}

	c.logger.Debug("transform done", "style", style, "requested", n, "returned", len(urls))
	return urls, nil
}

func encodeEditForm(image []byte, prompt, model string, n int, size string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", "source.png")
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}

	fields := map[string]string{
		"model":  model,
		"prompt": prompt,
		"n":      strconv.Itoa(n),
		"size":   size,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// upstreamMessage digs the human-readable error text out of the API's
// error envelope, falling back to the raw body.
func upstreamMessage(raw []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = "no error detail"
	}
	return msg
}

type editResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL string `json:"url"`
	} `json:"data"`
}
