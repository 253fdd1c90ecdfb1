package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/intervita/sessiond/pkg/errors"
	"github.com/intervita/sessiond/pkg/logger"
)

// DefaultTimeout bounds a single parse call, file upload included.
const DefaultTimeout = 60 * time.Second

// Config configures the parsing gateway client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client submits binary documents to the remote parsing service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient constructs a parsing gateway client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, appErrors.NewConfiguration("parser.url must be configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.WithModule("parser"),
	}, nil
}

// Parse uploads the file as a multipart payload and returns the structured
// result. A non-success status or an empty structured result both reject the
// document.
func (c *Client) Parse(ctx context.Context, filename string, file []byte) (map[string]any, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, appErrors.Wrap(err, "build multipart payload")
	}
	if _, err := part.Write(file); err != nil {
		return nil, appErrors.Wrap(err, "write multipart payload")
	}
	if err := writer.Close(); err != nil {
		return nil, appErrors.Wrap(err, "finalise multipart payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/resume/parse/", &body)
	if err != nil {
		return nil, appErrors.Wrap(err, "build parse request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.ErrUpstream.WithInternal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("parse request failed",
			zap.String("file", filename),
			zap.Int("status", resp.StatusCode),
		)
		return nil, appErrors.ErrParse.WithInternal(
			fmt.Errorf("parse failed with status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.ErrUpstream.WithInternal(err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, appErrors.ErrParse.WithInternal(err)
	}

	// An empty structured result is treated identically to a failed call.
	if len(data) == 0 {
		return nil, appErrors.ErrParse.WithInternal(fmt.Errorf("parse returned empty result"))
	}

	c.log.Debug("document parsed", zap.String("file", filename), zap.Int("fields", len(data)))
	return data, nil
}
