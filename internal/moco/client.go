package moco

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/mocoscribe/internal/media"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL      = "https://api.mocomoco.ai/api/v1"
	DefaultPollInterval = 5 * time.Second
	DefaultLanguage     = "ja"

	apiKeyHeader = "X-API-KEY"
	userAgent    = "mocoscribe/1"
)

var ErrJobFailed = errors.New("transcription job did not complete")

// Options is forwarded to the API as-is.
type Options struct {
	Language           string `json:"language,omitempty"`
	SpeakerDiarization bool   `json:"speakerDiarization,omitempty"`
	Timestamp          bool   `json:"timestamp,omitempty"`
	Punctuation        bool   `json:"punctuation,omitempty"`
}

type Result struct {
	TranscriptionID   string `json:"transcription_id"`
	Status            Status `json:"status"`
	TranscriptionPath string `json:"transcription_path"`
	Text              string `json:"text"`
}

type Job struct {
	TranscriptionID string `json:"transcription_id"`
	AudioUploadURL  string `json:"audio_upload_url"`
}

type ClientOptions struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
	// OnStatus receives every status observed while polling.
	OnStatus func(Status)
}

type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	http         *http.Client
	logger       *zap.Logger
	onStatus     func(Status)
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		pollInterval: opts.PollInterval,
		http:         opts.HTTPClient,
		logger:       opts.Logger,
		onStatus:     opts.OnStatus,
	}
}

// Transcribe runs one job end to end: create, upload, start, wait, fetch.
// A failure at any step aborts the job; nothing is retried.
func (c *Client) Transcribe(ctx context.Context, filePath string, opts Options) (*Result, error) {
	job, err := c.CreateJob(ctx, filepath.Base(filePath), opts)
	if err != nil {
		return nil, fmt.Errorf("create transcription job: %w", err)
	}
	c.logger.Debug("transcription job created", zap.String("id", job.TranscriptionID))

	if err := c.UploadAudio(ctx, job.AudioUploadURL, filePath); err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	c.logger.Debug("audio uploaded", zap.String("id", job.TranscriptionID), zap.String("path", filePath))

	if err := c.StartTranscription(ctx, job.TranscriptionID); err != nil {
		return nil, fmt.Errorf("start transcription: %w", err)
	}

	result, err := c.WaitForCompletion(ctx, job.TranscriptionID)
	if err != nil {
		return nil, err
	}

	text, err := c.FetchText(ctx, result.TranscriptionPath)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	result.Text = text

	return result, nil
}

func (c *Client) CreateJob(ctx context.Context, filename string, opts Options) (*Job, error) {
	body, err := json.Marshal(newUploadRequest(filename, opts))
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := c.newAPIRequest(ctx, http.MethodPost, "/transcriptions/upload", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	job := &Job{}
	if err := c.doJSON(req, job); err != nil {
		return nil, err
	}
	if job.TranscriptionID == "" || job.AudioUploadURL == "" {
		return nil, errors.New("response is missing transcription_id or audio_upload_url")
	}

	return job, nil
}

func (c *Client) UploadAudio(ctx context.Context, uploadURL, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat audio file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, f)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", media.MIMEType(filePath))
	req.Header.Set("User-Agent", userAgent)

	return c.doJSON(req, nil)
}

func (c *Client) StartTranscription(ctx context.Context, id string) error {
	req, err := c.newAPIRequest(ctx, http.MethodPost, "/transcriptions/"+url.PathEscape(id)+"/transcribe", nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

func (c *Client) GetTranscription(ctx context.Context, id string) (*Result, error) {
	req, err := c.newAPIRequest(ctx, http.MethodGet, "/transcriptions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	if err := c.doJSON(req, result); err != nil {
		return nil, err
	}
	if result.TranscriptionID == "" {
		result.TranscriptionID = id
	}
	return result, nil
}

// WaitForCompletion polls the job until it reaches a terminal status or
// ctx is done.
func (c *Client) WaitForCompletion(ctx context.Context, id string) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		result, err := c.GetTranscription(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("poll transcription status: %w", err)
		}

		c.logger.Debug("transcription status", zap.String("id", id), zap.String("status", string(result.Status)))
		if c.onStatus != nil {
			c.onStatus(result.Status)
		}

		switch {
		case result.Status == StatusCompleted:
			return result, nil
		case result.Status.Failed():
			return nil, fmt.Errorf("%w: %s", ErrJobFailed, strings.ToLower(string(result.Status)))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// FetchText downloads the finished transcript. The URL is pre-signed, so
// the API key is not sent along.
func (c *Client) FetchText(ctx context.Context, transcriptionPath string) (string, error) {
	if strings.TrimSpace(transcriptionPath) == "" {
		return "", errors.New("transcription_path is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transcriptionPath, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newAPIError(resp.StatusCode, body)
	}

	return string(body), nil
}

func (c *Client) newAPIRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type uploadWord struct {
	Word    string `json:"word"`
	Reading string `json:"reading"`
}

type uploadRequest struct {
	Filename           string       `json:"filename"`
	Language           string       `json:"language"`
	TranscriptionModel string       `json:"transcription_model"`
	Words              []uploadWord `json:"words"`
}

func newUploadRequest(filename string, opts Options) uploadRequest {
	req := uploadRequest{
		Filename:           filename,
		Language:           opts.Language,
		TranscriptionModel: "default",
		Words:              []uploadWord{},
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}
	if opts.Timestamp {
		req.TranscriptionModel = "timestamp"
	}
	if opts.SpeakerDiarization {
		req.Words = append(req.Words, uploadWord{Word: "[SPEAKER_DIARIZATION]", Reading: "ON"})
	}
	if opts.Punctuation {
		req.Words = append(req.Words, uploadWord{Word: "[AUTO_PUNCTUATION]", Reading: "ON"})
	}
	return req
}
