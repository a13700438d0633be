package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bansub/internal/logging"
)

const (
	// DefaultBaseURL is the DashScope API root.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	// DefaultModel is the transcription model identifier.
	DefaultModel = "fun-asr"

	taskStatusPending   = "PENDING"
	taskStatusRunning   = "RUNNING"
	taskStatusSucceeded = "SUCCEEDED"
	taskStatusFailed    = "FAILED"

	maxFetchRetries = 3
)

// Client submits asynchronous transcription tasks to DashScope and fetches
// their results. Submission and fetch are deliberately separate calls: the
// task id must be persisted between them so a crashed run never re-submits
// a billable job.
type Client struct {
	// BaseURL and HTTPClient are overridable for tests.
	BaseURL    string
	HTTPClient *http.Client
	// PollInterval is the wait between task status checks.
	PollInterval time.Duration
	// RetryDelay is the fixed wait between transport-error retries.
	RetryDelay time.Duration

	apiKey string
	model  string
	logger *logging.Logger
}

func NewClient(apiKey, model string, logger *logging.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DashScope API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		BaseURL:      DefaultBaseURL,
		HTTPClient:   &http.Client{Timeout: 2 * time.Minute},
		PollInterval: 5 * time.Second,
		RetryDelay:   time.Second,
		apiKey:       apiKey,
		model:        model,
		logger:       logger,
	}, nil
}

type submitRequest struct {
	Model      string           `json:"model"`
	Input      submitInput      `json:"input"`
	Parameters submitParameters `json:"parameters"`
}

type submitInput struct {
	FileURLs []string `json:"file_urls"`
}

type submitParameters struct {
	LanguageHints []string `json:"language_hints"`
}

type taskResponse struct {
	Output struct {
		TaskID     string `json:"task_id"`
		TaskStatus string `json:"task_status"`
		Message    string `json:"message"`
		Results    []struct {
			SubtaskStatus    string `json:"subtask_status"`
			TranscriptionURL string `json:"transcription_url"`
		} `json:"results"`
	} `json:"output"`
}

// SubmitTranscription enqueues a transcription task for a publicly
// reachable audio URL and returns the vendor task id.
func (c *Client) SubmitTranscription(ctx context.Context, fileURL string) (string, error) {
	c.logger.Infow("Submitting transcription task", "model", c.model, "file_url", fileURL)

	body, err := json.Marshal(submitRequest{
		Model:      c.model,
		Input:      submitInput{FileURLs: []string{fileURL}},
		Parameters: submitParameters{LanguageHints: []string{"ja"}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/services/audio/asr/transcription", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-DashScope-Async", "enable")

	var task taskResponse
	if err := c.doJSON(req, &task); err != nil {
		return "", fmt.Errorf("transcription submit failed: %w", err)
	}
	if task.Output.TaskID == "" {
		return "", fmt.Errorf("transcription submit returned no task id")
	}

	c.logger.Infow("Transcription task submitted", "task_id", task.Output.TaskID)
	return task.Output.TaskID, nil
}

// FetchTranscription polls the task until it finishes, then downloads and
// returns the raw transcript JSON. Transport errors while polling are
// retried a fixed number of times with a fixed delay before surfacing.
func (c *Client) FetchTranscription(ctx context.Context, taskID string) ([]byte, error) {
	c.logger.Infow("Fetching transcription result", "task_id", taskID)

	for {
		task, err := c.queryTask(ctx, taskID)
		if err != nil {
			return nil, err
		}

		switch task.Output.TaskStatus {
		case taskStatusPending, taskStatusRunning:
			c.logger.Debugw("Transcription still in progress",
				"task_id", taskID, "status", task.Output.TaskStatus)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.PollInterval):
			}

		case taskStatusSucceeded:
			if len(task.Output.Results) == 0 {
				return nil, fmt.Errorf("transcription task %s succeeded with no results", taskID)
			}
			result := task.Output.Results[0]
			if result.SubtaskStatus != taskStatusSucceeded {
				return nil, fmt.Errorf("transcription subtask failed with status %s", result.SubtaskStatus)
			}
			return c.download(ctx, result.TranscriptionURL)

		case taskStatusFailed:
			return nil, fmt.Errorf("transcription task %s failed: %s", taskID, task.Output.Message)

		default:
			return nil, fmt.Errorf("transcription task %s in unknown status %q", taskID, task.Output.TaskStatus)
		}
	}
}

func (c *Client) queryTask(ctx context.Context, taskID string) (*taskResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxFetchRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warnw("Task query failed, retrying",
				"task_id", taskID,
				"attempt", attempt+1,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.RetryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.BaseURL+"/tasks/"+taskID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		var task taskResponse
		if err := c.doJSON(req, &task); err != nil {
			lastErr = err
			continue
		}
		return &task, nil
	}
	return nil, fmt.Errorf("task query failed after %d attempts: %w", maxFetchRetries, lastErr)
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("transcription result has no download URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcript download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript download failed: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("transcript download failed: %w", err)
	}
	return data, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s: %s", resp.Status, truncate(body, 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func truncate(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
