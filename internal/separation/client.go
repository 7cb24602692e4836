package separation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/humanmixer/api/internal/audio"
)

// Client implements Separator against the Python separation microservice.
// The service loads the demucs model once and exposes a single blocking
// /separate endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a separation service client.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Minute, // separation of a full song is slow on CPU
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

type separateResponse struct {
	Stems      map[string]string `json:"stems"`
	SampleRate int               `json:"sample_rate"`
}

// Separate uploads the prepared stereo waveform and downloads the four
// stems the service produced.
func (c *Client) Separate(ctx context.Context, input *audio.Waveform) (*audio.StemSet, error) {
	tmp, err := os.CreateTemp("", "separation-input-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp input: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := audio.EncodeFile(tmpPath, input); err != nil {
		return nil, fmt.Errorf("encode separation input: %w", err)
	}

	resp, err := c.postInput(ctx, tmpPath)
	if err != nil {
		return nil, err
	}

	set := &audio.StemSet{}
	for _, name := range []string{"vocals", "drums", "bass", "other"} {
		url, ok := resp.Stems[name]
		if !ok {
			return nil, fmt.Errorf("separation service returned no %s stem", name)
		}
		stem, err := c.fetchStem(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch %s stem: %w", name, err)
		}
		switch name {
		case "vocals":
			set.Vocals = stem
		case "drums":
			set.Drums = stem
		case "bass":
			set.Bass = stem
		case "other":
			set.Other = stem
		}
	}
	return set, nil
}

func (c *Client) postInput(ctx context.Context, path string) (*separateResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open separation input: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("copy separation input: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/separate", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("separation service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("separation service returned %d: %s", resp.StatusCode, string(data))
	}

	var out separateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode separation response: %w", err)
	}
	return &out, nil
}

func (c *Client) fetchStem(ctx context.Context, url string) (*audio.Waveform, error) {
	if strings.HasPrefix(url, "/") {
		url = c.baseURL + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stem body: %w", err)
	}
	return audio.Decode(bytes.NewReader(data))
}
