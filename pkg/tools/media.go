package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/attache/attache/pkg/fault"
)

// Media tools forward to fixed-port side services (image and video
// generators, TTS) and return a path or URL.

// MediaClient wraps the HTTP plumbing shared by the media tools.
type MediaClient struct {
	imageURL string
	videoURL string
	ttsURL   string
	http     *http.Client
	ws       *Workspace
}

// NewMediaClient builds a client against the configured service bases.
func NewMediaClient(imageURL, videoURL, ttsURL string, ws *Workspace) *MediaClient {
	return &MediaClient{
		imageURL: strings.TrimRight(imageURL, "/"),
		videoURL: strings.TrimRight(videoURL, "/"),
		ttsURL:   strings.TrimRight(ttsURL, "/"),
		http:     &http.Client{Timeout: 120 * time.Second},
		ws:       ws,
	}
}

// postJSON posts a body and decodes the JSON reply into out.
func (c *MediaClient) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fault.ToolFailed("encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fault.ToolFailed("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fault.ToolFailed("call %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fault.ToolFailed("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fault.ToolFailed("decode reply from %s: %v", endpoint, err)
	}
	return nil
}

// GenerateImageTool submits a workflow to the image service.
type GenerateImageTool struct{ client *MediaClient }

func NewGenerateImageTool(c *MediaClient) *GenerateImageTool { return &GenerateImageTool{client: c} }

func (t *GenerateImageTool) Name() string    { return "generate_image" }
func (t *GenerateImageTool) Dangerous() bool { return true }

func (t *GenerateImageTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "prompt")
	return err
}

func (t *GenerateImageTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	prompt, err := stringParam(params, "prompt")
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"prompt": prompt,
		"width":  optionalIntParam(params, "w", 1024),
		"height": optionalIntParam(params, "h", 1024),
		"steps":  optionalIntParam(params, "steps", 20),
	}
	if seed, ok := toInt(params["seed"]); ok {
		body["seed"] = seed
	}

	var reply struct {
		PromptID string `json:"prompt_id"`
	}
	if err := t.client.postJSON(ctx, t.client.imageURL+"/prompt", body, &reply); err != nil {
		return nil, err
	}
	if reply.PromptID == "" {
		return nil, fault.ToolFailed("image service returned no prompt_id")
	}
	return map[string]any{
		"prompt_id":  reply.PromptID,
		"output_dir": filepath.Join("generated", "images"),
	}, nil
}

// GenerateVideoTool submits a prompt to the video service.
type GenerateVideoTool struct{ client *MediaClient }

func NewGenerateVideoTool(c *MediaClient) *GenerateVideoTool { return &GenerateVideoTool{client: c} }

func (t *GenerateVideoTool) Name() string    { return "generate_video" }
func (t *GenerateVideoTool) Dangerous() bool { return true }

func (t *GenerateVideoTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "prompt")
	return err
}

func (t *GenerateVideoTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	prompt, err := stringParam(params, "prompt")
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"prompt":     prompt,
		"num_frames": optionalIntParam(params, "num_frames", 49),
		"width":      optionalIntParam(params, "w", 768),
		"height":     optionalIntParam(params, "h", 512),
		"steps":      optionalIntParam(params, "steps", 30),
		"guidance":   optionalFloatParam(params, "guidance", 6.0),
	}
	if seed, ok := toInt(params["seed"]); ok {
		body["seed"] = seed
	}

	var reply struct {
		Filename    string `json:"filename"`
		DownloadURL string `json:"download_url"`
		Seed        int64  `json:"seed"`
	}
	if err := t.client.postJSON(ctx, t.client.videoURL+"/generate", body, &reply); err != nil {
		return nil, err
	}
	return map[string]any{
		"filename":     reply.Filename,
		"download_url": reply.DownloadURL,
		"seed":         reply.Seed,
	}, nil
}

// SpeakTool synthesizes speech and stores the audio under the workspace.
type SpeakTool struct {
	client *MediaClient
	now    func() time.Time
}

func NewSpeakTool(c *MediaClient) *SpeakTool { return &SpeakTool{client: c, now: time.Now} }

func (t *SpeakTool) Name() string    { return "speak" }
func (t *SpeakTool) Dangerous() bool { return true }

func (t *SpeakTool) Validate(params map[string]any) error {
	_, err := stringParam(params, "text")
	return err
}

func (t *SpeakTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	text, err := stringParam(params, "text")
	if err != nil {
		return nil, err
	}

	query := url.Values{"text": {text}}
	if voice := optionalStringParam(params, "voice", ""); voice != "" {
		query.Set("voice", voice)
	}
	endpoint := t.client.ttsURL + "/tts?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fault.ToolFailed("build tts request: %v", err)
	}
	resp, err := t.client.http.Do(req)
	if err != nil {
		return nil, fault.ToolFailed("call tts service: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fault.ToolFailed("tts service returned %d", resp.StatusCode)
	}

	ext := ".mp3"
	if strings.Contains(resp.Header.Get("Content-Type"), "wav") {
		ext = ".wav"
	}
	rel := filepath.Join("generated", "audio",
		fmt.Sprintf("speech_%s%s", t.now().UTC().Format("2006-01-02T15-04-05Z"), ext))
	abs, err := t.client.ws.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fault.ToolFailed("create audio directory: %v", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return nil, fault.ToolFailed("create %s: %v", rel, err)
	}
	defer f.Close()

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		return nil, fault.ToolFailed("save audio: %v", err)
	}
	return map[string]any{"path": rel, "bytes": written}, nil
}
