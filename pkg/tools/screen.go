package tools

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/kbinani/screenshot"

	"github.com/attache/attache/pkg/fault"
)

// screenshotDir is the workspace subdirectory capture files land in.
const screenshotDir = "screenshots"

// captureFunc is swapped in tests; display capture needs real hardware.
type captureFunc func(bounds image.Rectangle) (*image.RGBA, error)

// ScreenshotTool captures the primary display to a PNG under the workspace.
type ScreenshotTool struct {
	ws      *Workspace
	capture captureFunc
	now     func() time.Time
}

func NewScreenshotTool(ws *Workspace) *ScreenshotTool {
	return &ScreenshotTool{ws: ws, capture: screenshot.CaptureRect, now: time.Now}
}

func (t *ScreenshotTool) Name() string                         { return "screenshot" }
func (t *ScreenshotTool) Dangerous() bool                      { return false }
func (t *ScreenshotTool) Validate(params map[string]any) error { return nil }

func (t *ScreenshotTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, fault.ToolFailed("no active display")
	}
	bounds := screenshot.GetDisplayBounds(0)
	return saveCapture(t.ws, t.capture, t.now(), bounds,
		optionalStringParam(params, "save_path", ""))
}

// CaptureRegionTool captures a rectangle of the primary display.
type CaptureRegionTool struct {
	ws      *Workspace
	capture captureFunc
	now     func() time.Time
}

func NewCaptureRegionTool(ws *Workspace) *CaptureRegionTool {
	return &CaptureRegionTool{ws: ws, capture: screenshot.CaptureRect, now: time.Now}
}

func (t *CaptureRegionTool) Name() string    { return "capture_region" }
func (t *CaptureRegionTool) Dangerous() bool { return false }

func (t *CaptureRegionTool) Validate(params map[string]any) error {
	for _, key := range []string{"x", "y", "w", "h"} {
		if _, err := intParam(params, key); err != nil {
			return err
		}
	}
	w := optionalIntParam(params, "w", 0)
	h := optionalIntParam(params, "h", 0)
	if w <= 0 || h <= 0 {
		return fault.BadInput("region width and height must be positive")
	}
	return nil
}

func (t *CaptureRegionTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	x := optionalIntParam(params, "x", 0)
	y := optionalIntParam(params, "y", 0)
	w := optionalIntParam(params, "w", 0)
	h := optionalIntParam(params, "h", 0)
	bounds := image.Rect(x, y, x+w, y+h)
	return saveCapture(t.ws, t.capture, t.now(), bounds,
		optionalStringParam(params, "save_path", ""))
}

// saveCapture grabs the bounds and writes the PNG. An empty savePath lands in
// screenshots/screenshot_<timestamp>.png.
func saveCapture(ws *Workspace, capture captureFunc, now time.Time, bounds image.Rectangle, savePath string) (any, error) {
	img, err := capture(bounds)
	if err != nil {
		return nil, fault.ToolFailed("capture screen: %v", err)
	}

	if savePath == "" {
		savePath = filepath.Join(screenshotDir,
			"screenshot_"+now.UTC().Format("2006-01-02T15-04-05Z")+".png")
	}
	abs, err := ws.Resolve(savePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fault.ToolFailed("create screenshot directory: %v", err)
	}

	f, err := os.Create(abs)
	if err != nil {
		return nil, fault.ToolFailed("create %s: %v", savePath, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return nil, fault.ToolFailed("encode png: %v", err)
	}
	return map[string]any{
		"path":   savePath,
		"width":  bounds.Dx(),
		"height": bounds.Dy(),
	}, nil
}
