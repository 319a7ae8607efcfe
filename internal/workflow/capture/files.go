package capture

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"kycbuster/internal/evidence/models"
)

// ErrDeviceNotStarted is returned when a device is used before Start.
var ErrDeviceNotStarted = errors.New("device not started")

// DirCamera replays one image per pose from a directory. Files are matched by
// pose name with any extension, e.g. "blink.jpg".
type DirCamera struct {
	dir string

	mu      sync.Mutex
	started bool
	next    int
}

func NewDirCamera(dir string) *DirCamera {
	return &DirCamera{dir: dir}
}

func (c *DirCamera) Start(context.Context) error {
	for _, p := range models.Poses {
		if _, err := c.find(p); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = true
	c.next = 0
	return nil
}

func (c *DirCamera) Capture(context.Context) (models.Media, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return models.Media{}, ErrDeviceNotStarted
	}
	if c.next >= models.FrameCount {
		return models.Media{}, fmt.Errorf("camera: all %d poses already captured", models.FrameCount)
	}
	path, err := c.find(models.Poses[c.next])
	if err != nil {
		return models.Media{}, err
	}
	media, err := ReadMedia(path)
	if err != nil {
		return models.Media{}, err
	}
	c.next++
	return media, nil
}

func (c *DirCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	return nil
}

// Released reports whether the camera is currently stopped.
func (c *DirCamera) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.started
}

func (c *DirCamera) find(p models.Pose) (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, string(p)+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("camera: no image for pose %q in %s", p, c.dir)
	}
	return matches[0], nil
}

// FileMicrophone returns a prerecorded audio file as the recording.
type FileMicrophone struct {
	path    string
	started bool
}

func NewFileMicrophone(path string) *FileMicrophone {
	return &FileMicrophone{path: path}
}

func (m *FileMicrophone) Start(context.Context) error {
	if _, err := os.Stat(m.path); err != nil {
		return fmt.Errorf("microphone: %w", err)
	}
	m.started = true
	return nil
}

func (m *FileMicrophone) Stop() (models.Media, error) {
	if !m.started {
		return models.Media{}, ErrDeviceNotStarted
	}
	m.started = false
	return ReadMedia(m.path)
}

// ReadMedia loads a file and sniffs its MIME type.
func ReadMedia(path string) (models.Media, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Media{}, err
	}
	return models.Media{MIMEType: DetectMIME(path, data), Data: data}, nil
}

// DetectMIME prefers content sniffing and falls back to the file extension
// for containers the sniffer does not know.
func DetectMIME(path string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if sniffed != "application/octet-stream" {
		return sniffed
	}
	switch filepath.Ext(path) {
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mp4":
		return "video/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return sniffed
}
