// Package backup mirrors admitted messages to a newline-delimited JSON file
// used for disaster recovery. The file is never authoritative.
package backup

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"agentwatch/internal/models"

	"go.uber.org/zap"
)

// maxLineSize bounds a single backup line; long posts fit comfortably.
const maxLineSize = 4 << 20

// Writer appends messages to the backup file, one JSON object per line.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	logger *zap.Logger
}

// OpenWriter opens path for appending, creating it and its directory if needed.
func OpenWriter(path string, logger *zap.Logger) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create backup directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	logger.Info("Backup log opened", zap.String("path", path))
	return &Writer{file: file, enc: json.NewEncoder(file), logger: logger}, nil
}

// Append writes msg as one line.
func (w *Writer) Append(msg *models.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(msg); err != nil {
		return fmt.Errorf("failed to append message %s/%d to backup: %w", msg.Type, msg.ID, err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		w.logger.Warn("Failed to sync backup file", zap.Error(err))
	}
	return w.file.Close()
}

// Replay calls fn for every decodable line of the backup at path.
// Malformed lines are logged and skipped; an error from fn stops the replay.
func Replay(path string, logger *zap.Logger, fn func(*models.Message) error) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer file.Close()
	return ReplayReader(file, logger, fn)
}

// ReplayReader is Replay over an arbitrary stream.
func ReplayReader(r io.Reader, logger *zap.Logger, fn func(*models.Message) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var line, replayed int
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var msg models.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Skipping malformed backup line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if err := fn(&msg); err != nil {
			return replayed, err
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return replayed, fmt.Errorf("backup line %d exceeds %d bytes: %w", line+1, maxLineSize, err)
		}
		return replayed, err
	}
	return replayed, nil
}
