package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cardanoScope/internal/model"
)

// JsonlSink writes normalized outputs to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// PutOutputBatch appends a batch of outputs as JSON lines. The batch is
// encoded before the file is touched so a marshal failure writes nothing.
func (s *JsonlSink) PutOutputBatch(ctx context.Context, outputs []model.NormalizedOutput) error {
	if len(outputs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lines := make([][]byte, 0, len(outputs))
	for _, output := range outputs {
		line, err := json.Marshal(output)
		if err != nil {
			return fmt.Errorf("marshal output %s#%d: %w", output.TxHash, output.OutputIndex, err)
		}
		lines = append(lines, line)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, line := range lines {
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

func (s *JsonlSink) Close() error { return nil }
