package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"dromadaire/internal/model"
)

// PoolRecord is one JSONL line describing a pool.
type PoolRecord struct {
	model.LiquidityPool
	Label string `json:"label"`
	TVL   string `json:"tvl"`
	Fee   string `json:"fee"`
}

// NewPoolRecord attaches the display columns to pool.
func NewPoolRecord(pool model.LiquidityPool) PoolRecord {
	return PoolRecord{
		LiquidityPool: pool,
		Label:         pool.Label(),
		TVL:           pool.TVLLabel(),
		Fee:           pool.FeeLabel(),
	}
}

// WritePools writes pools to w as JSON lines.
func WritePools(w io.Writer, pools []model.LiquidityPool) error {
	writer := bufio.NewWriter(w)
	for _, pool := range pools {
		line, err := json.Marshal(NewPoolRecord(pool))
		if err != nil {
			return fmt.Errorf("marshal pool %s: %w", pool.Address, err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write pool: %w", err)
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

// JsonlSink appends pool snapshots to a JSONL file.
type JsonlSink struct {
	path string
	mu   sync.Mutex
}

var _ PoolSink = (*JsonlSink)(nil)

func NewJsonlSink(path string) *JsonlSink {
	return &JsonlSink{path: path}
}

// PutPools appends pools as JSON lines.
func (s *JsonlSink) PutPools(ctx context.Context, pools []model.LiquidityPool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pools) == 0 {
		return nil
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

	return WritePools(file, pools)
}
