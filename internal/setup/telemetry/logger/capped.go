// Package logger provides log file writers.
package logger

import (
	"bytes"
	"fmt"
	"os"
	"sync"
)

// CappedFile is a log file that keeps roughly its last maxLines lines.
// Once the file holds twice the limit it is rewritten with only the newest
// maxLines lines, so trimming cost is amortized across many writes.
type CappedFile struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	maxLines int
	lines    int
}

// OpenCappedFile opens or creates path for appending. A maxLines of zero or
// less disables trimming.
func OpenCappedFile(path string, maxLines int) (*CappedFile, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	existing, err := os.ReadFile(path)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("cannot read log file %s: %w", path, err)
	}

	return &CappedFile{
		file:     file,
		path:     path,
		maxLines: maxLines,
		lines:    bytes.Count(existing, []byte{'\n'}),
	}, nil
}

// Write implements io.Writer.
func (c *CappedFile) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.file.Write(p)
	if err != nil {
		return n, err
	}

	c.lines += bytes.Count(p[:n], []byte{'\n'})

	if c.maxLines > 0 && c.lines >= c.maxLines*2 {
		if err := c.trim(); err != nil {
			return n, fmt.Errorf("failed to trim log file: %w", err)
		}
	}

	return n, nil
}

// Sync flushes the file to disk.
func (c *CappedFile) Sync() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Sync()
}

// Close closes the underlying file.
func (c *CappedFile) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.file.Close()
}

// trim rewrites the file with its newest maxLines lines.
func (c *CappedFile) trim() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return err
	}

	tail := lastLines(data, c.maxLines)

	c.file.Close()

	if err := os.WriteFile(c.path, tail, 0o644); err != nil {
		return err
	}

	file, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	c.file = file
	c.lines = bytes.Count(tail, []byte{'\n'})

	return nil
}

// lastLines returns the suffix of data holding its last n complete lines.
func lastLines(data []byte, n int) []byte {
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}

	seen := 0
	for i := end - 1; i >= 0; i-- {
		if data[i] == '\n' {
			seen++
			if seen == n {
				return data[i+1:]
			}
		}
	}

	return data
}
