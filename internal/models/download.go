// Package models downloads the whisper and llama weight files from
// HuggingFace into a local models directory.
package models

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Known weights, keyed by the short name accepted on the command line.
var catalog = map[string]struct {
	url      string
	filename string
	sizeMB   int
}{
	"whisper-base": {
		url:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.en.bin",
		filename: "ggml-base.en.bin",
		sizeMB:   142,
	},
	"whisper-small": {
		url:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin",
		filename: "ggml-small.bin",
		sizeMB:   466,
	},
	"whisper-medium": {
		url:      "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin",
		filename: "ggml-medium.bin",
		sizeMB:   1500,
	},
	"llama-2-7b-chat": {
		url:      "https://huggingface.co/TheBloke/Llama-2-7B-Chat-GGUF/resolve/main/llama-2-7b-chat.Q4_K_M.gguf",
		filename: "llama-2-7b-chat.Q4_K_M.gguf",
		sizeMB:   4081,
	},
}

// Names lists the downloadable model names.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	return out
}

// Describe returns a human-readable line for a catalog entry.
func Describe(name string) (string, bool) {
	entry, ok := catalog[name]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s (~%d MB)", entry.filename, entry.sizeMB), true
}

// Download fetches the named model into dir, skipping files that already
// exist. Progress is written to stdout.
func Download(name, dir string) (string, error) {
	entry, ok := catalog[name]
	if !ok {
		return "", fmt.Errorf("unknown model %q", name)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}
	destPath := filepath.Join(dir, entry.filename)

	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Printf("  %s already exists (%.0f MB)\n", destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	fmt.Printf("  Downloading %s\n", entry.url)
	fmt.Printf("  Destination: %s\n", destPath)

	resp, err := http.Get(entry.url) //nolint:gosec // URL is a compile-time constant
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	// Write to temp file first, then rename (atomic)
	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pr := &progressWriter{
		writer: f,
		total:  resp.ContentLength,
		label:  entry.filename,
	}

	written, err := io.Copy(pr, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}

	fmt.Printf("\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}

	return destPath, nil
}

// progressWriter wraps an io.Writer and prints download progress.
type progressWriter struct {
	writer  io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Printf("\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Printf("\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
