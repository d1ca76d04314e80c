// Package media converts captured files and recordings into resolved
// attachments, and owns the voice-note recorder.
package media

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"convo/internal/model"
)

// Ingest resolves a captured file into a transportable attachment. The
// payload is copied into mediaDir under a fresh id so the original can move
// or vanish afterwards. Synchronous: message composition waits on it.
func Ingest(srcPath, mediaDir string) (model.Attachment, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	info, err := src.Stat()
	if err != nil {
		return model.Attachment{}, fmt.Errorf("stat source: %w", err)
	}

	id := uuid.New().String()
	ext := filepath.Ext(srcPath)
	refPath := filepath.Join(mediaDir, id+ext)

	if err := os.MkdirAll(mediaDir, 0700); err != nil {
		return model.Attachment{}, fmt.Errorf("media dir: %w", err)
	}
	dst, err := os.OpenFile(refPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return model.Attachment{}, fmt.Errorf("create payload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(refPath)
		return model.Attachment{}, fmt.Errorf("copy payload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return model.Attachment{}, fmt.Errorf("close payload: %w", err)
	}

	mimeType := detectMIME(srcPath)
	return model.Attachment{
		ID:       id,
		Filename: filepath.Base(srcPath),
		Size:     info.Size(),
		MIME:     mimeType,
		Ref:      refPath,
		Kind:     model.ClassifyMIME(mimeType),
	}, nil
}

// detectMIME resolves a MIME type from the file extension, falling back to
// content sniffing of the first bytes, then to a generic binary type.
func detectMIME(path string) string {
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer func() { _ = f.Close() }()
	head := make([]byte, 512)
	n, _ := f.Read(head)
	return http.DetectContentType(head[:n])
}
