package model

import "strings"

// Kind classifies an attachment once at ingestion. It is never re-derived
// from the MIME string afterwards.
type Kind string

const (
	KindImage    Kind = "image"
	KindAudio    Kind = "audio"
	KindDocument Kind = "document"
)

// ClassifyMIME maps a MIME type to an attachment kind by its class prefix.
func ClassifyMIME(mime string) Kind {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	default:
		return KindDocument
	}
}

// Attachment is a resolved, transportable media payload. Immutable after
// creation.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MIME     string `json:"mime"`
	Ref      string `json:"ref"` // resolvable payload reference (media dir path)
	Kind     Kind   `json:"kind"`
}

// IsImage reports whether the attachment is an image.
func (a *Attachment) IsImage() bool { return a.Kind == KindImage }

// IsAudio reports whether the attachment is an audio clip.
func (a *Attachment) IsAudio() bool { return a.Kind == KindAudio }
