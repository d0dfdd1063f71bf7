package orchestrator

import (
	"strings"

	"ai-grader/core/models"
)

// extensionKinds maps filename extensions to canonical content classes
var extensionKinds = map[string]models.ArtifactKind{
	"pdf":   models.KindPDF,
	"txt":   models.KindText,
	"md":    models.KindText,
	"rtf":   models.KindText,
	"doc":   models.KindText,
	"docx":  models.KindText,
	"ipynb": models.KindNotebook,
	"py":    models.KindCode,
	"go":    models.KindCode,
	"js":    models.KindCode,
	"ts":    models.KindCode,
	"java":  models.KindCode,
	"c":     models.KindCode,
	"cpp":   models.KindCode,
	"rs":    models.KindCode,
	"sql":   models.KindCode,
	"mp4":   models.KindVideo,
	"mov":   models.KindVideo,
	"avi":   models.KindVideo,
	"webm":  models.KindVideo,
	"mkv":   models.KindVideo,
	"png":   models.KindImage,
	"jpg":   models.KindImage,
	"jpeg":  models.KindImage,
	"gif":   models.KindImage,
	"svg":   models.KindImage,
}

// mimeKinds maps declared mime types to canonical content classes
var mimeKinds = map[string]models.ArtifactKind{
	"application/pdf":          models.KindPDF,
	"text/plain":               models.KindText,
	"text/markdown":            models.KindText,
	"application/x-ipynb+json": models.KindNotebook,
	"text/x-python":            models.KindCode,
	"text/javascript":          models.KindCode,
}

// NormalizeKind maps a raw artifact tag (filename extension or declared
// mime type) to the closed set of content classes the engine understands.
// Unrecognized tags become "other" rather than being dropped: every
// fetched artifact must reach the engine's input map.
func NormalizeKind(tag string) models.ArtifactKind {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.TrimPrefix(tag, ".")

	if strings.Contains(tag, "/") {
		if kind, ok := mimeKinds[tag]; ok {
			return kind
		}
		switch {
		case strings.HasPrefix(tag, "text/"):
			return models.KindText
		case strings.HasPrefix(tag, "video/"):
			return models.KindVideo
		case strings.HasPrefix(tag, "image/"):
			return models.KindImage
		}
		return models.KindOther
	}

	if kind, ok := extensionKinds[tag]; ok {
		return kind
	}
	return models.KindOther
}

// KindFromFilename normalizes the extension of an uploaded filename
func KindFromFilename(filename string) models.ArtifactKind {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return models.KindOther
	}
	return NormalizeKind(filename[idx+1:])
}
