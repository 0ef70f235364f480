package storage

import (
	"fmt"
	"strings"
)

// SceneImageKey is the canonical location of a scene's rendered artwork.
func SceneImageKey(jobID string, sceneIndex int, mime string) string {
	return fmt.Sprintf("jobs/%s/scenes/%02d/image%s", jobID, sceneIndex, imageExt(mime))
}

// SceneAudioKey is the canonical location of a scene's narration clip.
func SceneAudioKey(jobID string, sceneIndex int, mime string) string {
	return fmt.Sprintf("jobs/%s/scenes/%02d/narration%s", jobID, sceneIndex, audioExt(mime))
}

func imageExt(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func audioExt(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".wav"
	}
}
