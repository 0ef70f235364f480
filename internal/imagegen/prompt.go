package imagegen

import (
	"fmt"
	"strings"

	"scenecast/internal/domain"
)

// BuildScenePrompt returns the prompt used to render a scene's artwork.
// An explicit image prompt on the scene wins; otherwise the prompt is
// composed from the scene's visual brief, mood and the job's style guide.
func BuildScenePrompt(scene domain.Scene, styleGuide string) string {
	if prompt := strings.TrimSpace(scene.ImagePrompt); prompt != "" {
		return prompt
	}
	parts := []string{}
	brief := strings.TrimSpace(scene.VisualBrief)
	narration := strings.TrimSpace(scene.Narration)
	switch {
	case brief != "":
		parts = append(parts, ensurePeriod(brief))
	case narration != "":
		parts = append(parts, fmt.Sprintf("Illustrate this moment: %s", ensurePeriod(narration)))
	default:
		parts = append(parts, fmt.Sprintf("Illustration for scene %d of a short narrated video.", scene.Index))
	}
	if mood := strings.TrimSpace(scene.Mood); mood != "" {
		parts = append(parts, "Mood: "+mood+".")
	}
	if style := strings.TrimSpace(styleGuide); style != "" {
		parts = append(parts, "Visual style: "+ensurePeriod(style))
	}
	if caption := strings.TrimSpace(scene.OnScreenText); caption != "" {
		parts = append(parts, fmt.Sprintf("Leave negative space for the caption %q.", caption))
	}
	parts = append(parts, "No embedded text, no watermarks, coherent composition, high detail.")
	return strings.Join(parts, " ")
}

func ensurePeriod(s string) string {
	if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
		return s
	}
	return s + "."
}
