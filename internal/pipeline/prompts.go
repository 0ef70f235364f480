package pipeline

import (
	"fmt"
	"strings"

	"scenecast/internal/domain"
)

const storyboardSchema = `{"tone":string,"scene_count":number,"seeds":string[],"safety_level":string}`

const scriptSchema = `{"scenes":[{"index":number,"narration":string,"on_screen_text":string,"visual_brief":string,"mood":string,"duration_sec":number}],"style_guide":string,"image_prompts":string[],"tts_script":string,"platform":{"title":string,"description":string,"hashtags":string[]}}`

func buildStoryboardPrompt(job domain.Job) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are a storyboard planner for short narrated videos. Respond strictly with JSON matching this schema: %s. ", storyboardSchema)
	fmt.Fprintf(sb, "Plan a video about topic=%q for audience=%q, narrated in language '%s'. ", job.Topic, job.Audience, job.Language)
	if hint := strings.TrimSpace(job.Hint); hint != "" {
		fmt.Fprintf(sb, "Extra guidance from the requester: %q. ", hint)
	}
	fmt.Fprintf(sb, "Pick a scene_count between %d and %d that fits the topic, seeds as short idea fragments (one per scene), a single-word tone, and safety_level of 'standard' or 'strict'.", minScenes, maxScenes)
	return sb.String()
}

func buildScriptPrompt(job domain.Job, board domain.Storyboard) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "You are a scriptwriter for short narrated videos. Respond strictly with JSON matching this schema: %s. ", scriptSchema)
	fmt.Fprintf(sb, "Write exactly %d scenes about topic=%q for audience=%q in language '%s' with tone '%s'. ", board.SceneCount, job.Topic, job.Audience, job.Language, board.Tone)
	if len(board.Seeds) > 0 {
		fmt.Fprintf(sb, "Use these scene seeds in order: %s. ", strings.Join(board.Seeds, "; "))
	}
	sb.WriteString("Every scene must have non-empty narration of one to three sentences, a visual_brief describing what to draw, a one-word mood, and duration_sec between 3 and 15. ")
	sb.WriteString("style_guide describes one consistent visual style for all scenes. image_prompts holds one ready-to-use image prompt per scene, same order. tts_script is the full narration joined in order. platform holds a catchy title, a short description, and 3-6 hashtags.")
	return sb.String()
}

// augmentScriptPrompt hardens the script prompt after a structurally
// valid but unusable response (e.g. blank narrations).
func augmentScriptPrompt(base string) string {
	sb := &strings.Builder{}
	sb.WriteString(base)
	sb.WriteString(" IMPORTANT: the previous attempt was rejected because scenes were missing or had empty narration. ")
	sb.WriteString("Return at least one scene and make sure every narration field contains spoken text. Do not return placeholders or empty strings.")
	return sb.String()
}

func buildRepairPrompt(raw []byte, schema string) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "The following response was supposed to be JSON matching this schema: %s. ", schema)
	sb.WriteString("It failed to parse. Re-emit the same content as a single valid JSON object matching the schema exactly, with no commentary and no markdown fences.\n\n")
	sb.Write(raw)
	return sb.String()
}
