package domain

import "time"

// Storyboard is the stage-1 derived configuration: how the model should
// approach the topic before any script text exists.
type Storyboard struct {
	Tone        string   `json:"tone"`
	SceneCount  int      `json:"scene_count"`
	Seeds       []string `json:"seeds"`
	SafetyLevel string   `json:"safety_level"`
}

// ScriptScene is one scene of the stage-2 packaged script.
type ScriptScene struct {
	Index        int    `json:"index"`
	Narration    string `json:"narration"`
	OnScreenText string `json:"on_screen_text"`
	VisualBrief  string `json:"visual_brief"`
	Mood         string `json:"mood"`
	DurationSec  int    `json:"duration_sec"`
}

// PlatformMeta carries publish metadata packaged alongside the script.
type PlatformMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Hashtags    []string `json:"hashtags"`
}

// Script is the stage-2 result: the validated scene list plus style and
// publishing context.
type Script struct {
	Scenes       []ScriptScene `json:"scenes"`
	StyleGuide   string        `json:"style_guide"`
	ImagePrompts []string      `json:"image_prompts"`
	TTSScript    string        `json:"tts_script"`
	Platform     PlatformMeta  `json:"platform"`
}

// FinalPackage is the assembled output persisted when a job succeeds.
type FinalPackage struct {
	Storyboard  Storyboard `json:"storyboard"`
	Script      Script     `json:"script"`
	SceneCount  int        `json:"scene_count"`
	AudioDone   int        `json:"audio_done"`
	AudioFailed int        `json:"audio_failed"`
	Language    string     `json:"language"`
	GeneratedAt time.Time  `json:"generated_at"`
}
