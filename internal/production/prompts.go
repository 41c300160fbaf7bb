package production

import (
	"fmt"
	"strings"

	model "opentry/internal/model/production"
)

// maxShotSeconds 单个镜头最长时长
const maxShotSeconds = 10

// KeyframePrompt 由视觉锚点和单幕规格拼出关键帧提示词
func KeyframePrompt(anchor model.VisualAnchor, act model.ActSpec, brand, businessType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cinematic commercial keyframe for %s", brand)
	if businessType != "" {
		fmt.Fprintf(&b, " (%s)", businessType)
	}
	fmt.Fprintf(&b, ". Act %d: %s - %s.\n\n", act.ActNumber, act.Title, act.NarrativeGoal)
	fmt.Fprintf(&b, "Subject: %s\n", anchor.TechnicalDescription)
	if len(anchor.KeyVisualElements) > 0 {
		fmt.Fprintf(&b, "Key elements: %s\n", strings.Join(anchor.KeyVisualElements, ", "))
	}
	if len(anchor.ColorPalette) > 0 {
		fmt.Fprintf(&b, "Color palette: %s\n", strings.Join(anchor.ColorPalette, ", "))
	}
	if len(anchor.MaterialTextures) > 0 {
		fmt.Fprintf(&b, "Materials: %s\n", strings.Join(anchor.MaterialTextures, ", "))
	}
	fmt.Fprintf(&b, "Lens: %s. Lighting: %s. Color science: %s.\n", act.CameraLens, act.Lighting, act.ColorScience)
	b.WriteString("Keep the product identical to the reference image. Photoreal, ultra-detailed, 16:9, no text.")
	return b.String()
}

// CinematicSpecs 关键帧的镜头参数摘要
func CinematicSpecs(act model.ActSpec) string {
	return fmt.Sprintf("%s | %s | %s", act.CameraLens, act.Lighting, act.ColorScience)
}

// MotionPrompt 单幕运动提示词
func MotionPrompt(act model.ActSpec, duration int) string {
	return fmt.Sprintf(`Cinematic commercial advertisement shot.

Scene: %s - %s

Camera Movement: %s

Apply smooth, professional camera motion. Maintain the exact visual identity from the keyframe.
The motion should feel like a high-budget Super Bowl commercial.
Professional color grading, cinematic depth of field, smooth motion blur.

Duration: %d seconds of elegant, purposeful movement.`, act.Title, act.NarrativeGoal, act.CameraMovement, duration)
}

// ShotDuration 镜头时长不超过 maxShotSeconds
func ShotDuration(act model.ActSpec) int {
	if act.Duration > maxShotSeconds {
		return maxShotSeconds
	}
	return act.Duration
}
