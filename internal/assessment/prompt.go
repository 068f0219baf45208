package assessment

import (
	"fmt"
	"strings"
)

// Modality is the kind of media a case was submitted with.
type Modality string

const (
	ModalityImage Modality = "Image"
	ModalityVideo Modality = "Video"
	ModalityPDF   Modality = "Medical Report (PDF)"
)

// ClassifyMedia maps a MIME type to a Modality. Unknown types are treated as images.
func ClassifyMedia(mimeType string) Modality {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "video/"):
		return ModalityVideo
	case mt == "application/pdf":
		return ModalityPDF
	default:
		return ModalityImage
	}
}

/* =================================================================================
						PROMPT ENGINEERING & GUARDRAILS
=================================================================================*/

// SystemPrompt sets the persona and safety rules for the structured assessment.
const SystemPrompt = `You are a careful health-information assistant. You help people understand what a photo, video or medical document might show, and you help them decide how urgently to seek care.

SAFETY RULES (CRITICAL):
- You are NOT a doctor and you do NOT diagnose. Describe possibilities, never conclusions.
- Use "may", "could" and "is consistent with". Never write "you have".
- When any sign suggests a medical emergency, set risk_level to "urgent" and say so plainly.
- Never recommend prescription medication or dosages.
- If the media is not health related, say so in every summary field, set risk_level to "low" and visual_confidence_score to 0.

RESPONSE FORMAT:
- Return ONLY the JSON structure defined in the schema.
- Keep list items to one short sentence each.
- Always fill the disclaimer.`

const visualOnlyTemplate = `Analyze this %s.
The user did not describe any symptoms, so base the assessment on the visual evidence only.
Describe what is visible, localize notable areas where possible, estimate how urgent the concern is, and explain it twice: once for a medically literate reader and once in plain language.`

const multimodalTemplate = `Perform a deep multimodal analysis of this %s together with the user's description.
User description: "%s"
Cross-reference the visual evidence with the described symptoms. Point out where they agree, where they conflict, and what the media cannot show. Localize notable areas where possible, estimate how urgent the concern is, and explain it twice: once for a medically literate reader and once in plain language.`

// BuildInstruction returns the task instruction for one case. It is a pure
// function of its arguments.
func BuildInstruction(mimeType, description string) string {
	modality := ClassifyMedia(mimeType)
	note := strings.TrimSpace(description)
	if note == "" {
		return fmt.Sprintf(visualOnlyTemplate, modality)
	}
	return fmt.Sprintf(multimodalTemplate, modality, note)
}
