package assessment

import gs "CareLens/internal/geminiservice"

// requiredFields must always be present in a model response.
var requiredFields = []string{
	"risk_level",
	"risk_reasoning",
	"visual_confidence_score",
	"symptom_severity",
	"visual_findings_summary",
	"symptom_summary",
	"possible_factors",
	"do_list",
	"avoid_list",
	"urgent_signs_to_watch",
	"deep_reasoning",
	"user_friendly_summary",
	"doctor_report",
	"disclaimer",
}

/*
ResponseSchema describes the exact JSON structure the model MUST output.
It is sent as responseSchema so the backend enforces it during generation.
*/
var ResponseSchema = gs.Object("Structured, non-diagnostic health information assessment.", map[string]*gs.Schema{
	"risk_level": gs.Enum(
		"Overall triage level. 'urgent' only when the evidence suggests prompt in-person care.",
		string(RiskLow), string(RiskMedium), string(RiskUrgent),
	),
	"risk_reasoning": gs.String("One or two sentences explaining the risk level."),
	"visual_confidence_score": gs.Number(
		"0.0 to 1.0. How clearly the media shows the concern. Lower it for blur, poor lighting or partial views.",
		0, 1,
	),
	"symptom_severity": gs.Enum(
		"Severity implied by the visual and written evidence.",
		string(SeverityMild), string(SeverityModerate), string(SeveritySevere),
	),
	"visual_findings_summary": gs.String("What is visible in the media, in neutral descriptive language."),
	"image_regions": {
		Type:        gs.TypeArray,
		Description: "Notable areas in the image. Leave empty for PDFs or when nothing can be localized.",
		Items: gs.Object("", map[string]*gs.Schema{
			"area": gs.String("Short name of the area, e.g. 'left forearm'."),
			"bbox": {
				Type:        gs.TypeArray,
				Description: "Bounding box [ymin, xmin, ymax, xmax], each normalized to 0..1.",
				Items:       &gs.Schema{Type: gs.TypeNumber},
				MinItems:    intPtr(4),
				MaxItems:    intPtr(4),
			},
			"finding": gs.String("What was observed in this area."),
		}, "area", "finding"),
	},
	"symptom_summary":       gs.String("Summary of the user's written symptoms, or of what can be inferred when none were given."),
	"possible_factors":      gs.StringList("Plausible contributing factors. Never phrased as a diagnosis."),
	"recommended_actions":   gs.StringList("Practical next steps."),
	"urgent_signs_to_watch": gs.StringList("Warning signs that should prompt urgent care."),
	"do_list":               gs.StringList("Things that are generally safe and helpful to do."),
	"avoid_list":            gs.StringList("Things to avoid."),
	"doctor_questions":      gs.StringList("Questions the user may want to ask a clinician."),
	"follow_up_recommendation": gs.String(
		"When to follow up, e.g. 'within 48 hours if no improvement'.",
	),
	"doctor_report": gs.Object("Concise report the user can show a clinician.", map[string]*gs.Schema{
		"title":               gs.String("Short title for the report."),
		"visual_description":  gs.String("Clinical-style description of the visual findings."),
		"symptom_notes":       gs.String("Patient-reported symptoms."),
		"risk_level":          gs.Enum("Echo of the overall risk level.", string(RiskLow), string(RiskMedium), string(RiskUrgent)),
		"suggested_questions": gs.StringList("Up to five questions for the clinician."),
	}),
	"estimated_lifestyle_factors": gs.Object("Cautious estimates only when the evidence supports them.", map[string]*gs.Schema{
		"sleep_quality":  gs.String(""),
		"stress_level":   gs.String(""),
		"hydration":      gs.String(""),
		"diet_note":      gs.String(""),
		"activity_level": gs.String(""),
	}),
	"deep_reasoning":        gs.String("Detailed reasoning written for a medically literate reader (expert mode)."),
	"user_friendly_summary": gs.String("Plain-language explanation for a layperson (simple mode)."),
	"disclaimer":            gs.String("States that this is educational information and not a diagnosis."),
}, requiredFields...)

func intPtr(i int) *int { return &i }
