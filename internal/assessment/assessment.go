/*
Package assessment turns one uploaded photo, video or PDF plus optional symptom
notes into a structured, risk-scored and explicitly non-diagnostic Assessment.
*/
package assessment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

/* =================================================================================
								ENUMERATIONS
=================================================================================*/

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskUrgent RiskLevel = "urgent"
)

func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskUrgent:
		return true
	}
	return false
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

const (
	DefaultDisclaimer = "This is AI-generated health information for educational purposes only. " +
		"It is not a diagnosis and does not replace a consultation with a qualified healthcare professional."
	DefaultFollowUp = "If symptoms persist, worsen, or you are unsure, arrange a visit with a healthcare professional."
)

var defaultStarters = []string{
	"What could be causing this?",
	"When should I see a doctor about this?",
	"What can I safely do at home in the meantime?",
}

/* =================================================================================
								DATA MODEL
=================================================================================*/

// Assessment is the decoded, defaulted result for one submitted case.
// Treat it as immutable once Normalize has run.
type Assessment struct {
	RiskLevel              RiskLevel                 `json:"risk_level"`
	RiskReasoning          string                    `json:"risk_reasoning"`
	VisualConfidenceScore  float64                   `json:"visual_confidence_score"`
	SymptomSeverity        Severity                  `json:"symptom_severity"`
	VisualFindingsSummary  string                    `json:"visual_findings_summary"`
	ImageRegions           []ImageRegion             `json:"image_regions"`
	SymptomSummary         string                    `json:"symptom_summary"`
	PossibleFactors        []string                  `json:"possible_factors"`
	RecommendedActions     []string                  `json:"recommended_actions"`
	UrgentSignsToWatch     []string                  `json:"urgent_signs_to_watch"`
	DoList                 []string                  `json:"do_list"`
	AvoidList              []string                  `json:"avoid_list"`
	DoctorQuestions        []string                  `json:"doctor_questions"`
	FollowUpRecommendation string                    `json:"follow_up_recommendation"`
	DoctorReport           DoctorReport              `json:"doctor_report"`
	LifestyleFactors       EstimatedLifestyleFactors `json:"estimated_lifestyle_factors"`
	DeepReasoning          string                    `json:"deep_reasoning"`
	UserFriendlySummary    string                    `json:"user_friendly_summary"`
	Disclaimer             string                    `json:"disclaimer"`
}

// ImageRegion points at one area of the submitted media.
type ImageRegion struct {
	Area    string `json:"area"`
	BBox    BBox   `json:"bbox,omitempty"`
	Finding string `json:"finding"`
}

// BBox is (ymin, xmin, ymax, xmax) in normalized [0,1] coordinates.
type BBox []float64

// UnmarshalJSON never fails: anything that is not an array of numbers
// decodes to a nil box so one bad region cannot sink the whole assessment.
func (b *BBox) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		*b = nil
		return nil
	}
	out := make(BBox, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok {
			*b = nil
			return nil
		}
		out = append(out, f)
	}
	*b = out
	return nil
}

// Valid reports whether the box has exactly four entries, each within [0,1].
func (b BBox) Valid() bool {
	if len(b) != 4 {
		return false
	}
	for _, v := range b {
		if v < 0 || v > 1 {
			return false
		}
	}
	return true
}

type DoctorReport struct {
	Title              string    `json:"title"`
	VisualDescription  string    `json:"visual_description"`
	SymptomNotes       string    `json:"symptom_notes"`
	RiskLevel          RiskLevel `json:"risk_level"`
	SuggestedQuestions []string  `json:"suggested_questions"`
}

type EstimatedLifestyleFactors struct {
	SleepQuality  string `json:"sleep_quality"`
	StressLevel   string `json:"stress_level"`
	Hydration     string `json:"hydration"`
	DietNote      string `json:"diet_note"`
	ActivityLevel string `json:"activity_level"`
}

// Empty reports whether the model estimated nothing at all.
func (l EstimatedLifestyleFactors) Empty() bool {
	return l == EstimatedLifestyleFactors{}
}

/* =================================================================================
							DECODE / NORMALIZE / ENCODE
=================================================================================*/

// Decode parses model text into a normalized Assessment.
func Decode(text string) (*Assessment, error) {
	var a Assessment
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&a); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after assessment object")
	}
	a.Normalize()
	return &a, nil
}

// Normalize applies every per-field default exactly once. It is idempotent.
func (a *Assessment) Normalize() {
	if !a.RiskLevel.Valid() {
		a.RiskLevel = RiskLevel(strings.ToLower(strings.TrimSpace(string(a.RiskLevel))))
		if !a.RiskLevel.Valid() {
			a.RiskLevel = RiskMedium
		}
	}
	if !a.SymptomSeverity.Valid() {
		a.SymptomSeverity = Severity(strings.ToLower(strings.TrimSpace(string(a.SymptomSeverity))))
		if !a.SymptomSeverity.Valid() {
			a.SymptomSeverity = SeverityModerate
		}
	}

	switch {
	case a.VisualConfidenceScore < 0:
		a.VisualConfidenceScore = 0
	case a.VisualConfidenceScore > 1:
		a.VisualConfidenceScore = 1
	}

	if a.ImageRegions == nil {
		a.ImageRegions = []ImageRegion{}
	}
	for i := range a.ImageRegions {
		if !a.ImageRegions[i].BBox.Valid() {
			a.ImageRegions[i].BBox = nil
		}
	}

	for _, list := range []*[]string{
		&a.PossibleFactors, &a.RecommendedActions, &a.UrgentSignsToWatch,
		&a.DoList, &a.AvoidList, &a.DoctorQuestions, &a.DoctorReport.SuggestedQuestions,
	} {
		if *list == nil {
			*list = []string{}
		}
	}

	if !a.DoctorReport.RiskLevel.Valid() {
		a.DoctorReport.RiskLevel = a.RiskLevel
	}
	if strings.TrimSpace(a.FollowUpRecommendation) == "" {
		a.FollowUpRecommendation = DefaultFollowUp
	}
	if strings.TrimSpace(a.Disclaimer) == "" {
		a.Disclaimer = DefaultDisclaimer
	}
}

// Canonical is the text form used to replay the assessment as a model turn and
// to display it. Decode(Canonical()) yields an equal Assessment.
func (a *Assessment) Canonical() string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	// Encoding a struct of strings, floats and slices cannot fail.
	_ = enc.Encode(a)
	return strings.TrimRight(buf.String(), "\n")
}

/* =================================================================================
								DISPLAY HELPERS
=================================================================================*/

// Regions returns the regions whose bounding box can be drawn.
func (a *Assessment) Regions() []ImageRegion {
	out := make([]ImageRegion, 0, len(a.ImageRegions))
	for _, r := range a.ImageRegions {
		if r.BBox.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// ConversationStarters returns up to n follow-up questions: the doctor report's
// suggestions first, then the doctor questions, then built-in defaults.
func (a *Assessment) ConversationStarters(n int) []string {
	if n <= 0 {
		return []string{}
	}
	for _, src := range [][]string{a.DoctorReport.SuggestedQuestions, a.DoctorQuestions, defaultStarters} {
		var out []string
		for _, q := range src {
			if q = strings.TrimSpace(q); q != "" {
				out = append(out, q)
			}
			if len(out) == n {
				break
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{}
}

// ContextSummary is a short description of the case used by the care finder.
func (a *Assessment) ContextSummary() string {
	parts := []string{a.VisualFindingsSummary, a.SymptomSummary}
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(a.UserFriendlySummary)
	}
	return strings.Join(kept, " ")
}

// RiskBadge is the label shown next to a risk level.
func RiskBadge(r RiskLevel) string {
	switch r {
	case RiskLow:
		return "Low risk"
	case RiskUrgent:
		return "Urgent: seek care promptly"
	default:
		return "Medium risk"
	}
}
