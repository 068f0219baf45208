package geo

import (
	"fmt"
	"strings"
	"unicode"

	"CareLens/internal/assessment"
)

const (
	MinPlaces = 10
	MaxPlaces = 15
)

// specialties maps words found in the case context to the clinician to prefer.
// A keyword matches whole words only; a trailing '*' marks a stem that also
// matches longer words ("pregnan*" matches "pregnancy").
var specialties = []struct {
	keywords   []string
	specialist string
}{
	{[]string{"skin", "rash", "mole", "acne", "eczema", "psoriasis", "hives", "lesion", "wart"}, "dermatologist"},
	{[]string{"eye", "vision", "eyelid", "conjunctiv*"}, "ophthalmologist"},
	{[]string{"tooth", "teeth", "gum", "dental", "jaw", "toothache"}, "dentist"},
	{[]string{"ear", "earache", "throat", "sinus", "nose", "tonsil*"}, "ENT specialist"},
	{[]string{"bone", "fracture", "joint", "sprain", "knee", "ankle", "back pain"}, "orthopedic clinic"},
	{[]string{"heart", "chest pain", "palpitation"}, "cardiologist"},
	{[]string{"pregnan*", "menstrua*", "vaginal"}, "OB/GYN"},
	{[]string{"child", "children", "baby", "infant", "toddler"}, "pediatrician"},
}

// SpecialtyFor returns the specialist implied by context, or "".
func SpecialtyFor(context string) string {
	words := strings.FieldsFunc(strings.ToLower(context), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, s := range specialties {
		for _, kw := range s.keywords {
			if containsPhrase(words, strings.Fields(kw)) {
				return s.specialist
			}
		}
	}
	return ""
}

// containsPhrase reports whether phrase occurs as consecutive words.
func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
	for i := 0; i+len(phrase) <= len(words); i++ {
		matched := true
		for j, kw := range phrase {
			if !wordMatches(words[i+j], kw) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

// wordMatches compares one word against a keyword. Plain keywords also accept
// the regular plural ("rashes", "eyes").
func wordMatches(word, kw string) bool {
	if stem, ok := strings.CutSuffix(kw, "*"); ok {
		return strings.HasPrefix(word, stem)
	}
	return word == kw || word == kw+"s" || word == kw+"es"
}

// triageGuidance tells the model which kind of facility to favour.
func triageGuidance(risk assessment.RiskLevel, context string) string {
	if risk == assessment.RiskUrgent {
		return "The risk level is URGENT. Prioritize emergency departments and urgent care centers that are open now."
	}
	if s := SpecialtyFor(context); s != "" {
		return fmt.Sprintf("The condition suggests a specialty. Prioritize a %s, then general practices.", s)
	}
	return "Prioritize general practices, family doctors and walk-in clinics."
}

const queryTemplate = `Find healthcare facilities near latitude %.6f, longitude %.6f.
Risk level: %s
Condition context: %s

%s

Return between %d and %d facilities, closest relevant ones first.
Respond with ONLY strict JSON, no Markdown code fences and no extra text, in exactly this shape:
{"places":[{"name":"...","latitude":0.0,"longitude":0.0,"address":"...","rating":"4.5","reason":"why this place fits the condition"}]}
If nothing suitable is found, respond with {"places":[]}.`

// BuildQuery returns the natural-language prompt for one search.
func BuildQuery(q Query) string {
	context := strings.TrimSpace(q.Context)
	if context == "" {
		context = "general health concern"
	}
	risk := q.RiskLevel
	if !risk.Valid() {
		risk = assessment.RiskMedium
	}
	return fmt.Sprintf(queryTemplate,
		q.Latitude, q.Longitude,
		risk, context,
		triageGuidance(risk, context),
		MinPlaces, MaxPlaces,
	)
}
