package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"CareLens/internal/assessment"
	"CareLens/internal/geo"
	"github.com/fatih/color"
)

func printHeader(path, mimeType string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Println("🩺 CareLens")
	fmt.Printf("📄 File: %s (%s)\n", path, assessment.ClassifyMedia(mimeType))
	if strings.TrimSpace(note) != "" {
		fmt.Printf("📝 Note: %s\n", strings.TrimSpace(note))
	}
	fmt.Println()
}

func printError(msg string) {
	red := color.New(color.FgRed)
	red.Printf("✗ %s\n", msg)
}

func displayJSON(v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}

// displayAssessment prints the assessment as a card or as JSON.
func displayAssessment(a *assessment.Assessment, format string) error {
	if format == "json" {
		return displayJSON(a)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	white := color.New(color.FgWhite, color.Bold)

	riskColor(a.RiskLevel).Printf("%s %s\n", riskIcon(a.RiskLevel), strings.ToUpper(assessment.RiskBadge(a.RiskLevel)))
	fmt.Printf("   Severity: %s · Visual confidence: %.0f%%\n", a.SymptomSeverity, a.VisualConfidenceScore*100)
	if a.RiskReasoning != "" {
		fmt.Println(wrapText(a.RiskReasoning, 80, "   "))
	}
	fmt.Println()

	white.Println("📋 SUMMARY:")
	fmt.Println(wrapText(a.UserFriendlySummary, 80, "   "))
	fmt.Println()

	if a.VisualFindingsSummary != "" {
		cyan.Println("🔍 WHAT IS VISIBLE:")
		fmt.Println(wrapText(a.VisualFindingsSummary, 80, "   "))
		for _, r := range a.Regions() {
			fmt.Printf("   • %s: %s\n", r.Area, color.HiBlackString(r.Finding))
		}
		fmt.Println()
	}

	printList(yellow, "⚠️  SEEK CARE IF:", a.UrgentSignsToWatch)
	printList(green, "✅ DO:", a.DoList)
	printList(color.New(color.FgRed, color.Bold), "🚫 AVOID:", a.AvoidList)
	printList(cyan, "🧭 RECOMMENDED ACTIONS:", a.RecommendedActions)
	printList(white, "❓ QUESTIONS FOR YOUR DOCTOR:", a.DoctorQuestions)

	if a.FollowUpRecommendation != "" {
		white.Println("📅 FOLLOW-UP:")
		fmt.Println(wrapText(a.FollowUpRecommendation, 80, "   "))
		fmt.Println()
	}

	if verbose && a.DeepReasoning != "" {
		white.Println("📄 DETAILED REASONING:")
		fmt.Println(wrapText(a.DeepReasoning, 80, "   "))
		fmt.Println()
	}

	fmt.Println(strings.Repeat("─", 80))
	fmt.Println(wrapText(a.Disclaimer, 80, ""))
	return nil
}

// displayPlaces prints the search result as a numbered list or as JSON.
func displayPlaces(res *geo.Result, format string) error {
	if format == "json" {
		return displayJSON(res)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Println()
	cyan.Printf("📍 Care near %.4f, %.4f\n\n", res.SearchCenter.Lat, res.SearchCenter.Lng)

	if len(res.Places) == 0 {
		fmt.Println("   No places could be found. Try again or search a maps app directly.")
		return nil
	}
	for i, p := range res.Places {
		fmt.Printf("   %d. %s", i+1, color.New(color.Bold).Sprint(p.Name))
		if p.Rating != "" {
			fmt.Printf(" %s", color.YellowString("★ %s", p.Rating))
		}
		fmt.Println()
		if p.Address != "" {
			fmt.Printf("      %s\n", p.Address)
		}
		if p.Reason != "" {
			fmt.Printf("      %s\n", color.HiBlackString(p.Reason))
		}
	}
	return nil
}

func printList(c *color.Color, title string, items []string) {
	if len(items) == 0 {
		return
	}
	c.Println(title)
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
	fmt.Println()
}

func riskColor(r assessment.RiskLevel) *color.Color {
	switch r {
	case assessment.RiskUrgent:
		return color.New(color.FgRed, color.Bold)
	case assessment.RiskLow:
		return color.New(color.FgGreen, color.Bold)
	default:
		return color.New(color.FgYellow, color.Bold)
	}
}

func riskIcon(r assessment.RiskLevel) string {
	switch r {
	case assessment.RiskUrgent:
		return "🔴"
	case assessment.RiskLow:
		return "🟢"
	default:
		return "🟡"
	}
}

func wrapText(text string, width int, indent string) string {
	var result strings.Builder

	for _, line := range strings.Split(text, "\n") {
		words := strings.Fields(line)
		if len(words) == 0 {
			result.WriteString("\n")
			continue
		}

		currentLine := indent
		for _, word := range words {
			if currentLine == indent {
				currentLine += word
			} else if len(currentLine)+len(word)+1 > width {
				result.WriteString(currentLine + "\n")
				currentLine = indent + word
			} else {
				currentLine += " " + word
			}
		}

		if currentLine != indent {
			result.WriteString(currentLine + "\n")
		}
	}

	return strings.TrimSuffix(result.String(), "\n")
}
