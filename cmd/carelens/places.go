package main

import (
	"fmt"
	"time"

	"CareLens/internal/assessment"
	"CareLens/internal/geo"
	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

var (
	latitude  float64
	longitude float64
	concern   string
	risk      string
)

func newPlacesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "places",
		Short: "Find care facilities near a location",
		Long: `Ask a Maps-grounded model for nearby clinics, hospitals or specialists.

Examples:
  carelens places --lat 40.4168 --lng -3.7038 --context "skin rash" --risk low`,
		Args: cobra.NoArgs,
		RunE: runPlaces,
	}

	cmd.Flags().Float64Var(&latitude, "lat", 0, "Latitude of the search center")
	cmd.Flags().Float64Var(&longitude, "lng", 0, "Longitude of the search center")
	cmd.Flags().StringVar(&concern, "context", "", "Short description of the health concern")
	cmd.Flags().StringVar(&risk, "risk", string(assessment.RiskMedium), "Risk level (low, medium, urgent)")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}

func runPlaces(cmd *cobra.Command, args []string) error {
	_, client, ctx, err := setup(cmd.Context())
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Suffix = " Searching nearby care..."
	s.Start()

	res, err := geo.NewRequester(client).FindNearbyPlaces(ctx, geo.Query{
		Latitude:  latitude,
		Longitude: longitude,
		Context:   concern,
		RiskLevel: assessment.RiskLevel(risk),
	})
	s.Stop()
	if err != nil {
		return fmt.Errorf("places search failed: %w", err)
	}

	return displayPlaces(res, outputFormat)
}
