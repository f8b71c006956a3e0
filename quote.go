package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"parking_checkout/internal/backend"
	"parking_checkout/internal/checkout"
	"parking_checkout/internal/config"
	"parking_checkout/internal/domain"
)

var quoteToken string

var quoteCmd = &cobra.Command{
	Use:   "quote BOOKING_ID",
	Short: "Print the live fee estimate for a booking",
	Long:  `Load a booking from the parking backend and print the estimate a checkout would show for it right now.`,
	Example: `  parking-checkout quote 42
  parking-checkout quote --token "$JWT" 42`,
	Args: cobra.ExactArgs(1),
	RunE: runQuote,
}

func init() {
	quoteCmd.Flags().StringVar(&quoteToken, "token", "", "Bearer token for the backend (defaults to BACKEND_SERVICE_TOKEN)")
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	bookingID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || bookingID <= 0 {
		return fmt.Errorf("invalid booking id %q", args[0])
	}

	cfg := config.Load()
	logger := setupLogger(pick(logLevel, "warn"), pick(logFormat, "text"))

	client := backend.NewClient(backend.Options{
		BaseURL:      cfg.BackendBaseURL,
		ServiceToken: cfg.BackendServiceToken,
		Timeout:      cfg.BackendTimeout,
	}, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.BackendTimeout)
	defer cancel()
	if quoteToken != "" {
		ctx = backend.WithToken(ctx, quoteToken)
	}

	session, err := client.Booking(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("load booking %d: %s", bookingID, backend.ErrorMessage(err, err.Error()))
	}
	if !session.HasID() {
		session.ID.SetValid(bookingID)
	}

	est := checkout.NewEstimator(*session, backend.NewPricingCache(client, 1, cfg.RateCacheTTL), logger)
	estimate := est.Initialize(ctx)

	amount := estimate.AmountDue
	if amount == 0 {
		amount = session.ParkingFee.ValueOrZero()
	}

	out := struct {
		Booking   domain.BookingSession `json:"booking"`
		Estimate  domain.LiveEstimate   `json:"estimate"`
		AmountDue float64               `json:"amount_due"`
	}{*session, estimate, amount}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
