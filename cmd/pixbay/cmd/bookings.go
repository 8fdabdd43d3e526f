package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/output"
)

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "Booking commands",
	Long:  "List your bookings and inspect their payment state.",
}

var bookingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookings",
	Long:  "List bookings where you are the client or the creator.",
	RunE:  runBookingsList,
}

var bookingsGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one booking",
	Long:  "Display a single booking with its payment status.",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookingsGet,
}

var (
	pageFlag  int
	limitFlag int
)

func init() {
	rootCmd.AddCommand(bookingsCmd)
	bookingsCmd.AddCommand(bookingsListCmd)
	bookingsCmd.AddCommand(bookingsGetCmd)

	bookingsListCmd.Flags().IntVar(&pageFlag, "page", 1, "page number")
	bookingsListCmd.Flags().IntVar(&limitFlag, "limit", 20, "items per page")
}

func runBookingsList(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	bookings, err := c.ListBookings(pageFlag, limitFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(bookings)
	}

	if len(bookings) == 0 {
		output.Info("No bookings found")
		return nil
	}

	output.Header("Bookings")
	fmt.Println()

	rows := make([][]string, len(bookings))
	for i, b := range bookings {
		rows[i] = []string{
			shortID(b.ID),
			b.Title,
			output.FormatAmount(b.Amount, b.Currency),
			output.FormatStatus(b.Status),
			output.FormatStatus(b.PaymentStatus),
			shortDate(b.CreatedAt),
		}
	}

	output.Table([]string{"ID", "Title", "Amount", "Status", "Payment", "Created"}, rows)
	return nil
}

func runBookingsGet(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	booking, err := c.GetBooking(args[0])
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(booking)
	}

	output.Header("Booking " + shortID(booking.ID))
	fmt.Println()
	output.KeyValue([][]string{
		{"Title", booking.Title},
		{"Client", booking.ClientID},
		{"Creator", booking.CreatorID},
		{"Amount", output.Money(booking.Amount, booking.Currency)},
		{"Status", output.FormatStatus(booking.Status)},
		{"Payment", output.FormatStatus(booking.PaymentStatus)},
		{"Created", shortDate(booking.CreatedAt)},
	})
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortDate(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}
