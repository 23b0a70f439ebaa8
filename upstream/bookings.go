package upstream

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/anjiri1684/tutor_gateway/models"
)

type quoteResponse struct {
	Availability []struct {
		ID        string    `json:"id"`
		StartTime time.Time `json:"start_time"`
		EndTime   time.Time `json:"end_time"`
	} `json:"availability"`
	TotalHours float64 `json:"total_hours"`
	Price      float64 `json:"price"`
	Currency   string  `json:"currency"`
}

func (c *Client) QuoteBooking(ctx context.Context, accessToken string, availabilityIDs []string) (*models.Quote, error) {
	body := map[string]interface{}{"availability_ids": availabilityIDs}
	var resp quoteResponse
	if err := c.doJSON(ctx, http.MethodPost, "/bookings/cotizar-booking", accessToken, body, &resp); err != nil {
		return nil, err
	}

	quote := &models.Quote{
		TotalHours: resp.TotalHours,
		Price:      resp.Price,
		Currency:   resp.Currency,
	}
	for _, slot := range resp.Availability {
		quote.Slots = append(quote.Slots, models.SlotRef{
			ID:        slot.ID,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
		})
	}
	return quote, nil
}

type CreateBookingRequest struct {
	AvailabilityIDs []string `json:"availability_ids"`
	PriceID         int      `json:"price_id"`
}

// CheckoutSession points the browser at the external payment page. SessionID
// is the only handle the gateway gets back on the return leg.
type CheckoutSession struct {
	URL       string  `json:"url"`
	SessionID string  `json:"session_id"`
	Price     float64 `json:"price"`
}

func (c *Client) CreateBooking(ctx context.Context, accessToken string, req CreateBookingRequest) (*CheckoutSession, error) {
	var session CheckoutSession
	if err := c.doJSON(ctx, http.MethodPost, "/bookings/crear-booking", accessToken, req, &session); err != nil {
		return nil, err
	}
	if session.URL == "" || session.SessionID == "" {
		return nil, fmt.Errorf("%w: checkout session missing url or session_id", ErrBadPayload)
	}
	return &session, nil
}

type VerifyResult struct {
	PaymentStatus string `json:"payment_status"`
	Data          struct {
		BookingID string `json:"booking_id"`
	} `json:"data"`
}

func (c *Client) VerifyBooking(ctx context.Context, accessToken, checkoutSessionID string) (*VerifyResult, error) {
	var result VerifyResult
	path := "/bookings/verificar-booking/" + checkoutSessionID
	if err := c.doJSON(ctx, http.MethodGet, path, accessToken, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) BookingDetail(ctx context.Context, accessToken, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	path := "/bookings/" + bookingID + "/detalle"
	if err := c.doJSON(ctx, http.MethodGet, path, accessToken, nil, &booking); err != nil {
		return nil, err
	}
	if booking.ID == "" {
		booking.ID = bookingID
	}
	return &booking, nil
}

func (c *Client) MyBookings(ctx context.Context, accessToken string) ([]models.Booking, error) {
	var bookings []models.Booking
	if err := c.doJSON(ctx, http.MethodGet, "/bookings/me", accessToken, nil, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

type RescheduleRequest struct {
	StartTime time.Time `json:"proposed_start_time"`
	EndTime   time.Time `json:"proposed_end_time"`
	Reason    string    `json:"reason,omitempty"`
}

func (c *Client) RescheduleBooking(ctx context.Context, accessToken, bookingID string, req RescheduleRequest) error {
	path := "/bookings/" + bookingID + "/reprogramar"
	return c.doJSON(ctx, http.MethodPost, path, accessToken, req, nil)
}
