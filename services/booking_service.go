package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/anjiri1684/tutor_gateway/models"
	"github.com/anjiri1684/tutor_gateway/storage"
	"github.com/anjiri1684/tutor_gateway/upstream"
	"github.com/sirupsen/logrus"
)

// BookingAPI is the slice of the marketplace client the coordinator needs.
type BookingAPI interface {
	QuoteBooking(ctx context.Context, accessToken string, availabilityIDs []string) (*models.Quote, error)
	CreateBooking(ctx context.Context, accessToken string, req upstream.CreateBookingRequest) (*upstream.CheckoutSession, error)
	VerifyBooking(ctx context.Context, accessToken, checkoutSessionID string) (*upstream.VerifyResult, error)
	BookingDetail(ctx context.Context, accessToken, bookingID string) (*models.Booking, error)
	MyBookings(ctx context.Context, accessToken string) ([]models.Booking, error)
	RescheduleBooking(ctx context.Context, accessToken, bookingID string, req upstream.RescheduleRequest) error
}

const (
	previewKeyPrefix = "booking:preview:"
	previewTTL       = 2 * time.Hour
	bookingListRoute = "/bookings"
)

// bookingState is one session's position in the quote → create → pay →
// verify flow. quoteSeq enforces last-write-wins on overlapping quotes;
// lastVerified is the dedupe latch for the payment return leg.
type bookingState struct {
	phase        models.BookingPhase
	quote        *models.Quote
	quoteSeq     uint64
	nextSeq      uint64
	lastVerified string
	outcome      *models.Confirmation
}

// BookingService sequences the booking lifecycle per gateway session.
type BookingService struct {
	api   BookingAPI
	cache storage.Cache
	log   *logrus.Logger

	mu     sync.Mutex
	states map[string]*bookingState
}

func NewBookingService(api BookingAPI, cache storage.Cache, log *logrus.Logger) *BookingService {
	return &BookingService{
		api:    api,
		cache:  cache,
		log:    log,
		states: make(map[string]*bookingState),
	}
}

func previewKey(sessionToken string) string {
	return previewKeyPrefix + sessionToken
}

func (s *BookingService) state(sessionToken string) *bookingState {
	st, ok := s.states[sessionToken]
	if !ok {
		st = &bookingState{phase: models.PhaseIdle}
		s.states[sessionToken] = st
	}
	return st
}

// Quote prices the selected slots. It may be called repeatedly as the
// selection changes; the stored quote is only replaced by a completion that
// is newer than whatever finished last, so a slow stale response can never
// clobber a fresh one, and the previous quote stays visible while a new
// request is in flight.
func (s *BookingService) Quote(ctx context.Context, session *models.Session, availabilityIDs []string) (*models.Quote, error) {
	s.mu.Lock()
	st := s.state(session.Token)
	st.nextSeq++
	seq := st.nextSeq
	st.phase = models.PhaseQuoting
	s.mu.Unlock()

	quote, err := s.api.QuoteBooking(ctx, session.AccessToken, availabilityIDs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if st.quote == nil {
			st.phase = models.PhaseIdle
		} else {
			st.phase = models.PhaseQuoted
		}
		return nil, err
	}
	if seq >= st.quoteSeq {
		st.quote = quote
		st.quoteSeq = seq
		st.phase = models.PhaseQuoted
	}
	return quote, nil
}

type CreateBookingInput struct {
	AvailabilityIDs []string
	PriceID         int
	TeacherName     string
	Subject         string
}

// Create opens a checkout session upstream and stashes a BookingPreview
// before the caller redirects the browser away. The preview write happens
// before the URL is returned because nothing client-side survives the
// round trip to the payment page.
func (s *BookingService) Create(ctx context.Context, session *models.Session, input CreateBookingInput) (*upstream.CheckoutSession, error) {
	s.mu.Lock()
	st := s.state(session.Token)
	quote := st.quote
	st.phase = models.PhaseCreating
	s.mu.Unlock()

	checkout, err := s.api.CreateBooking(ctx, session.AccessToken, upstream.CreateBookingRequest{
		AvailabilityIDs: input.AvailabilityIDs,
		PriceID:         input.PriceID,
	})
	if err != nil {
		s.mu.Lock()
		if st.quote != nil {
			st.phase = models.PhaseQuoted
		} else {
			st.phase = models.PhaseIdle
		}
		s.mu.Unlock()
		return nil, err
	}

	preview := models.BookingPreview{
		CheckoutSessionID: checkout.SessionID,
		TeacherName:       input.TeacherName,
		Subject:           input.Subject,
		Price:             checkout.Price,
		CreatedAt:         time.Now(),
	}
	if quote != nil {
		preview.Slots = quote.Slots
		preview.TotalHours = quote.TotalHours
		if preview.Price == 0 {
			preview.Price = quote.Price
		}
	}
	if encoded, err := json.Marshal(preview); err == nil {
		if err := s.cache.Set(ctx, previewKey(session.Token), string(encoded), previewTTL); err != nil {
			s.log.WithError(err).Warn("failed to stash booking preview before redirect")
		}
	}

	s.mu.Lock()
	st.phase = models.PhaseAwaitingPayment
	s.mu.Unlock()
	return checkout, nil
}

// VerifyReturn handles the browser coming back from checkout. It is
// idempotent per checkout session id: the latch is set before the upstream
// call and a repeat with the same id returns the recorded outcome without a
// second verification. A different id proceeds normally.
func (s *BookingService) VerifyReturn(ctx context.Context, session *models.Session, checkoutSessionID string) (*models.Confirmation, error) {
	s.mu.Lock()
	st := s.state(session.Token)
	if st.lastVerified == checkoutSessionID {
		outcome := st.outcome
		s.mu.Unlock()
		if outcome != nil {
			return outcome, nil
		}
		// same id, first attempt still in flight: no second verification
		return &models.Confirmation{
			Phase:   models.PhaseVerifying,
			Source:  "none",
			Message: "Payment verification in progress.",
		}, nil
	}
	st.lastVerified = checkoutSessionID
	st.phase = models.PhaseVerifying
	s.mu.Unlock()

	result, err := s.api.VerifyBooking(ctx, session.AccessToken, checkoutSessionID)
	if err != nil {
		conf := &models.Confirmation{
			Phase:         models.PhaseFailed,
			Source:        "none",
			Message:       "We could not verify your payment. If you were charged, the booking will appear in your list shortly.",
			FallbackRoute: bookingListRoute,
		}
		s.record(st, conf)
		return conf, err
	}

	if !paymentSucceeded(result.PaymentStatus) {
		conf := &models.Confirmation{
			Phase:         models.PhaseFailed,
			PaymentStatus: result.PaymentStatus,
			Source:        "none",
			Message:       "The payment was not completed.",
			FallbackRoute: bookingListRoute,
		}
		s.record(st, conf)
		return conf, nil
	}

	conf := s.buildConfirmation(ctx, session, result)
	s.record(st, conf)
	return conf, nil
}

func (s *BookingService) record(st *bookingState, conf *models.Confirmation) {
	s.mu.Lock()
	st.phase = conf.Phase
	st.outcome = conf
	s.mu.Unlock()
}

// buildConfirmation applies the three fallback tiers: live booking detail,
// then the stashed preview, then a generic payload. Whatever happens, the
// preview key is consumed here so it cannot leak into a later flow.
func (s *BookingService) buildConfirmation(ctx context.Context, session *models.Session, result *upstream.VerifyResult) *models.Confirmation {
	conf := &models.Confirmation{
		Phase:         models.PhaseConfirmed,
		PaymentStatus: result.PaymentStatus,
		Message:       "Your booking is confirmed.",
	}

	stashed, previewErr := s.cache.GetDel(ctx, previewKey(session.Token))

	if result.Data.BookingID != "" {
		if booking, err := s.api.BookingDetail(ctx, session.AccessToken, result.Data.BookingID); err == nil {
			conf.Source = "detail"
			conf.Booking = booking
			return conf
		} else {
			s.log.WithError(err).Warn("booking detail fetch failed, falling back to preview")
		}
	}

	if previewErr == nil {
		var preview models.BookingPreview
		if err := json.Unmarshal([]byte(stashed), &preview); err == nil {
			conf.Source = "preview"
			conf.Preview = &preview
			return conf
		}
	}

	conf.Source = "generic"
	return conf
}

func paymentSucceeded(status string) bool {
	switch status {
	case "paid", "complete", "completed", "succeeded":
		return true
	}
	return false
}

func (s *BookingService) Detail(ctx context.Context, session *models.Session, bookingID string) (*models.Booking, error) {
	return s.api.BookingDetail(ctx, session.AccessToken, bookingID)
}

func (s *BookingService) List(ctx context.Context, session *models.Session) ([]models.Booking, error) {
	return s.api.MyBookings(ctx, session.AccessToken)
}

func (s *BookingService) Reschedule(ctx context.Context, session *models.Session, bookingID string, req upstream.RescheduleRequest) error {
	return s.api.RescheduleBooking(ctx, session.AccessToken, bookingID, req)
}

// CurrentQuote returns the quote the session last settled on, if any.
func (s *BookingService) CurrentQuote(sessionToken string) *models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(sessionToken).quote
}

func (s *BookingService) Phase(sessionToken string) models.BookingPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(sessionToken).phase
}

// Clear drops the per-session flow state and any stashed preview, used on
// logout.
func (s *BookingService) Clear(ctx context.Context, sessionToken string) {
	s.mu.Lock()
	delete(s.states, sessionToken)
	s.mu.Unlock()
	if err := s.cache.Del(ctx, previewKey(sessionToken)); err != nil {
		s.log.WithError(err).Warn("failed to drop booking preview key")
	}
}
