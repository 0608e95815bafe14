// Package gateway is the typed façade over the remote clinic API. It
// owns wire-shape normalisation, the error taxonomy mapping, transient
// retry policy and the short-lived availability cache.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/circuitbreaker"
	"github.com/medisched/scheduling-client/pkg/errors"
	"github.com/medisched/scheduling-client/pkg/httputil"
	"github.com/medisched/scheduling-client/pkg/logger"
	"github.com/medisched/scheduling-client/pkg/metrics"
)

// Config holds gateway construction parameters.
type Config struct {
	BaseURL        string
	Token          string
	RequestTimeout time.Duration
	RetryBackoff   time.Duration
	RateLimit      float64
	RateBurst      int
	CacheTTL       time.Duration
}

// Client talks to the remote clinic API. Safe for use from a single
// goroutine; the UI event loop sequences all calls.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	limiter      *rate.Limiter
	breaker      *circuitbreaker.CircuitBreaker
	availability *gocache.Cache
	retryBackoff time.Duration
	metrics      *metrics.Metrics
	logger       *logger.Logger
}

// NewClient builds a gateway client. Metrics may be nil.
func NewClient(cfg Config, log *logger.Logger, m *metrics.Metrics) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 20
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker: circuitbreaker.New(circuitbreaker.Settings{
			Name:        "clinic-api",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
		availability: gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		retryBackoff: cfg.RetryBackoff,
		metrics:      m,
		logger:       log.WithComponent("gateway"),
	}
}

// ListFilters narrows the booking list server-side.
type ListFilters struct {
	Status      model.BookingStatus
	Type        model.BookingType
	Date        string
	ClinicianID uuid.UUID
}

// ConflictReport is the preflight verdict from the conflicts endpoint.
type ConflictReport struct {
	HasConflicts bool              `json:"has_conflicts"`
	Conflicts    []errors.Occupant `json:"conflicts"`
}

// List fetches one page of bookings. Absent pagination metadata is
// normalised to a single page covering the returned items.
func (c *Client) List(ctx context.Context, page, pageSize int, filters ListFilters) ([]model.Booking, model.Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if filters.Status != "" {
		q.Set("status", string(filters.Status))
	}
	if filters.Type != "" {
		q.Set("type", string(filters.Type))
	}
	if filters.Date != "" {
		q.Set("date", filters.Date)
	}
	if filters.ClinicianID != uuid.Nil {
		q.Set("clinician_id", filters.ClinicianID.String())
	}

	data, err := c.call(ctx, http.MethodGet, "/appointments", q, nil, true)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	var env httputil.ListEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, model.Pagination{}, errors.Unknown("malformed list response", err)
	}

	rawItems := env.Items
	if rawItems == nil {
		rawItems = env.Appointments
	}
	var items []model.Booking
	if rawItems != nil {
		if err := json.Unmarshal(rawItems, &items); err != nil {
			return nil, model.Pagination{}, errors.Unknown("malformed list items", err)
		}
	}

	pg := model.Pagination{Page: page, PageSize: pageSize, TotalCount: len(items), TotalPages: 1}
	if env.Pagination != nil {
		pg = model.Pagination{
			Page:       env.Pagination.Page,
			PageSize:   env.Pagination.PageSize,
			TotalCount: env.Pagination.TotalCount,
			TotalPages: env.Pagination.TotalPages,
		}
	}
	return items, pg, nil
}

// Create books a new appointment. Conflict and validation failures come
// back as tagged AppErrors; mutations are never retried.
func (c *Client) Create(ctx context.Context, draft *model.BookingDraft) (*model.Booking, error) {
	data, err := c.call(ctx, http.MethodPost, "/appointments", nil, draft, false)
	if err != nil {
		return nil, err
	}
	booking, err := decodeBooking(data)
	if err != nil {
		return nil, err
	}
	c.InvalidateAvailability(booking.ClinicianID, booking.Date)
	return booking, nil
}

// UpdateStatus transitions a booking's status.
func (c *Client) UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) (*model.Booking, error) {
	body := map[string]string{"status": string(status)}
	data, err := c.call(ctx, http.MethodPatch, "/appointments/"+id.String()+"/status", nil, body, false)
	if err != nil {
		return nil, err
	}
	booking, err := decodeBooking(data)
	if err != nil {
		return nil, err
	}
	c.InvalidateAvailability(booking.ClinicianID, booking.Date)
	return booking, nil
}

// Reschedule moves a booking to a new date, time and duration.
func (c *Client) Reschedule(ctx context.Context, id uuid.UUID, date, start string, durationMinutes int, force bool) (*model.Booking, error) {
	body := map[string]interface{}{
		"date":             date,
		"start_time":       start,
		"duration_minutes": durationMinutes,
		"force":            force,
	}
	data, err := c.call(ctx, http.MethodPatch, "/appointments/"+id.String()+"/schedule", nil, body, false)
	if err != nil {
		return nil, err
	}
	booking, err := decodeBooking(data)
	if err != nil {
		return nil, err
	}
	c.InvalidateAvailability(booking.ClinicianID, booking.Date)
	c.InvalidateAvailability(booking.ClinicianID, date)
	return booking, nil
}

// Delete removes a booking.
func (c *Client) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := c.call(ctx, http.MethodDelete, "/appointments/"+id.String(), nil, nil, false)
	return err
}

// Stats fetches the appointment statistics summary.
func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	data, err := c.call(ctx, http.MethodGet, "/appointments/stats", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var stats model.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, errors.Unknown("malformed stats response", err)
	}
	return &stats, nil
}

// Conflicts runs a server-side conflict preflight for a candidate time.
func (c *Client) Conflicts(ctx context.Context, clinicianID uuid.UUID, date, start string, durationMinutes int) (*ConflictReport, error) {
	q := url.Values{}
	q.Set("clinician_id", clinicianID.String())
	q.Set("date", date)
	q.Set("start_time", start)
	q.Set("duration_minutes", strconv.Itoa(durationMinutes))

	data, err := c.call(ctx, http.MethodGet, "/appointments/conflicts", q, nil, true)
	if err != nil {
		return nil, err
	}
	var report ConflictReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Unknown("malformed conflict report", err)
	}
	return &report, nil
}

// Availability fetches the rules, exceptions and bookings governing a
// clinician's day. Responses are cached briefly; mutations through this
// client invalidate the affected entries.
func (c *Client) Availability(ctx context.Context, clinicianID uuid.UUID, date string) (*model.DayAvailability, error) {
	key := availabilityKey(clinicianID, date)
	if cached, found := c.availability.Get(key); found {
		if c.metrics != nil {
			c.metrics.AvailabilityCacheHits.Inc()
		}
		return cached.(*model.DayAvailability), nil
	}
	if c.metrics != nil {
		c.metrics.AvailabilityCacheMisses.Inc()
	}

	q := url.Values{}
	q.Set("clinician_id", clinicianID.String())
	q.Set("date", date)

	data, err := c.call(ctx, http.MethodGet, "/availability", q, nil, true)
	if err != nil {
		return nil, err
	}
	var day model.DayAvailability
	if err := json.Unmarshal(data, &day); err != nil {
		return nil, errors.Unknown("malformed availability response", err)
	}
	c.availability.Set(key, &day, gocache.DefaultExpiration)
	return &day, nil
}

// Clinicians fetches the clinician directory.
func (c *Client) Clinicians(ctx context.Context) ([]model.Clinician, error) {
	data, err := c.call(ctx, http.MethodGet, "/clinicians", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var clinicians []model.Clinician
	if err := json.Unmarshal(data, &clinicians); err != nil {
		return nil, errors.Unknown("malformed clinician list", err)
	}
	return clinicians, nil
}

// Patients fetches the patient directory.
func (c *Client) Patients(ctx context.Context) ([]model.Patient, error) {
	data, err := c.call(ctx, http.MethodGet, "/patients", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var patients []model.Patient
	if err := json.Unmarshal(data, &patients); err != nil {
		return nil, errors.Unknown("malformed patient list", err)
	}
	return patients, nil
}

// InvalidateAvailability drops the cached calendar for one clinician day.
func (c *Client) InvalidateAvailability(clinicianID uuid.UUID, date string) {
	c.availability.Delete(availabilityKey(clinicianID, date))
}

func availabilityKey(clinicianID uuid.UUID, date string) string {
	return clinicianID.String() + "@" + date
}

// call performs one API request. Idempotent calls are retried exactly
// once after a transient transport failure; mutations never are.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body interface{}, idempotent bool) (json.RawMessage, error) {
	op := method + " " + path
	start := time.Now()

	data, err := c.doOnce(ctx, method, path, query, body)
	if err != nil && idempotent && errors.Is(err, errors.KindTransport) {
		if c.metrics != nil {
			c.metrics.GatewayRetries.WithLabelValues(op).Inc()
		}
		c.logger.Warn("transient failure, retrying once", "operation", op)
		select {
		case <-ctx.Done():
			return nil, errors.Transport(ctx.Err())
		case <-time.After(c.retryBackoff):
		}
		data, err = c.doOnce(ctx, method, path, query, body)
	}

	if c.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = errors.KindOf(err).String()
		}
		c.metrics.GatewayRequests.WithLabelValues(op, outcome).Inc()
		c.metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return data, err
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body interface{}) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Transport(err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Unknown("failed to encode request body", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, errors.Unknown("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	var resp *http.Response
	var respBody []byte
	transportErr := c.breaker.Execute(func() error {
		var doErr error
		resp, doErr = c.http.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()
		respBody, doErr = io.ReadAll(resp.Body)
		return doErr
	})
	if transportErr != nil {
		return nil, errors.Transport(transportErr)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if len(respBody) == 0 {
			return nil, nil
		}
		var env httputil.Response
		if err := json.Unmarshal(respBody, &env); err != nil {
			return nil, errors.Unknown("malformed response envelope", err)
		}
		return env.Data, nil
	}

	return nil, c.mapError(resp.StatusCode, respBody)
}

// mapError turns a non-2xx response into a tagged AppError. Structured
// error payloads win; otherwise the status code decides.
func (c *Client) mapError(status int, body []byte) error {
	var env httputil.Response
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		switch env.Error.Code {
		case httputil.CodeValidation:
			e := errors.Validation(env.Error.Fields)
			if env.Error.Message != "" {
				e.Message = env.Error.Message
			}
			return e
		case httputil.CodeAlreadyBooked:
			return errors.AlreadyBooked(env.Error.Conflicts)
		case httputil.CodeNotFound:
			return errors.NotFound("appointment")
		case httputil.CodeUnauthorized:
			return errors.Unauthorized(nil)
		default:
			return errors.Unknown(env.Error.Message, nil)
		}
	}

	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errors.Validation(nil)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Unauthorized(nil)
	case http.StatusNotFound:
		return errors.NotFound("appointment")
	case http.StatusConflict:
		return errors.AlreadyBooked(nil)
	default:
		return errors.Unknown(fmt.Sprintf("unexpected status %d", status), nil)
	}
}

func decodeBooking(data json.RawMessage) (*model.Booking, error) {
	var booking model.Booking
	if err := json.Unmarshal(data, &booking); err != nil {
		return nil, errors.Unknown("malformed booking response", err)
	}
	return &booking, nil
}
