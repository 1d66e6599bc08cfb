// Package partner is the HTTP client for the reservation API of partner
// institutions.  Students may book seats in a partner's rooms; the
// partner owns those machines and holds the authoritative booking.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRemote is wrapped by every error caused by the partner side:
// transport failures, timeouts and non-2xx responses.
var ErrRemote = errors.New("partner api")

// ReservationRequest asks a partner to hold a seat in one of its rooms.
type ReservationRequest struct {
	OrgRef  string    `json:"-"`
	RoomRef string    `json:"-"`
	UserID  uint64    `json:"user_id"`
	ExamID  uint64    `json:"exam_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Booking is the partner's acknowledgement of a reservation.
type Booking struct {
	Ref   string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlotQuery selects the slots of a partner room for one day.
type SlotQuery struct {
	OrgRef   string
	RoomRef  string
	Date     time.Time
	Duration time.Duration
}

// Slot is one window reported by a partner.
type Slot struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	AvailableMachines int       `json:"available_machines"`
}

// Client talks to the partner API.  The zero value is not usable; use
// New.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a client for baseURL.  Every request is bounded by
// timeout in addition to the caller's context.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateReservation books a seat in a partner room and returns the
// partner's reference for it.
func (c *Client) CreateReservation(ctx context.Context, req ReservationRequest) (Booking, error) {
	path := fmt.Sprintf("/api/organisations/%s/facilities/%s/reservations",
		url.PathEscape(req.OrgRef), url.PathEscape(req.RoomRef))
	var out Booking
	if err := c.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return Booking{}, err
	}
	if out.Ref == "" {
		return Booking{}, fmt.Errorf("%w: response without reservation id", ErrRemote)
	}
	return out, nil
}

// DeleteReservation releases a partner booking.  A booking the partner
// no longer knows about counts as released.
func (c *Client) DeleteReservation(ctx context.Context, ref string) error {
	err := c.do(ctx, http.MethodDelete, "/api/reservations/"+url.PathEscape(ref), nil, nil, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

// ListSlots returns the partner's slots for a room and date.
func (c *Client) ListSlots(ctx context.Context, q SlotQuery) ([]Slot, error) {
	path := fmt.Sprintf("/api/organisations/%s/facilities/%s/slots",
		url.PathEscape(q.OrgRef), url.PathEscape(q.RoomRef))
	params := url.Values{}
	params.Set("date", q.Date.Format("2006-01-02"))
	params.Set("duration", fmt.Sprint(int(q.Duration/time.Minute)))
	var out []Slot
	if err := c.do(ctx, http.MethodGet, path, params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StatusError reports a non-2xx partner response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrRemote, e.Code, e.Body)
}

// Unwrap lets errors.Is(err, ErrRemote) match status errors.
func (e *StatusError) Unwrap() error { return ErrRemote }

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRemote, err)
	}
	return nil
}
