package graphhopper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dpup/nav.ersn.net/server/internal/lib/geo"
	"github.com/dpup/nav.ersn.net/server/internal/lib/routing"
)

// DefaultBaseURL is the hosted GraphHopper Directions API.
const DefaultBaseURL = "https://graphhopper.com/api/1"

// ErrRateLimited is returned when the API responds with 429.
var ErrRateLimited = errors.New("rate limit exceeded")

// HTTPDoer is the subset of *http.Client used by Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Locale  string
	Timeout time.Duration
}

// Client provides access to the GraphHopper Routing API and implements
// routing.Provider.
type Client struct {
	cfg        Config
	httpClient HTTPDoer
	logger     *zap.Logger
}

var _ routing.Provider = (*Client)(nil)

// NewClient creates a new GraphHopper client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTPDoer(cfg, &http.Client{Timeout: timeout}, logger)
}

// NewClientWithHTTPDoer creates a client with a custom HTTP implementation,
// used in tests.
func NewClientWithHTTPDoer(cfg Config, doer HTTPDoer, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Locale == "" {
		cfg.Locale = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, httpClient: doer, logger: logger}
}

// Route computes a route between origin and destination for the travel mode.
func (c *Client) Route(ctx context.Context, origin, destination geo.Coordinate, mode routing.TravelMode) (*routing.Route, error) {
	if err := geo.ValidateCoordinate(origin); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if err := geo.ValidateCoordinate(destination); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if !mode.IsValid() {
		return nil, fmt.Errorf("invalid travel mode: %s", mode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.routeURL(origin, destination, mode), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("GraphHopper route request",
		zap.Stringer("origin", origin),
		zap.Stringer("destination", destination),
		zap.String("profile", string(mode)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, body)
	}

	return ParseResponse(resp.Body)
}

func (c *Client) routeURL(origin, destination geo.Coordinate, mode routing.TravelMode) string {
	q := url.Values{}
	q.Add("point", formatPoint(origin))
	q.Add("point", formatPoint(destination))
	q.Set("profile", string(mode))
	q.Set("points_encoded", "true")
	q.Set("instructions", "true")
	q.Set("calc_points", "true")
	q.Set("locale", c.cfg.Locale)
	if c.cfg.APIKey != "" {
		q.Set("key", c.cfg.APIKey)
	}
	return c.cfg.BaseURL + "/route?" + q.Encode()
}

// formatPoint renders a coordinate in GraphHopper's "lat,lng" order.
func formatPoint(c geo.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// apiError maps an error response. GraphHopper reports unroutable point
// pairs as a 400 with a "not found" message.
func apiError(status int, body []byte) error {
	var payload errorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		message = payload.Message
	}

	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "not found") {
		return fmt.Errorf("%w: %s", routing.ErrNoRoute, message)
	}
	return fmt.Errorf("API error %d: %s", status, message)
}

// ParseResponse decodes a GraphHopper /route response body into a Route
// using the first path.
func ParseResponse(r io.Reader) (*routing.Route, error) {
	var response routeResponse
	if err := json.NewDecoder(r).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(response.Paths) == 0 {
		return nil, fmt.Errorf("%w: response contains no paths", routing.ErrNoRoute)
	}
	return convertPath(response.Paths[0])
}

func convertPath(p path) (*routing.Route, error) {
	instructions := make([]routing.Instruction, len(p.Instructions))
	for i, inst := range p.Instructions {
		if len(inst.Interval) != 2 {
			return nil, fmt.Errorf("%w: instruction %d has %d interval bounds", routing.ErrInvalidInterval, i, len(inst.Interval))
		}
		instructions[i] = routing.Instruction{
			Text:           inst.Text,
			StreetName:     inst.StreetName,
			IntervalStart:  inst.Interval[0],
			IntervalEnd:    inst.Interval[1],
			DistanceMeters: inst.Distance,
			Duration:       time.Duration(inst.Time) * time.Millisecond,
			Sign:           routing.Sign(inst.Sign),
		}
	}

	return routing.NewRouteFromPolyline(p.Points, instructions, p.Distance, time.Duration(p.Time)*time.Millisecond)
}

type routeResponse struct {
	Paths []path `json:"paths"`
}

type path struct {
	Distance     float64       `json:"distance"`
	Time         int64         `json:"time"`
	Points       string        `json:"points"`
	Instructions []instruction `json:"instructions"`
}

type instruction struct {
	Distance   float64 `json:"distance"`
	Sign       int     `json:"sign"`
	Interval   []int   `json:"interval"`
	Text       string  `json:"text"`
	Time       int64   `json:"time"`
	StreetName string  `json:"street_name"`
}

type errorResponse struct {
	Message string `json:"message"`
}
