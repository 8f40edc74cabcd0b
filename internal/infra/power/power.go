// Package power provides power telemetry via the management controller's
// Redfish API: it walks the chassis resources to the fast power meter and
// fetches its buffered samples. The controller is remote to the benchmark
// host, so this is a network fetch, bracketing a run rather than running
// inside the measured window.
package power

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config describes the management controller endpoint.
type Config struct {
	// BaseURL is the controller address, e.g. https://10.0.0.100.
	BaseURL  string
	Username string
	Password string

	// InsecureSkipVerify skips TLS verification. Management controllers
	// commonly run self-signed certificates.
	InsecureSkipVerify bool

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// Validate validates the telemetry configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("power telemetry base URL is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("power telemetry credentials are required")
	}
	return nil
}

// Sample is one buffered power reading, in watts.
type Sample struct {
	Time    string `json:"Time"`
	Average int    `json:"Average"`
	Maximum int    `json:"Maximum"`
	Minimum int    `json:"Minimum"`
}

// Meter is the fast power meter payload.
type Meter struct {
	Average int      `json:"Average"`
	Maximum int      `json:"Maximum"`
	Minimum int      `json:"Minimum"`
	Samples []Sample `json:"PowerDetail"`
}

// Client fetches power telemetry from one management controller.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a telemetry client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout, Transport: transport},
		logger: logger.With(slog.String("component", "power")),
	}, nil
}

type odataRef struct {
	ID string `json:"@odata.id"`
}

// FetchFastPowerMeter walks root -> chassis collection -> first chassis ->
// OEM power resource -> fast power meter and returns its samples.
func (c *Client) FetchFastPowerMeter(ctx context.Context) (*Meter, error) {
	var root struct {
		Chassis odataRef `json:"Chassis"`
	}
	if err := c.get(ctx, "/redfish/v1/", &root); err != nil {
		return nil, fmt.Errorf("service root: %w", err)
	}
	if root.Chassis.ID == "" {
		return nil, fmt.Errorf("service root has no chassis collection")
	}

	var collection struct {
		Members []odataRef `json:"Members"`
	}
	if err := c.get(ctx, root.Chassis.ID, &collection); err != nil {
		return nil, fmt.Errorf("chassis collection: %w", err)
	}
	if len(collection.Members) == 0 {
		return nil, fmt.Errorf("chassis collection is empty")
	}

	var chassis struct {
		Oem struct {
			Hpe struct {
				Power odataRef `json:"Power"`
			} `json:"Hpe"`
		} `json:"Oem"`
		Power odataRef `json:"Power"`
	}
	if err := c.get(ctx, collection.Members[0].ID, &chassis); err != nil {
		return nil, fmt.Errorf("chassis: %w", err)
	}

	powerURI := chassis.Oem.Hpe.Power.ID
	if powerURI == "" {
		powerURI = chassis.Power.ID
	}
	if powerURI == "" {
		return nil, fmt.Errorf("chassis exposes no power resource")
	}

	var power struct {
		Oem struct {
			Hpe struct {
				Links struct {
					FastPowerMeter odataRef `json:"FastPowerMeter"`
				} `json:"Links"`
			} `json:"Hpe"`
		} `json:"Oem"`
	}
	if err := c.get(ctx, powerURI, &power); err != nil {
		return nil, fmt.Errorf("power resource: %w", err)
	}

	meterURI := power.Oem.Hpe.Links.FastPowerMeter.ID
	if meterURI == "" {
		return nil, fmt.Errorf("controller exposes no fast power meter")
	}

	var meter Meter
	if err := c.get(ctx, meterURI, &meter); err != nil {
		return nil, fmt.Errorf("fast power meter: %w", err)
	}

	c.logger.Info("power telemetry fetched",
		"samples", len(meter.Samples),
		"average_watts", meter.Average)
	return &meter, nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// WriteTimestamps writes the phase timestamp file the analysis tooling reads
// the total execution time from.
func WriteTimestamps(w io.Writer, start, end time.Time) error {
	total := int(end.Sub(start).Round(time.Second).Seconds())
	_, err := fmt.Fprintf(w,
		"Start Time: %s\nEnd Time: %s\nTotal Execution Time: %d seconds\n",
		start.Format(time.RFC3339), end.Format(time.RFC3339), total)
	return err
}

// WriteSamples writes the fetched meter as indented JSON, the shape the
// power analysis scripts consume.
func WriteSamples(w io.Writer, meter *Meter) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(meter)
}
