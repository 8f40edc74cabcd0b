// Package power provides unit tests for the power telemetry client.
package power

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRedfish serves the resource walk from service root to the fast power
// meter the way an HPE management controller lays it out.
func fakeRedfish(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	routes := map[string]string{
		"/redfish/v1/": `{"Chassis": {"@odata.id": "/redfish/v1/Chassis/"}}`,
		"/redfish/v1/Chassis/": `{"Members": [{"@odata.id": "/redfish/v1/Chassis/1/"}]}`,
		"/redfish/v1/Chassis/1/": `{
			"Oem": {"Hpe": {"Power": {"@odata.id": "/redfish/v1/Chassis/1/Power/"}}}
		}`,
		"/redfish/v1/Chassis/1/Power/": `{
			"Oem": {"Hpe": {"Links": {"FastPowerMeter": {"@odata.id": "/redfish/v1/Chassis/1/Power/FastPowerMeter/"}}}}
		}`,
		"/redfish/v1/Chassis/1/Power/FastPowerMeter/": `{
			"Average": 250, "Maximum": 310, "Minimum": 220,
			"PowerDetail": [
				{"Time": "2025-06-01T12:00:00Z", "Average": 245, "Maximum": 300, "Minimum": 220},
				{"Time": "2025-06-01T12:00:10Z", "Average": 255, "Maximum": 310, "Minimum": 230}
			]
		}`,
	}

	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if user, pass, ok := r.BasicAuth(); !ok || user != "admin" || pass != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestClient_FetchFastPowerMeter tests the full Redfish resource walk.
func TestClient_FetchFastPowerMeter(t *testing.T) {
	srv := fakeRedfish(t)

	client, err := NewClient(Config{
		BaseURL:  srv.URL,
		Username: "admin",
		Password: "pw",
	}, testLogger())
	require.NoError(t, err)

	meter, err := client.FetchFastPowerMeter(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, meter.Average)
	require.Len(t, meter.Samples, 2)
	assert.Equal(t, 245, meter.Samples[0].Average)
	assert.Equal(t, "2025-06-01T12:00:10Z", meter.Samples[1].Time)
}

// TestClient_FetchFastPowerMeter_BadCredentials tests auth failure surfacing.
func TestClient_FetchFastPowerMeter_BadCredentials(t *testing.T) {
	srv := fakeRedfish(t)

	client, err := NewClient(Config{
		BaseURL:  srv.URL,
		Username: "admin",
		Password: "wrong",
	}, testLogger())
	require.NoError(t, err)

	_, err = client.FetchFastPowerMeter(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

// TestClient_FetchFastPowerMeter_NoMeter tests a controller without the OEM
// fast power meter link.
func TestClient_FetchFastPowerMeter_NoMeter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/redfish/v1/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Chassis": {"@odata.id": "/redfish/v1/Chassis/"}}`)
	})
	mux.HandleFunc("/redfish/v1/Chassis/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Members": [{"@odata.id": "/redfish/v1/Chassis/1/"}]}`)
	})
	mux.HandleFunc("/redfish/v1/Chassis/1/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Power": {"@odata.id": "/redfish/v1/Chassis/1/Power/"}}`)
	})
	mux.HandleFunc("/redfish/v1/Chassis/1/Power/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, Username: "a", Password: "b"}, testLogger())
	require.NoError(t, err)

	_, err = client.FetchFastPowerMeter(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fast power meter")
}

// TestConfig_Validate tests telemetry configuration validation.
func TestConfig_Validate(t *testing.T) {
	valid := Config{BaseURL: "https://10.0.0.100", Username: "u", Password: "p"}
	require.NoError(t, valid.Validate())

	assert.Error(t, (&Config{Username: "u", Password: "p"}).Validate())
	assert.Error(t, (&Config{BaseURL: "https://x", Username: "u"}).Validate())
}

// TestWriteTimestamps tests the phase timestamp file format.
func TestWriteTimestamps(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	var sb strings.Builder
	require.NoError(t, WriteTimestamps(&sb, start, end))

	out := sb.String()
	assert.Contains(t, out, "Start Time: 2025-06-01T12:00:00Z")
	assert.Contains(t, out, "End Time: 2025-06-01T12:01:30Z")
	assert.Contains(t, out, "Total Execution Time: 90 seconds")
}

// TestWriteSamples tests meter serialization.
func TestWriteSamples(t *testing.T) {
	meter := &Meter{
		Average: 250,
		Samples: []Sample{{Time: "2025-06-01T12:00:00Z", Average: 245}},
	}

	var sb strings.Builder
	require.NoError(t, WriteSamples(&sb, meter))

	assert.Contains(t, sb.String(), `"PowerDetail"`)
	assert.Contains(t, sb.String(), `"Average": 250`)
}
