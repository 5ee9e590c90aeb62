package parser

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgefleet/logship/pkg/logtypes"
)

func TestParseAppFormat(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		level   logtypes.Level
		message string
		service string
	}{
		{
			name:    "rfc3339 error",
			line:    "[2025-01-01T00:00:00Z] [ERROR] [svc] boom",
			level:   logtypes.LevelError,
			message: "boom",
			service: "svc",
		},
		{
			name:    "microsecond timestamp",
			line:    "[2025-11-02T07:10:29.920971] [INFO] [checkout] order placed",
			level:   logtypes.LevelInfo,
			message: "order placed",
			service: "checkout",
		},
		{
			name:    "second precision debug",
			line:    "[2025-06-15T12:30:45] [DEBUG] [auth] token refreshed",
			level:   logtypes.LevelDebug,
			message: "token refreshed",
			service: "auth",
		},
		{
			name:    "level token carried verbatim",
			line:    "[2025-06-15T12:30:45] [WARN] [gateway] slow upstream",
			level:   logtypes.LevelWarn,
			message: "slow upstream",
			service: "gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Parse(tt.line, "application.log")
			require.NotNil(t, rec)
			assert.Equal(t, tt.level, rec.Level)
			assert.Equal(t, tt.message, rec.Message)
			assert.Equal(t, tt.service, rec.Fields["service"])
			assert.Equal(t, "application.log", rec.Source)
			assert.NotZero(t, rec.TimestampNs)
		})
	}
}

func TestParseAppFormatTimestamp(t *testing.T) {
	rec := Parse("[2025-01-01T00:00:00Z] [ERROR] [svc] boom", "app.log")
	require.NotNil(t, rec)

	want := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	assert.Equal(t, want, rec.TimestampNs)
}

func TestParseTomcatFormat(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		level    logtypes.Level
	}{
		{"severe maps to error", "SEVERE", logtypes.LevelError},
		{"warning maps to warn", "WARNING", logtypes.LevelWarn},
		{"info stays info", "INFO", logtypes.LevelInfo},
		{"unknown severity maps to info", "FINEST", logtypes.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := fmt.Sprintf("02-Jan-2025 15:04:05.123 %s [http-nio-8080-exec-1] request handled", tt.severity)
			rec := Parse(line, "tomcat.log")
			require.NotNil(t, rec)
			assert.Equal(t, tt.level, rec.Level)
			assert.Equal(t, "request handled", rec.Message)
			assert.Equal(t, "tomcat", rec.Fields["service"])
			assert.Equal(t, "http-nio-8080-exec-1", rec.Fields["thread"])
		})
	}
}

func TestParseNginxFormat(t *testing.T) {
	tests := []struct {
		name   string
		status int
		level  logtypes.Level
	}{
		{"2xx is info", 200, logtypes.LevelInfo},
		{"3xx is info", 304, logtypes.LevelInfo},
		{"4xx is warn", 404, logtypes.LevelWarn},
		{"499 is warn", 499, logtypes.LevelWarn},
		{"500 is error", 500, logtypes.LevelError},
		{"503 is error", 503, logtypes.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := fmt.Sprintf(`10.0.0.1 - - [02/Jan/2025:15:04:05 +0000] "GET /api/v1/orders HTTP/1.1" %d 512 "-" "curl/8.0"`, tt.status)
			rec := Parse(line, "nginx.log")
			require.NotNil(t, rec)
			assert.Equal(t, tt.level, rec.Level)
			assert.Equal(t, fmt.Sprintf("GET /api/v1/orders HTTP/1.1 - Status: %d", tt.status), rec.Message)
			assert.Equal(t, "nginx", rec.Fields["service"])
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty line", ""},
		{"whitespace only", "   \t  "},
		{"no grammar match", "this is not a log line at all"},
		{"json payload", `{"msg":"hello","level":"info"}`},
		{"app shape with bad timestamp", "[not-a-time] [ERROR] [svc] boom"},
		{"tomcat shape with bad month", "02-Xyz-2025 15:04:05.123 SEVERE [main] oops"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Parse(tt.line, "any.log"))
		})
	}
}
