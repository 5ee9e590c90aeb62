package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/edgefleet/logship/pkg/logtypes"
)

// The three supported line grammars, tried in priority order. The first
// grammar whose shape matches governs the parse; a shape match with an
// unparseable timestamp rejects the line rather than falling through.
var (
	// [2025-01-01T00:00:00Z] [ERROR] [checkout] payment declined
	appRegex = regexp.MustCompile(`^\[([^\]]+)\]\s+\[(\S+)\]\s+\[([^\]]+)\]\s+(.*)`)

	// 02-Jan-2025 15:04:05.123 SEVERE [http-nio-8080-exec-1] request failed
	tomcatRegex = regexp.MustCompile(`^(\d{2}-[A-Za-z]{3}-\d{4}\s+\d{2}:\d{2}:\d{2}\.\d{3})\s+(\S+)\s+\[([^\]]+)\]\s+(.*)`)

	// 10.0.0.1 - - [02/Jan/2025:15:04:05 +0000] "GET /api HTTP/1.1" 200 512 "-" "curl"
	nginxRegex = regexp.MustCompile(`^(\S+)\s+-\s+-\s+\[([^\]]+)\]\s+"(\S+)\s+(\S+)\s+(\S+)"\s+(\d+)\s+(\d+)\s+"([^"]*)"\s+"([^"]*)"`)
)

var appTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
}

const (
	tomcatTimeLayout = "02-Jan-2006 15:04:05.000"
	nginxTimeLayout  = "02/Jan/2006:15:04:05 -0700"
)

// Parse turns one raw log line into a normalized Record. It returns nil
// for empty lines, lines matching no grammar, and lines whose embedded
// timestamp cannot be parsed. There is no wall-clock fallback: a record
// either carries the event time from the line or does not exist, so
// corrupted timestamps can never skew sampling or downstream queries.
func Parse(line, source string) *logtypes.Record {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if m := appRegex.FindStringSubmatch(line); m != nil {
		return parseApp(m, source)
	}
	if m := tomcatRegex.FindStringSubmatch(line); m != nil {
		return parseTomcat(m, source)
	}
	if m := nginxRegex.FindStringSubmatch(line); m != nil {
		return parseNginx(m, source)
	}
	return nil
}

// parseApp handles the structured application format
// [timestamp] [LEVEL] [service] message. The level token is carried
// verbatim and the service token is preserved in Fields.
func parseApp(m []string, source string) *logtypes.Record {
	var ts time.Time
	var err error
	for _, layout := range appTimeLayouts {
		ts, err = time.Parse(layout, m[1])
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil
	}

	return &logtypes.Record{
		TimestampNs: ts.UnixNano(),
		Level:       logtypes.Level(m[2]),
		Message:     m[4],
		Source:      source,
		Fields:      map[string]string{"service": m[3]},
	}
}

// parseTomcat handles the server-process format. Its severity vocabulary
// (SEVERE, WARNING, ...) maps onto the four canonical levels; anything
// unrecognized is INFO.
func parseTomcat(m []string, source string) *logtypes.Record {
	ts, err := time.Parse(tomcatTimeLayout, m[1])
	if err != nil {
		return nil
	}

	var level logtypes.Level
	switch m[2] {
	case "SEVERE":
		level = logtypes.LevelError
	case "WARNING":
		level = logtypes.LevelWarn
	default:
		level = logtypes.LevelInfo
	}

	return &logtypes.Record{
		TimestampNs: ts.UnixNano(),
		Level:       level,
		Message:     m[4],
		Source:      source,
		Fields: map[string]string{
			"service": "tomcat",
			"thread":  m[3],
		},
	}
}

// parseNginx handles the access-log format. It has no level token, so
// severity is derived from the status code and the message is
// synthesized from the request line.
func parseNginx(m []string, source string) *logtypes.Record {
	ts, err := time.Parse(nginxTimeLayout, m[2])
	if err != nil {
		return nil
	}

	status, err := strconv.Atoi(m[6])
	if err != nil {
		return nil
	}

	var level logtypes.Level
	switch {
	case status >= 500:
		level = logtypes.LevelError
	case status >= 400:
		level = logtypes.LevelWarn
	default:
		level = logtypes.LevelInfo
	}

	return &logtypes.Record{
		TimestampNs: ts.UnixNano(),
		Level:       level,
		Message:     fmt.Sprintf("%s %s %s - Status: %d", m[3], m[4], m[5], status),
		Source:      source,
		Fields: map[string]string{
			"service": "nginx",
			"status":  m[6],
		},
	}
}
