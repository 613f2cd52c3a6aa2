package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// FixedFormatWriter turns zerolog JSON lines into fixed-width text lines:
//
//	2026-10-15 09:30:00.000 [INF] [engine      ] Stopped service service=Spooler
//	2026-10-15 09:30:05.120 [WRN] [engine      ] Service disqualified service=SSDPSRV reason="access denied"
type FixedFormatWriter struct {
	w io.Writer
}

// NewFixedFormatWriter wraps w.
func NewFixedFormatWriter(w io.Writer) *FixedFormatWriter {
	return &FixedFormatWriter{w: w}
}

const (
	componentWidth  = 12
	timestampLayout = "2006-01-02 15:04:05.000"
)

var levelAbbrev = map[string]string{
	"trace": "TRC",
	"debug": "DBG",
	"info":  "INF",
	"warn":  "WRN",
	"error": "ERR",
	"fatal": "FTL",
	"panic": "PNC",
}

// skipped fields are either rendered in the fixed columns or dropped.
var skipped = map[string]bool{
	"time":      true,
	"level":     true,
	"component": true,
	"message":   true,
	"caller":    true,
}

func (f *FixedFormatWriter) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		return f.w.Write(p)
	}

	lvl, ok := levelAbbrev[stringField(fields, "level")]
	if !ok {
		lvl = "???"
	}

	comp := stringField(fields, "component")
	if len(comp) > componentWidth {
		comp = comp[:componentWidth]
	}

	var b strings.Builder
	b.WriteString(formatTimestamp(stringField(fields, "time")))
	fmt.Fprintf(&b, " [%s] [%-*s] %s", lvl, componentWidth, comp, stringField(fields, "message"))
	if extra := formatExtra(fields); extra != "" {
		b.WriteByte(' ')
		b.WriteString(extra)
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(f.w, b.String()); err != nil {
		return 0, err
	}
	// zerolog treats a short count as a failed write.
	return len(p), nil
}

func stringField(fields map[string]interface{}, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatTimestamp renders an RFC3339 timestamp in the writer's 23-column layout,
// keeping the wall clock of the original offset.
func formatTimestamp(ts string) string {
	if ts == "" {
		return strings.Repeat(" ", len(timestampLayout))
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		if len(ts) >= len(timestampLayout) {
			return ts[:len(timestampLayout)]
		}
		return ts + strings.Repeat(" ", len(timestampLayout)-len(ts))
	}
	return t.Format(timestampLayout)
}

// formatExtra renders the remaining fields as sorted key=value pairs.
func formatExtra(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if !skipped[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		s := stringField(fields, k)
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			parts = append(parts, fmt.Sprintf("%s=%q", k, s))
		} else {
			parts = append(parts, k+"="+s)
		}
	}
	return strings.Join(parts, " ")
}
