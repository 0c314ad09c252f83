package sendfile

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Level: "warn", Out: &buf})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("k", "v").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("lines: %q", lines)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("json: %v", err)
	}
	if rec["message"] != "shown" || rec["k"] != "v" || rec["level"] != "warn" {
		t.Fatalf("record: %v", rec)
	}
}

func TestNewLogger_Errors(t *testing.T) {
	if _, err := NewLogger(LogConfig{Level: "loud"}); err == nil {
		t.Fatalf("bad level accepted")
	}
	if _, err := NewLogger(LogConfig{Format: "xml"}); err == nil {
		t.Fatalf("bad format accepted")
	}
	if _, err := NewLogger(LogConfig{Format: "console", Out: &bytes.Buffer{}}); err != nil {
		t.Fatalf("console: %v", err)
	}
}

func TestRouter_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	log, _ := NewLogger(LogConfig{Level: "debug", Out: &buf})
	r := NewRouter()
	r.Config().SetLogger(log)

	_, _, c := serve(r, MapParams{ParamScriptName: "/sendfile/", ParamQueryString: "filename=/does/not/exist"})

	out := buf.String()
	for _, want := range []string{`"req_id":"` + c.ID + `"`, `"outcome":"not_found"`, `"status":404`, `"path":"/does/not/exist"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s: %s", want, out)
		}
	}
}
