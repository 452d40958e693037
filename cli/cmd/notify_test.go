package cmd

import (
	"encoding/json"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mstream/cli/config"
	"github.com/pithecene-io/mstream/notify"
	"github.com/pithecene-io/mstream/notify/redis"
)

// newNotifyTestContext builds a CLI context with the notify flags. Only
// the entries of set are marked as explicitly set.
func newNotifyTestContext(t *testing.T, set map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = NotifyFlags()

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("notify", "", "")
	fs.String("notify-url", "", "")
	fs.String("notify-channel", "", "")
	fs.Duration("notify-timeout", 10*time.Second, "")
	fs.Int("notify-retries", 3, "")
	for name, val := range set {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}
	return cli.NewContext(app, fs, nil)
}

func TestParseNotifyConfig(t *testing.T) {
	five, zero := 5, 0
	tests := []struct {
		name    string
		set     map[string]string
		cfg     *config.Config
		kind    string
		want    notifyConfig
		wantErr string
	}{
		{
			name: "webhook from flags",
			set:  map[string]string{"notify-url": "https://hooks.example.com/mstream"},
			kind: notifyWebhook,
			want: notifyConfig{kind: notifyWebhook, url: "https://hooks.example.com/mstream", timeout: 10 * time.Second, retries: 3},
		},
		{
			name: "redis channel",
			set:  map[string]string{"notify-url": "redis://localhost:6379", "notify-channel": "docs"},
			kind: notifyRedis,
			want: notifyConfig{kind: notifyRedis, url: "redis://localhost:6379", channel: "docs", timeout: 10 * time.Second, retries: 3},
		},
		{
			name: "config provides url and retries",
			cfg:  &config.Config{Notify: config.NotifyConfig{URL: "https://from-config", Retries: &five, Timeout: config.Duration{Duration: time.Second}}},
			kind: notifyWebhook,
			want: notifyConfig{kind: notifyWebhook, url: "https://from-config", timeout: time.Second, retries: 5},
		},
		{
			name: "config retries zero",
			cfg:  &config.Config{Notify: config.NotifyConfig{URL: "https://from-config", Retries: &zero}},
			kind: notifyWebhook,
			want: notifyConfig{kind: notifyWebhook, url: "https://from-config", timeout: 10 * time.Second, retries: 0},
		},
		{
			name: "cli overrides config",
			set:  map[string]string{"notify-url": "https://cli", "notify-retries": "1"},
			cfg:  &config.Config{Notify: config.NotifyConfig{URL: "https://config", Retries: &five}},
			kind: notifyWebhook,
			want: notifyConfig{kind: notifyWebhook, url: "https://cli", timeout: 10 * time.Second, retries: 1},
		},
		{name: "missing url", kind: notifyRedis, wantErr: "--notify-url is required when --notify=redis"},
		{name: "unknown type", set: map[string]string{"notify-url": "x"}, kind: "kafka", wantErr: `unknown notify type "kafka"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNotifyConfig(newNotifyTestContext(t, tt.set), tt.cfg, tt.kind)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.kind != tt.want.kind || got.url != tt.want.url || got.channel != tt.want.channel ||
				got.timeout != tt.want.timeout || got.retries != tt.want.retries {
				t.Errorf("got %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseNotifyConfig_Headers(t *testing.T) {
	cfg := &config.Config{Notify: config.NotifyConfig{
		Headers: map[string]string{"X-Api-Key": "from-config", "X-Source": "mstream"},
	}}
	parse := func(args ...string) (*notifyConfig, error) {
		var got *notifyConfig
		var parseErr error
		app := cli.NewApp()
		app.Flags = NotifyFlags()
		app.Action = func(c *cli.Context) error {
			got, parseErr = parseNotifyConfig(c, cfg, notifyWebhook)
			return nil
		}
		if err := app.Run(append([]string{"test", "--notify-url", "https://example.com"}, args...)); err != nil {
			t.Fatalf("app.Run: %v", err)
		}
		return got, parseErr
	}

	got, err := parse("--notify-header", "X-Api-Key=from-flag")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.headers["X-Api-Key"] != "from-flag" || got.headers["X-Source"] != "mstream" {
		t.Errorf("headers = %v", got.headers)
	}

	if _, err := parse("--notify-header", "no-equals-sign"); err == nil || !strings.Contains(err.Error(), "key=value") {
		t.Errorf("expected key=value error, got %v", err)
	}
}

func TestBuild_NotifyWebhook(t *testing.T) {
	events := make(chan notify.DocumentStored, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev notify.DocumentStored
		if err := json.Unmarshal(body, &ev); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		events <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	ta := newTestApp("")
	err := ta.run(t, "build", "--field", "a=b", "--store", "upload", "--storage-backend", "memory",
		"--notify", "webhook", "--notify-url", ts.URL, "--stats", "--format", "json")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	ev := <-events
	if ev.EventType != notify.EventDocumentStored || ev.Name != "upload" || ev.Key != "documents/upload" || ev.Backend != "memory" {
		t.Errorf("unexpected event: %+v", ev)
	}
	var summary BuildSummary
	if err := json.Unmarshal(ta.stdout.Bytes(), &summary); err != nil {
		t.Fatalf("stats are not JSON: %v", err)
	}
	if summary.EventID != ev.EventID {
		t.Errorf("summary event_id = %q, want %q", summary.EventID, ev.EventID)
	}
}

func TestBuild_NotifyRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	sub := mr.NewSubscriber()
	sub.Subscribe(redis.DefaultChannel)
	msgs := make(chan miniredis.PubsubMessage, 1)
	go func() { msgs <- <-sub.Messages() }()

	cfgPath := writeFile(t, t.TempDir(), "mstream.yaml",
		"storage:\n  backend: memory\nnotify:\n  type: redis\n  url: redis://"+mr.Addr()+"\n")
	if err := newTestApp("").run(t, "build", "-c", cfgPath, "--field", "a=b", "--store", "upload"); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	select {
	case msg := <-msgs:
		if !strings.Contains(msg.Message, `"name":"upload"`) {
			t.Errorf("message = %s", msg.Message)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the event")
	}
}

func TestBuild_NotifyFailureDoesNotFailBuild(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	ta := newTestApp("")
	err := ta.run(t, "build", "--field", "a=b", "--store", "upload", "--storage-backend", "memory",
		"--notify", "webhook", "--notify-url", ts.URL)
	if err != nil {
		t.Fatalf("build must succeed once the document is stored: %v", err)
	}
	if !strings.Contains(ta.stderr.String(), "notification failed") {
		t.Errorf("expected a warning on stderr, got %q", ta.stderr.String())
	}
}

func TestBuild_NotifyRequiresStore(t *testing.T) {
	err := newTestApp("").run(t, "build", "--field", "a=b", "--notify", "webhook", "--notify-url", "http://x")
	if exitCode(err) != exitInvalidInput {
		t.Errorf("exit code = %d (%v)", exitCode(err), err)
	}
}
