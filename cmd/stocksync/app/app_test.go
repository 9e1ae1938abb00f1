package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocksync/internal/cmd/application"
	"github.com/agentstation/stocksync/internal/config"
	"github.com/agentstation/stocksync/internal/notify"
	"github.com/agentstation/stocksync/internal/platform"
	"github.com/agentstation/stocksync/pkg/runlog"
)

func testApp(t *testing.T, file string) *App {
	t.Helper()
	logger := zerolog.Nop()
	app, err := New("1.0.0", "abc123", "2024-01-01", "test",
		WithConfig(&Config{ConfigFile: filepath.Join("testdata", file)}),
		WithLogger(&logger),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return app
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if app.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", app.Version())
	}
	if app.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", app.Commit())
	}
	if app.Date() != "2024-01-01" {
		t.Errorf("Date() = %s, want 2024-01-01", app.Date())
	}
	if app.BuiltBy() != "test" {
		t.Errorf("BuiltBy() = %s, want test", app.BuiltBy())
	}
	if app.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if app.Config() == nil {
		t.Error("Config() returned nil")
	}
	if app.Suppliers() == nil {
		t.Error("Suppliers() returned nil")
	}
	if !app.KnownDriver("dealer_api") || app.KnownDriver("fax_machine") {
		t.Error("KnownDriver() does not reflect the driver registry")
	}
}

// TestApp_Settings loads the config file named by --config.
func TestApp_Settings(t *testing.T) {
	app := testApp(t, "stocksync.yaml")

	s, err := app.Settings()
	if err != nil {
		t.Fatalf("Settings() failed: %v", err)
	}
	if len(s.Suppliers) != 1 || s.Suppliers[0].Name != "acme" {
		t.Errorf("Suppliers = %+v, want [acme]", s.Suppliers)
	}
	if s.LogDir != "var/logs" {
		t.Errorf("LogDir = %q, want var/logs", s.LogDir)
	}
}

// TestApp_Settings_UnknownDriver rejects drivers missing from the registry.
func TestApp_Settings_UnknownDriver(t *testing.T) {
	app := testApp(t, "unknown_driver.yaml")

	if _, err := app.Settings(); err == nil {
		t.Fatal("Settings() succeeded with an unknown driver")
	}
	if _, err := app.Platform(); err == nil {
		t.Fatal("Platform() succeeded without settings")
	}
}

// TestApp_Notifier builds a notifier only when e-mail is configured.
func TestApp_Notifier(t *testing.T) {
	n, err := testApp(t, "stocksync.yaml").Notifier()
	if err != nil {
		t.Fatalf("Notifier() failed: %v", err)
	}
	if n != nil {
		t.Error("Notifier() returned a notifier without e-mail settings")
	}

	s := &config.Config{Email: notify.Config{SMTPHost: "smtp.example.com", Username: "robot", To: []string{"ops@example.com"}}}
	logger := zerolog.Nop()
	app, err := New("1.0.0", "abc123", "2024-01-01", "test", WithLogger(&logger), WithSettings(s))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if n, err = app.Notifier(); err != nil || n == nil {
		t.Errorf("Notifier() = %v, %v; want a notifier", n, err)
	}
}

// TestApp_Platform_ThreadSafe verifies concurrent Platform() calls share one client.
func TestApp_Platform_ThreadSafe(t *testing.T) {
	app := testApp(t, "stocksync.yaml")

	const goroutines = 50
	var wg sync.WaitGroup
	clients := make([]*platform.Client, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			clients[idx], errs[idx] = app.Platform()
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: Platform() failed: %v", i, errs[i])
		}
		if clients[i] != clients[0] {
			t.Errorf("goroutine %d got a different client", i)
		}
	}
}

// TestApp_Execute runs commands through the root command.
func TestApp_Execute(t *testing.T) {
	app := testApp(t, "stocksync.yaml")

	if err := app.Execute(context.Background(), []string{"version"}); err != nil {
		t.Errorf("version failed: %v", err)
	}
	if err := app.Execute(context.Background(), []string{"--format", "xml", "version"}); err == nil {
		t.Error("invalid --format accepted")
	}
	if err := app.Execute(context.Background(), []string{"frobnicate"}); err == nil {
		t.Error("unknown command accepted")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "run failure", err: &application.ExitError{Status: runlog.Failure, Path: "x.json"}, want: 1},
		{name: "warnings", err: &application.ExitError{Status: runlog.SuccessWithWarnings}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
