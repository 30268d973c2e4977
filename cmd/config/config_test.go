package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"

	"chainhook/internal/testutil"
)

func TestLoadConfigDefault(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")
	if AppConfig.Bitcoin.Retention != 7 {
		t.Fatalf("unexpected bitcoin retention: %d", AppConfig.Bitcoin.Retention)
	}
	if AppConfig.Ingest.ListenAddr == "" {
		t.Fatalf("expected a default ingest listen address")
	}
}

func TestLoadConfigOverride(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir("../.."); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("development")
	if AppConfig.Bitcoin.Retention != 3 {
		t.Fatalf("expected bitcoin retention 3, got %d", AppConfig.Bitcoin.Retention)
	}
	if AppConfig.Logging.Level != "debug" {
		t.Fatalf("expected logging level override to debug, got %s", AppConfig.Logging.Level)
	}
}

func TestLoadConfigSandbox(t *testing.T) {
	sb, err := testutil.NewSandbox()
	if err != nil {
		t.Fatalf("NewSandbox failed: %v", err)
	}
	defer sb.Cleanup()

	if err := os.Mkdir(sb.Path("config"), 0700); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}

	data := []byte("bitcoin:\n  retention: 21\nlogging:\n  level: warn\n")
	if err := sb.WriteFile("config/default.yaml", data, 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	defer os.Chdir(wd)
	viper.Reset()

	if err := os.Chdir(sb.Root); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	LoadConfig("")

	if AppConfig.Bitcoin.Retention != 21 {
		t.Fatalf("expected bitcoin retention 21, got %d", AppConfig.Bitcoin.Retention)
	}
	if AppConfig.Logging.Level != "warn" {
		t.Fatalf("expected logging level warn, got %s", AppConfig.Logging.Level)
	}
}
