package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/motion.report/internal/serialmux"
)

func TestFlagDefaults(t *testing.T) {
	if *listen != ":8080" {
		t.Errorf("listen default = %q", *listen)
	}
	if *portOptions != "115200,8,N,1" {
		t.Errorf("port-options default = %q", *portOptions)
	}
	if *dbPath != "motion.db" {
		t.Errorf("db default = %q", *dbPath)
	}
	if *redisAddr != "" || *mqttBroker != "" {
		t.Error("publishing sinks should be disabled by default")
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig(\"\"): %v", err)
	}
	if got := cfg.GetUpdateInterval(); got != time.Second {
		t.Errorf("default update interval = %v", got)
	}

	path := filepath.Join(t.TempDir(), "movement.json")
	if err := os.WriteFile(path, []byte(`{"sample_size": 20, "device_id": "bench"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig(%q): %v", path, err)
	}
	if cfg.GetSampleSize() != 20 || cfg.GetDeviceID() != "bench" {
		t.Errorf("loaded config = %+v", cfg)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func setFlag(t *testing.T, p *bool, v bool) {
	t.Helper()
	prev := *p
	*p = v
	t.Cleanup(func() { *p = prev })
}

func TestOpenIMU(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		setFlag(t, disableIMU, true)
		imu, err := openIMU()
		if err != nil {
			t.Fatal(err)
		}
		defer imu.Close()
		if _, ok := imu.(*serialmux.DisabledSerialMux); !ok {
			t.Errorf("openIMU() = %T, want *DisabledSerialMux", imu)
		}
	})

	t.Run("dev", func(t *testing.T) {
		setFlag(t, devMode, true)
		imu, err := openIMU()
		if err != nil {
			t.Fatal(err)
		}
		defer imu.Close()
		if _, ok := imu.(*serialmux.SerialMux[*serialmux.SyntheticPort]); !ok {
			t.Errorf("openIMU() = %T, want synthetic mux", imu)
		}
	})

	t.Run("dev with bad pattern", func(t *testing.T) {
		setFlag(t, devMode, true)
		prev := *devPattern
		*devPattern = "swimming"
		t.Cleanup(func() { *devPattern = prev })
		if _, err := openIMU(); err == nil {
			t.Error("expected error for unknown pattern")
		}
	})

	t.Run("bad port options", func(t *testing.T) {
		prev := *portOptions
		*portOptions = "115200,8,Q,1"
		t.Cleanup(func() { *portOptions = prev })
		if _, err := openIMU(); err == nil {
			t.Error("expected error for invalid parity")
		}
	})
}
