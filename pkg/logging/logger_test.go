package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"WARNING", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"unknown", logrus.InfoLevel},
		{"", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := ParseLevel(tt.level); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.expected)
			}
		})
	}
}

func TestInit_WithLogFile(t *testing.T) {
	Logger = logrus.New()
	logFile := filepath.Join(t.TempDir(), "nested", "crimeapp.log")

	if err := Init("debug", logFile, "text"); err != nil {
		t.Fatalf("Init with log file failed: %v", err)
	}
	if Logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected debug level, got %v", Logger.GetLevel())
	}

	Info("written to file")
	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Error("message missing from log file")
	}
}

func TestInit_JSONFormat(t *testing.T) {
	Logger = logrus.New()
	if err := Init("info", "", "json"); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	var buf bytes.Buffer
	Logger.SetOutput(&buf)
	Component("session").WithField("frame", 7).Info("frame processed")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["component"] != "session" {
		t.Errorf("expected component=session, got %v", entry["component"])
	}
	if entry["msg"] != "frame processed" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Logger = logrus.New()
	Logger.SetOutput(&buf)
	Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	Component("gallery").Info("built")

	output := buf.String()
	if !strings.Contains(output, "component=gallery") {
		t.Error("component field not in output")
	}
	if !strings.Contains(output, "built") {
		t.Error("message not in output")
	}
}

func TestLogLevel_Filtering(t *testing.T) {
	var buf bytes.Buffer
	Logger = logrus.New()
	Logger.SetOutput(&buf)
	Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	SetLevel("error")

	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warnf("warn %d", 3)
	if buf.Len() > 0 {
		t.Errorf("expected nothing below error level, got %q", buf.String())
	}

	Errorf("error %d", 4)
	if !strings.Contains(buf.String(), "error 4") {
		t.Error("Errorf should be logged at error level")
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	Logger = logrus.New()
	Logger.SetOutput(&buf)
	Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	WithError(os.ErrNotExist).WithFields(Fields{"identity": "A-1"}).Error("load failed")

	output := buf.String()
	for _, want := range []string{"file does not exist", "identity=A-1", "load failed"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in %q", want, output)
		}
	}
}
