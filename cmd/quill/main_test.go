package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/quillchat/quill/internal/config"
)

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"version"}); err != nil {
		t.Fatalf("run(version) error: %v", err)
	}
	if !strings.Contains(out.String(), "Quill") {
		t.Errorf("version output missing name: %q", out.String())
	}
}

func TestRun_VersionJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run(version) error: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version JSON invalid: %v", err)
	}
	if info["version"] == "" {
		t.Error("version field empty")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("error = %v, want unknown command", err)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown flag") {
		t.Errorf("error = %v, want unknown flag", err)
	}
}

func TestRun_UnknownOutputFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"-o", "xml", "version"})
	if err == nil || !strings.Contains(err.Error(), "output format") {
		t.Errorf("error = %v, want output format error", err)
	}
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, nil); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	if !strings.Contains(out.String(), "Usage:") {
		t.Errorf("usage output missing: %q", out.String())
	}
}

func TestRun_AskRequiresDocuments(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, []string{"ask", "hello"})
	if err == nil || !strings.Contains(err.Error(), "-card") {
		t.Errorf("error = %v, want document usage", err)
	}
}

func TestCreateClient(t *testing.T) {
	tests := []struct {
		name     string
		provider config.ProviderConfig
		wantErr  bool
	}{
		{"gemini", config.ProviderConfig{Name: "gemini", APIKey: "k"}, false},
		{"gemini default", config.ProviderConfig{APIKey: "k"}, false},
		{"gemini no key", config.ProviderConfig{Name: "gemini"}, true},
		{"openai", config.ProviderConfig{Name: "openai", APIKey: "k"}, false},
		{"anthropic", config.ProviderConfig{Name: "anthropic", APIKey: "k"}, false},
		{"unknown", config.ProviderConfig{Name: "cohere", APIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Provider = tt.provider
			_, err := createClient(cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("createClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
