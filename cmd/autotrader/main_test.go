package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestConfigPath(t *testing.T) {
	t.Setenv("AUTOTRADER_CONFIG", "")
	if got := configPath(""); got != "config.yaml" {
		t.Errorf("Expected config.yaml, got %s", got)
	}
	t.Setenv("AUTOTRADER_CONFIG", "/etc/autotrader.yaml")
	if got := configPath(""); got != "/etc/autotrader.yaml" {
		t.Errorf("Expected env path, got %s", got)
	}
	if got := configPath("local.yaml"); got != "local.yaml" {
		t.Errorf("Expected flag to win, got %s", got)
	}
}

func TestRunRejectsUnknownOperation(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", "liquidate_all"})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown operation") {
		t.Errorf("Expected unknown operation error, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.HasPrefix(out.String(), "autotrader ") {
		t.Errorf("Expected version line, got %q", out.String())
	}
}
