package app

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{[]string{}, CommandServe},
		{[]string{"serve"}, CommandServe},
		{[]string{"stats"}, CommandStats},
		{[]string{"stats", "2024-03-15"}, CommandStats},
		{[]string{"lookup", "u-1"}, CommandLookup},
		{[]string{"healthcheck"}, CommandHealthcheck},
		{[]string{"unknown"}, CommandServe},
	}

	for _, tt := range tests {
		if got := ParseCommand(tt.args); got != tt.want {
			t.Errorf("ParseCommand(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestCommandArgs(t *testing.T) {
	if got := commandArgs([]string{"lookup"}); got != nil {
		t.Errorf("commandArgs([lookup]) = %v, want nil", got)
	}
	got := commandArgs([]string{"lookup", "a@example.com", "extra"})
	if len(got) != 2 || got[0] != "a@example.com" {
		t.Errorf("commandArgs = %v, want [a@example.com extra]", got)
	}
}

func TestCommand_IsOneShot(t *testing.T) {
	tests := []struct {
		cmd  Command
		want bool
	}{
		{CommandServe, false},
		{CommandStats, true},
		{CommandLookup, true},
		{CommandHealthcheck, false},
	}

	for _, tt := range tests {
		if got := tt.cmd.isOneShot(); got != tt.want {
			t.Errorf("%q.isOneShot() = %v, want %v", tt.cmd, got, tt.want)
		}
	}
}
