package main

import "testing"

func TestMigrateCmdSubcommands(t *testing.T) {
	cmd := migrateCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"up", "status"} {
		if !names[want] {
			t.Errorf("expected migrate subcommand %q", want)
		}
	}
}

func TestServeCmd(t *testing.T) {
	cmd := serveCmd()
	if cmd.Use != "serve" {
		t.Errorf("expected serve command, got %q", cmd.Use)
	}
	if cmd.RunE == nil {
		t.Error("expected serve command to have a run function")
	}
}
