package main

import "testing"

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"serve", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Fatalf("expected %q subcommand, got %v (%v)", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup("env-file") == nil {
		t.Fatal("expected --env-file flag")
	}
}

func TestBodyLimit(t *testing.T) {
	if got := bodyLimit(5 << 20); got != "6144K" {
		t.Fatalf("expected 6144K, got %s", got)
	}
}
