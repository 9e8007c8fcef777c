package handlers

import "testing"

func TestNewRootCmd(t *testing.T) {
	root := NewRootCmd()

	want := []string{"fetch", "triage", "deep", "compare", "related", "backfill", "articles", "stats", "serve", "migrate"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}

	for _, sub := range []string{"up", "status", "down"} {
		if cmd, _, err := root.Find([]string{"migrate", sub}); err != nil || cmd.Name() != sub {
			t.Errorf("expected migrate %s to be registered", sub)
		}
	}

	if root.PersistentFlags().Lookup("memory") == nil {
		t.Error("expected --memory flag")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Clarín", 10, "Clarín"},
		{"La Izquierda Diario", 8, "La Izqu…"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
