package commsutil

import "testing"

func TestBuildStageSubject(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		stage string
		want  string
	}{
		{"default base", SubjectLifecycle, "afterInteraction", "dbi.lifecycle.afterInteraction"},
		{"custom base", "bots.events", "eventError", "bots.events.eventError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildStageSubject(tt.base, tt.stage)
			if got != tt.want {
				t.Errorf("BuildStageSubject(%q, %q) = %q, want %q", tt.base, tt.stage, got, tt.want)
			}
		})
	}
}

func TestBuildHandlerSubject(t *testing.T) {
	tests := []struct {
		name    string
		handler string
		want    string
	}{
		{"simple", "ping", "dbi.lifecycle.afterInteraction.ping"},
		{"hierarchical", "config set prefix", "dbi.lifecycle.afterInteraction.config_set_prefix"},
		{"dotted", "a.b", "dbi.lifecycle.afterInteraction.a_b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildHandlerSubject(SubjectLifecycle, "afterInteraction", tt.handler)
			if got != tt.want {
				t.Errorf("BuildHandlerSubject(%q) = %q, want %q", tt.handler, got, tt.want)
			}
		})
	}
}
