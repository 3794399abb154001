package commsutil

import "testing"

func TestBuildChangeSubject(t *testing.T) {
	tests := []struct {
		name       string
		global     string
		collection string
		want       string
	}{
		{"default global", "", "pets", "documents.changed.pets"},
		{"custom global", "acme.changed", "pets", "acme.changed.pets"},
		{"dotted collection", "", "zoo.animals", "documents.changed.zoo_animals"},
		{"wildcards", "", "a*b>c", "documents.changed.a_b_c"},
		{"empty collection", "", "", "documents.changed._"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildChangeSubject(tt.global, tt.collection)
			if got != tt.want {
				t.Errorf("commsutil:subjects_test - BuildChangeSubject(%q, %q) = %q, want %q", tt.global, tt.collection, got, tt.want)
			}
		})
	}
}
