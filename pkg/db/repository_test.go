package db

import (
	"errors"
	"fmt"
	"testing"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"orders/", "orders/"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`c:\tmp`, `c:\\tmp`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("db:repository_test - escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrRevisionConflict_Wrapped(t *testing.T) {
	err := fmt.Errorf("%s - put a/b: %w", repoLogPrefix, ErrRevisionConflict)
	if !errors.Is(err, ErrRevisionConflict) {
		t.Errorf("db:repository_test - wrapped error does not match ErrRevisionConflict")
	}
}
