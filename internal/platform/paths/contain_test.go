package paths

import "testing"

func TestIsContained(t *testing.T) {
	roots := []string{"/media/movies", "/media/tv"}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{"inside first root", "/media/movies/a.mkv", true},
		{"inside second root, nested", "/media/tv/show/s01e01.mkv", true},
		{"exactly the root", "/media/movies", true},
		{"outside any root", "/other/place/a.mkv", false},
		{"sibling path with shared prefix", "/media/movies2/a.mkv", false},
		{"traversal outside the root", "/media/movies/../../etc/passwd", false},
		{"relative path rejected", "media/movies/a.mkv", false},
		{"reserved root rejected even if listed", "/etc", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := IsContained(c.path, roots); got != c.want {
				t.Errorf("IsContained(%q, %v) = %v, want %v", c.path, roots, got, c.want)
			}
		})
	}
}

func TestIsContained_ReservedRootAsAllowListedRoot(t *testing.T) {
	// Even if an operator misconfigures an allow-listed root to be a reserved
	// directory, containment must still reject it (spec.md §6).
	if IsContained("/etc/passwd", []string{"/etc"}) {
		t.Fatal("expected /etc/passwd to be rejected despite /etc being allow-listed")
	}
}

func TestValidateContained(t *testing.T) {
	roots := []string{"/media"}
	if err := ValidateContained("/media/a.mkv", roots); err != nil {
		t.Errorf("expected no error for contained path, got %v", err)
	}
	if err := ValidateContained("/srv/a.mkv", roots); err == nil {
		t.Error("expected an error for an uncontained path, got nil")
	}
}
