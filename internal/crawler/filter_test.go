package crawler

import "testing"

// TestMatchPattern tests glob pattern matching for URL paths.
func TestMatchPattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin", true},
		{"/admin/*", "/admin/users", true},
		{"/admin/*", "/administrator", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.pdf.html", false},
		{"/api/v?", "/api/v1", true},
		{"/api/v?", "/api/v10", false},
		{"/logout*", "/logout-now", true},
		{"logout*", "/account/logout", true},
		{"/exact", "/exact", true},
		{"/exact", "/exact/more", false},
		{"[", "/anything", false},
	}

	for _, tt := range tests {
		if got := matchPattern(tt.pattern, tt.path); got != tt.want {
			t.Errorf("matchPattern(%q, %q): expected %v, got %v", tt.pattern, tt.path, tt.want, got)
		}
	}
}

func TestPathFilter(t *testing.T) {
	t.Parallel()

	t.Run("empty filter allows everything", func(t *testing.T) {
		t.Parallel()

		var f pathFilter
		for _, p := range []string{"", "/", "/a/b", "/file.pdf"} {
			if !f.allows(p) {
				t.Errorf("expected %q to be allowed", p)
			}
		}
	})

	t.Run("ignore wins over follow", func(t *testing.T) {
		t.Parallel()

		f := pathFilter{
			ignore: []string{"/docs/private/*"},
			follow: []string{"/docs/*"},
		}
		if !f.allows("/docs/intro") {
			t.Error("expected /docs/intro to be allowed")
		}
		if f.allows("/docs/private/key") {
			t.Error("expected /docs/private/key to be ignored")
		}
		if f.allows("/blog") {
			t.Error("expected /blog to be outside the follow patterns")
		}
	})

	t.Run("empty path is the root", func(t *testing.T) {
		t.Parallel()

		f := pathFilter{follow: []string{"/"}}
		if !f.allows("") {
			t.Error("expected empty path to match /")
		}
	})
}
