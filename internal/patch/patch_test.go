package patch

import "testing"

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"src/app.py", "src/app.py"},
		{"./src/app.py", "src/app.py"},
		{"src\\app.py", "src/app.py"},
		{".\\src\\app.py", "src/app.py"},
	}
	for _, c := range cases {
		if got := NormalizePath(c.in); got != c.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDedupe_FirstWins(t *testing.T) {
	patches := []Patch{
		{File: "src/app.py", Line: 3, Category: CategorySyntax, NewText: "def f():"},
		{File: "./src/app.py", Line: 3, Category: CategoryImport},
		{File: "src/app.py", Line: 7, Category: CategoryLint},
	}
	out := Dedupe(patches)
	if len(out) != 2 {
		t.Fatalf("expected 2 patches after dedupe, got %d", len(out))
	}
	if out[0].Category != CategorySyntax {
		t.Errorf("expected first occurrence to win, got category %q", out[0].Category)
	}
	if out[1].Line != 7 {
		t.Errorf("expected distinct line to survive, got line %d", out[1].Line)
	}
}

func TestDedupe_NormalizesStoredPath(t *testing.T) {
	out := Dedupe([]Patch{{File: ".\\src\\app.py", Line: 1}})
	if out[0].File != "src/app.py" {
		t.Errorf("stored path = %q, want normalized form", out[0].File)
	}
}

func TestDedupe_Empty(t *testing.T) {
	if out := Dedupe(nil); len(out) != 0 {
		t.Errorf("expected empty result, got %d", len(out))
	}
}
