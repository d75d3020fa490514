package core

import "testing"

func TestValidateName(t *testing.T) {
	cases := map[string]bool{
		"web-1":       true,
		"a":           true,
		"UPPER":       false,
		"has space":   false,
		"":            false,
		"trailing-":   true,
		"under_score": false,
	}
	for name, want := range cases {
		if got := ValidateName(name); got != want {
			t.Errorf("ValidateName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestGenerateHandleAvoidsTaken(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 50; i++ {
		handle, err := generateHandle(func(h string) bool { return taken[h] })
		if err != nil {
			t.Fatalf("generateHandle: %v", err)
		}
		if taken[handle] {
			t.Fatalf("generateHandle returned an already-taken handle: %s", handle)
		}
		if !ValidateName(handle) {
			t.Fatalf("generated handle %q does not satisfy ValidateName", handle)
		}
		taken[handle] = true
	}
}

func TestGenerateHandleExhaustion(t *testing.T) {
	_, err := generateHandle(func(string) bool { return true })
	if err == nil {
		t.Fatalf("expected an error when every handle is reported taken")
	}
	if KindOf(err) != ErrorKindInternal {
		t.Fatalf("expected ErrorKindInternal, got %v", KindOf(err))
	}
}
