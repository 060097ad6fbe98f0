package monitoring

import "testing"

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) { got = format })
	Logf("rejected %d samples", 3)
	if got != "rejected %d samples" {
		t.Errorf("custom logger not invoked, got %q", got)
	}

	// Nil installs a no-op logger rather than panicking.
	SetLogger(nil)
	Logf("dropped on the floor")

	called := false
	SetLogger(func(string, ...interface{}) { called = true })
	Logf("back on")
	if !called {
		t.Error("replacement logger not invoked after nil")
	}
}

func TestLogfDefaultNotNil(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf must have a usable default")
	}
}
