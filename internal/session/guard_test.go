package session

import "testing"

func TestGuard_TagLifecycle(t *testing.T) {
	g := NewGuard()

	tag := g.Capture()
	if !tag.Live() {
		t.Fatal("fresh tag is not live")
	}

	g.Bump()
	if tag.Live() {
		t.Fatal("tag survived a bump")
	}

	next := g.Capture()
	if !next.Live() {
		t.Fatal("tag captured after bump is not live")
	}
	if tag.Live() {
		t.Fatal("old tag resurrected")
	}
}

func TestGuard_ZeroTagNeverLive(t *testing.T) {
	var tag Tag
	if tag.Live() {
		t.Fatal("zero tag reports live")
	}
}

func TestGuard_MultipleOutstandingTags(t *testing.T) {
	g := NewGuard()

	a := g.Capture()
	b := g.Capture()
	if !a.Live() || !b.Live() {
		t.Fatal("concurrent tags from the same epoch should both be live")
	}

	g.Bump()
	if a.Live() || b.Live() {
		t.Fatal("bump must invalidate every outstanding tag")
	}
}
