package lifecycle

import "testing"

func TestLifecycle(t *testing.T) {
	var nilLC *Lifecycle
	if !nilLC.Ready() || nilLC.IsDraining() {
		t.Fatalf("nil lifecycle should be ready and not draining")
	}

	lc := &Lifecycle{}
	if lc.Ready() {
		t.Fatalf("ready before start")
	}
	lc.MarkStarted()
	if !lc.Ready() {
		t.Fatalf("not ready after start")
	}
	lc.SetDraining(true)
	if lc.Ready() || !lc.IsDraining() {
		t.Fatalf("draining lifecycle should not be ready")
	}
}
