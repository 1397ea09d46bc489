package source

import (
	"testing"
)

// TestRegister 测试注册和覆盖
func TestRegister(t *testing.T) {
	Register("test-venue", nil)
	if _, ok := Get("test-venue"); ok {
		t.Fatal("nil factory should not be registered")
	}

	calls := 0
	Register("test-venue", func(deps Deps) Adapter { calls++; return Adapter{} })
	Register("test-venue", func(deps Deps) Adapter { calls += 10; return Adapter{} })
	f, ok := Get("test-venue")
	if !ok {
		t.Fatal("factory not found")
	}
	f(Deps{})
	if calls != 10 {
		t.Errorf("expected overwritten factory, calls=%d", calls)
	}

	found := false
	for _, n := range Names() {
		if n == "test-venue" {
			found = true
		}
	}
	if !found {
		t.Error("Names missing test-venue")
	}
	delete(registry, "test-venue")
}
