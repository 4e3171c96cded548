package wirechannel

import "testing"

func TestSpinCountFallbackChain(t *testing.T) {
	t.Setenv("VEOS_COSIM_SPIN_COUNT", "5")
	if n := SpinCountFallbackChain("", "", ""); n != 5 {
		t.Fatalf("want 5, got %d", n)
	}

	t.Setenv("VEOS_COSIM_SPIN_COUNT_demo", "10")
	if n := SpinCountFallbackChain("demo", "", ""); n != 10 {
		t.Fatalf("want 10, got %d", n)
	}

	t.Setenv("VEOS_COSIM_SPIN_COUNT_demo.client", "20")
	if n := SpinCountFallbackChain("demo", "client", ""); n != 20 {
		t.Fatalf("want 20, got %d", n)
	}

	t.Setenv("VEOS_COSIM_SPIN_COUNT_demo.client.rx", "30")
	if n := SpinCountFallbackChain("demo", "client", "rx"); n != 30 {
		t.Fatalf("want 30, got %d", n)
	}
}

func TestSpinCountFallbackChainDefaultsToZero(t *testing.T) {
	if n := SpinCountFallbackChain("nothing", "set", "here"); n != 0 {
		t.Fatalf("want 0, got %d", n)
	}
}

func TestAffinityMaskParsesHexAndDecimal(t *testing.T) {
	t.Setenv("VEOS_COSIM_AFFINITY_MASK", "0xF")
	if mask, ok := AffinityMask(); !ok || mask != 0xF {
		t.Fatalf("want 0xF, got %#x ok=%v", mask, ok)
	}

	t.Setenv("VEOS_COSIM_AFFINITY_MASK", "12")
	if mask, ok := AffinityMask(); !ok || mask != 12 {
		t.Fatalf("want 12, got %d ok=%v", mask, ok)
	}
}

func TestAffinityMaskUnsetReturnsFalse(t *testing.T) {
	if _, ok := AffinityMask(); ok {
		t.Fatalf("expected ok=false when unset")
	}
}
