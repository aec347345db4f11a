package loadbalance

import (
	"fmt"
	"obj-rpc/registry"
	"testing"

	"github.com/pkg/errors"
)

var testInstances = []registry.Instance{
	{URL: "http://10.0.0.1:8080/Calc", Weight: 10, Version: "1.0"},
	{URL: "http://10.0.0.2:8080/Calc", Weight: 5, Version: "1.0"},
	{URL: "http://10.0.0.3:8080/Calc", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all instances
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		if inst.URL != testInstances[i].URL {
			t.Fatalf("expect %s, got %s", testInstances[i].URL, inst.URL)
		}
	}

	// Pick again, should wrap around to first
	inst, _ := b.Pick(testInstances)
	if inst.URL != testInstances[0].URL {
		t.Fatalf("expect wrap around to %s, got %s", testInstances[0].URL, inst.URL)
	}
}

func TestEmptyInstances(t *testing.T) {
	for _, b := range []Balancer{&RoundRobinBalancer{}, &WeightedRandomBalancer{}, NewConsistentHashBalancer("k")} {
		if _, err := b.Pick(nil); !errors.Is(err, ErrNoInstances) {
			t.Fatalf("%s: expect ErrNoInstances, got %v", b.Name(), err)
		}
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.URL]++
	}

	// Weight ratio is 10:5:10, so the first and third should be ~2x of the second
	ratio := float64(counts[testInstances[0].URL]) / float64(counts[testInstances[1].URL])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick([]registry.Instance{{URL: "a"}, {URL: "b"}})
	if err != nil || inst == nil {
		t.Fatalf("expect a pick with zero weights, got %v %v", inst, err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer("user-123")

	// Same key should always map to the same instance
	inst1, _ := b.Pick(testInstances)
	inst2, _ := b.Pick(testInstances)
	if inst1.URL != inst2.URL {
		t.Fatalf("same key mapped to different instances: %s vs %s", inst1.URL, inst2.URL)
	}

	// Different keys should (likely) map to different instances
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, _ := b.PickKey(testInstances, fmt.Sprintf("key-%d", i))
		seen[inst.URL] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}
}

func TestConsistentHashRebuild(t *testing.T) {
	b := NewConsistentHashBalancer("k")
	first, _ := b.Pick(testInstances[:1])
	if first.URL != testInstances[0].URL {
		t.Fatalf("expect the only instance, got %s", first.URL)
	}
	inst, _ := b.Pick(testInstances[1:2])
	if inst.URL != testInstances[1].URL {
		t.Fatalf("expect the ring to follow the new instance list, got %s", inst.URL)
	}
}

func TestNew(t *testing.T) {
	for name, want := range map[string]string{"": "RoundRobin", "weighted": "WeightedRandom", "hash:user": "ConsistentHash"} {
		b, err := New(name)
		if err != nil || b.Name() != want {
			t.Fatalf("New(%q) = %v, %v", name, b, err)
		}
	}
	if _, err := New("random"); err == nil {
		t.Fatal("expect an unknown balancer to fail")
	}
}
