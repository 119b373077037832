package volren

import "testing"

func TestStateSubscribeImmediate(t *testing.T) {
	s := NewState(3)
	var got []int
	cancel := s.Subscribe(func(v int) { got = append(got, v) })
	defer cancel()
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("subscriber must see the current value immediately, got %v", got)
	}
}

func TestStateNotifiesOnSet(t *testing.T) {
	s := NewState("a")
	var got []string
	cancel := s.Subscribe(func(v string) { got = append(got, v) })
	s.set("b")
	s.set("c")
	cancel()
	s.set("d")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", got, want)
		}
	}
	if s.Get() != "d" {
		t.Errorf("Get() = %q, want latest value after cancel", s.Get())
	}
}

func TestStateMultipleSubscribers(t *testing.T) {
	s := NewState(0)
	n1, n2 := 0, 0
	c1 := s.Subscribe(func(int) { n1++ })
	c2 := s.Subscribe(func(int) { n2++ })
	s.set(1)
	c1()
	s.set(2)
	c2()
	if n1 != 2 {
		t.Errorf("first subscriber saw %d notifications, want 2", n1)
	}
	if n2 != 3 {
		t.Errorf("second subscriber saw %d notifications, want 3", n2)
	}
}
