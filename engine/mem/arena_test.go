package mem

import "testing"

func TestArena_AllocDoesNotAlias(t *testing.T) {
	a := NewArena[int]()
	x := a.Alloc(4)
	y := a.Alloc(4)
	for i := range x {
		x[i] = 1
	}
	for i, v := range y {
		if v != 0 {
			t.Fatalf("y[%d] = %d, want 0", i, v)
		}
	}

	// Appending to x must not spill into y.
	x = a.Append(x, 9)
	if y[0] != 0 {
		t.Errorf("append to x overwrote y[0] = %d", y[0])
	}
	if len(x) != 5 || x[4] != 9 {
		t.Errorf("x = %v, want 5 elements ending in 9", x)
	}
}

func TestArena_LargeAllocation(t *testing.T) {
	a := NewArena[byte]()
	s := a.Alloc(minSlabSize*3 + 1)
	if len(s) != minSlabSize*3+1 {
		t.Errorf("len = %d, want %d", len(s), minSlabSize*3+1)
	}
	if a.Cap() < len(s) {
		t.Errorf("Cap() = %d smaller than allocation", a.Cap())
	}
}

func TestArena_ResetReusesMemory(t *testing.T) {
	a := NewArena[int]()
	s := a.Alloc(10)
	s[0] = 42
	before := a.Cap()

	a.Reset()
	s2 := a.Alloc(10)
	if s2[0] != 0 {
		t.Errorf("memory not cleared after Reset: s2[0] = %d", s2[0])
	}
	if a.Cap() != before {
		t.Errorf("Cap() = %d after Reset, want %d", a.Cap(), before)
	}
}

func TestFrameArena_Schedule(t *testing.T) {
	fa := NewFrameArena()
	sched := fa.Schedule(3)
	fa.Push(sched, 0, 10)
	fa.Push(sched, 2, 20)
	fa.Push(sched, 0, 11)

	tests := []struct {
		pass int
		want []int
	}{
		{0, []int{10, 11}},
		{1, nil},
		{2, []int{20}},
	}
	for _, tt := range tests {
		got := sched[tt.pass]
		if len(got) != len(tt.want) {
			t.Errorf("sched[%d] = %v, want %v", tt.pass, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("sched[%d] = %v, want %v", tt.pass, got, tt.want)
				break
			}
		}
	}
}
