package descpool

import "testing"

func TestBitsetSetClear(t *testing.T) {
	var b bitset
	for _, i := range []int{0, 5, 63, 64, 200} {
		b.set(i)
	}
	if b.count() != 5 {
		t.Errorf("count = %d, want 5", b.count())
	}
	if !b.has(64) || b.has(65) {
		t.Error("has reports wrong membership around word boundary")
	}
	b.clear(64)
	b.clear(1000)
	if b.has(64) {
		t.Error("clear(64) left the bit set")
	}

	var got []int
	b.each(func(i int) bool {
		got = append(got, i)
		return true
	})
	want := []int{0, 5, 63, 200}
	if len(got) != len(want) {
		t.Fatalf("each = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("each[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBitsetIntersect(t *testing.T) {
	var a, b bitset
	a.set(1)
	a.set(70)
	a.set(130)
	b.set(70)
	b.set(2)

	x := a.intersectInto(nil, b)
	if x.count() != 1 || !x.has(70) {
		t.Errorf("intersection = %v, want {70}", x)
	}
}
