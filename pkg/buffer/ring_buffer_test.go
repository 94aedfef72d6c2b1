package buffer

import (
	"fmt"
	"slices"
	"sync"
	"testing"
)

func TestRingBufferKeepsNewest(t *testing.T) {
	tests := []struct {
		size int
		add  []string
		want []string
	}{
		{1, []string{"a", "b", "c"}, []string{"c"}},
		{2, []string{"a", "b", "c"}, []string{"b", "c"}},
		{3, []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{3, []string{"a", "b"}, []string{"a", "b"}},
		{4, []string{"a", "b", "c", "d", "e", "f"}, []string{"c", "d", "e", "f"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size=%d/add=%d", tt.size, len(tt.add)), func(t *testing.T) {
			rb := RingN[string](tt.size)
			for _, s := range tt.add {
				rb.Add(s)
			}
			if rb.Len() != len(tt.want) {
				t.Errorf("len=%d, want %d", rb.Len(), len(tt.want))
			}
			if got := rb.Bytes(); !slices.Equal(got, tt.want) {
				t.Errorf("got=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestRingBufferBytesIsCopy(t *testing.T) {
	rb := RingN[int](3)
	rb.Add(1)
	rb.Add(2)

	got := rb.Bytes()
	got[0] = 99
	if again := rb.Bytes(); again[0] != 1 {
		t.Errorf("buffer mutated through returned slice: %v", again)
	}
}

func TestRingBufferReset(t *testing.T) {
	rb := RingN[int](2)
	rb.Add(1)
	rb.Add(2)
	rb.Add(3)
	rb.Reset()

	if rb.Len() != 0 {
		t.Errorf("len=%d after reset", rb.Len())
	}
	rb.Add(7)
	if got := rb.Bytes(); !slices.Equal(got, []int{7}) {
		t.Errorf("got=%v after reset+add", got)
	}
}

func TestRingBufferConcurrentAdd(t *testing.T) {
	rb := RingN[int](8)
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				rb.Add(i*100 + j)
			}
		}()
	}
	wg.Wait()

	if rb.Len() != 8 {
		t.Errorf("len=%d, want full buffer", rb.Len())
	}
}
