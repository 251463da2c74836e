package host

import (
	"io"
	"sync"
	"testing"
)

func TestRingBuffer_WriteRead(t *testing.T) {
	rb := newRingBuffer(16)

	data := []byte{1, 2, 3, 4, 5}
	rb.Write(data)
	if rb.Buffered() != 5 {
		t.Fatalf("expected 5 buffered bytes, got %d", rb.Buffered())
	}

	out := make([]byte, 5)
	n, err := rb.Read(out)
	if err != nil || n != 5 {
		t.Fatalf("Read = %d, %v", n, err)
	}
	for i, b := range out {
		if b != data[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, data[i], b)
		}
	}
}

func TestRingBuffer_OverflowDropsOldest(t *testing.T) {
	rb := newRingBuffer(8)
	rb.Write([]byte{1, 2, 3, 4, 5, 6})
	rb.Write([]byte{7, 8, 9, 10, 11})

	if rb.Buffered() != 8 {
		t.Fatalf("expected 8 buffered bytes, got %d", rb.Buffered())
	}
	out := make([]byte, 8)
	n, _ := rb.Read(out)
	want := []byte{4, 5, 6, 7, 8, 9, 10, 11}
	for i := 0; i < n; i++ {
		if out[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestRingBuffer_WriteLargerThanCapacity(t *testing.T) {
	rb := newRingBuffer(4)
	rb.Write([]byte{1, 2, 3, 4, 5, 6, 7})

	out := make([]byte, 4)
	n, _ := rb.Read(out)
	if n != 4 || out[0] != 4 || out[3] != 7 {
		t.Errorf("got %v (n=%d), want [4 5 6 7]", out, n)
	}
}

func TestRingBuffer_WrapAround(t *testing.T) {
	rb := newRingBuffer(8)
	rb.Write([]byte{1, 2, 3, 4, 5, 6})
	rb.Read(make([]byte, 4))
	rb.Write([]byte{7, 8, 9, 10, 11})

	out := make([]byte, 16)
	n, _ := rb.Read(out)
	want := []byte{5, 6, 7, 8, 9, 10, 11}
	if n != len(want) {
		t.Fatalf("n = %d, want %d", n, len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, want[i], out[i])
		}
	}
}

func TestRingBuffer_PartialRead(t *testing.T) {
	rb := newRingBuffer(16)
	rb.Write([]byte{1, 2, 3, 4, 5, 6})

	out := make([]byte, 4)
	if n, _ := rb.Read(out); n != 4 {
		t.Fatalf("n = %d, want 4", n)
	}
	if rb.Buffered() != 2 {
		t.Errorf("Buffered = %d, want 2", rb.Buffered())
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := newRingBuffer(16)
	rb.Write([]byte{1, 2, 3})
	rb.Clear()
	if rb.Buffered() != 0 {
		t.Errorf("Buffered = %d after Clear", rb.Buffered())
	}
	rb.Write([]byte{9})
	out := make([]byte, 1)
	if n, _ := rb.Read(out); n != 1 || out[0] != 9 {
		t.Errorf("read after Clear = %v", out)
	}
}

func TestRingBuffer_CloseUnblocksReader(t *testing.T) {
	rb := newRingBuffer(16)

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err = rb.Read(make([]byte, 4))
	}()

	rb.Close()
	wg.Wait()
	if err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

func TestRingBuffer_CloseDrainsFirst(t *testing.T) {
	rb := newRingBuffer(16)
	rb.Write([]byte{1, 2})
	rb.Close()
	rb.Write([]byte{3})

	out := make([]byte, 4)
	n, err := rb.Read(out)
	if n != 2 || err != nil {
		t.Fatalf("Read = %d, %v; want 2 bytes", n, err)
	}
	if _, err := rb.Read(out); err != io.EOF {
		t.Errorf("second Read err = %v, want io.EOF", err)
	}
}

func TestAppendSamplesLE(t *testing.T) {
	got := appendSamplesLE(nil, []int16{0x0102, -1, 0})
	want := []byte{0x02, 0x01, 0xff, 0xff, 0, 0}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = %#x, want %#x", i, got[i], want[i])
		}
	}
}

func TestClampVolume(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{
		{-1, 0}, {0, 0}, {0.5, 0.5}, {2, 2}, {3, 2},
	} {
		if got := clampVolume(tc.in); got != tc.want {
			t.Errorf("clampVolume(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
