package mqtt

import "testing"

func pushN(rb *ringBuffer, from, to int) (dropped int) {
	for i := from; i < to; i++ {
		if rb.push(bufferedMsg{topic: "t", payload: []byte{byte(i)}}) {
			dropped++
		}
	}
	return dropped
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferDrainOrder(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		pushed   int
		want     []byte
		dropped  int
	}{
		{"empty", 4, 0, nil, 0},
		{"partial", 4, 3, []byte{0, 1, 2}, 0},
		{"full", 4, 4, []byte{0, 1, 2, 3}, 0},
		{"overflow keeps newest", 4, 7, []byte{3, 4, 5, 6}, 3},
		{"zero capacity holds one", 0, 2, []byte{1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newRingBuffer(tt.capacity)
			if d := pushN(rb, 0, tt.pushed); d != tt.dropped {
				t.Errorf("dropped: got %d, want %d", d, tt.dropped)
			}
			got := rb.drainAll()
			if tt.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", payloads(got))
				}
				return
			}
			if string(payloads(got)) != string(tt.want) {
				t.Errorf("got %v, want %v", payloads(got), tt.want)
			}
			if rb.len() != 0 || rb.drainAll() != nil {
				t.Error("buffer not empty after drain")
			}
		})
	}
}

func TestRingBufferReuseAfterWrap(t *testing.T) {
	rb := newRingBuffer(3)
	pushN(rb, 0, 5)
	rb.drainAll()
	pushN(rb, 20, 22)
	if rb.len() != 2 {
		t.Fatalf("len: got %d", rb.len())
	}
	if got := payloads(rb.drainAll()); got[0] != 20 || got[1] != 21 {
		t.Errorf("got %v", got)
	}
}

func TestRingBufferKeepsDeliveryOptions(t *testing.T) {
	rb := newRingBuffer(2)
	rb.push(bufferedMsg{topic: "orbs/display/system", payload: []byte(`{}`), qos: 1, retained: true})
	got := rb.drainAll()[0]
	if got.topic != "orbs/display/system" || got.qos != 1 || !got.retained || string(got.payload) != "{}" {
		t.Errorf("fields lost: %+v", got)
	}
}
