package client

import "testing"

func TestNormalizeAudioScalesToPeak(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.4, -0.05}
	peak, gain := NormalizeAudio(samples)

	if peak != 0.4 {
		t.Fatalf("got peak %v, want 0.4", peak)
	}
	wantGain := float32(0.9 / 0.4)
	if gain != wantGain {
		t.Fatalf("got gain %v, want %v", gain, wantGain)
	}
	if samples[2] < 0.89 || samples[2] > 0.91 {
		t.Fatalf("peak sample not scaled to ~0.9, got %v", samples[2])
	}
}

func TestNormalizeAudioLeavesSilenceUnscaled(t *testing.T) {
	samples := []float32{0.0001, -0.0002, 0}
	peak, gain := NormalizeAudio(samples)
	if gain != 1.0 {
		t.Fatalf("got gain %v, want 1.0 for near-silent input", gain)
	}
	if peak >= 0.001 {
		t.Fatalf("unexpected peak %v", peak)
	}
}
