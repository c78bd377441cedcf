package audio

import (
	"math"
	"testing"
)

func TestBytesSamplesRoundTrip(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 12345}
	data := SamplesToBytes(samples)
	back := BytesToSamples(data)

	if len(back) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(back))
	}
	for i := range samples {
		if back[i] != samples[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, samples[i], back[i])
		}
	}
}

func TestChunkDuration(t *testing.T) {
	c := Chunk{Samples: make([]int16, 16000), SampleRate: 16000}
	if c.Duration() != 1.0 {
		t.Errorf("Expected 1.0s duration, got %f", c.Duration())
	}

	empty := Chunk{}
	if empty.Duration() != 0 {
		t.Errorf("Expected 0 duration for empty chunk, got %f", empty.Duration())
	}
}

func TestResampleSameRate(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	out := Resample(samples, 16000, 16000)
	if len(out) != 4 {
		t.Errorf("Expected passthrough at same rate, got %d samples", len(out))
	}
}

func TestResampleDownsample(t *testing.T) {
	// 48kHz → 16kHz should produce a third of the samples.
	samples := make([]int16, 480)
	out := Resample(samples, 48000, 16000)
	if len(out) != 160 {
		t.Errorf("Expected 160 samples, got %d", len(out))
	}
}

func TestResampleEmpty(t *testing.T) {
	out := Resample(nil, 48000, 16000)
	if len(out) != 0 {
		t.Errorf("Expected empty output, got %d samples", len(out))
	}
}

func TestCalculateRMS(t *testing.T) {
	if rms := CalculateRMS(nil); rms != 0 {
		t.Errorf("Expected 0 RMS for empty input, got %f", rms)
	}

	silence := make([]int16, 160)
	if rms := CalculateRMS(silence); rms != 0 {
		t.Errorf("Expected 0 RMS for silence, got %f", rms)
	}

	// Full-scale sine wave has RMS of roughly 0.5 in normalized power.
	tone := make([]int16, 1600)
	for i := range tone {
		tone[i] = int16(32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	rms := CalculateRMS(tone)
	if rms < 0.4 || rms > 0.6 {
		t.Errorf("Expected ~0.5 RMS for full-scale tone, got %f", rms)
	}
}
