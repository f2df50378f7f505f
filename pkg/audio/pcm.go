// Package audio provides decoding and signal measurement helpers for raw
// PCM audio as delivered by browser capture pipelines.
package audio

import (
	"math"
)

// DecodePCM16LE decodes little-endian int16 PCM bytes into normalized float64
// samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16LE(pcm []byte) []float64 {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}
	samples := make([]float64, n)
	for i := range n {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		samples[i] = float64(s) / 32768.0
	}
	return samples
}

// RMS returns the root mean square of the given samples.
// Returns 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSPCM16LE decodes little-endian int16 PCM and returns its RMS in one pass,
// without allocating an intermediate sample slice. Returns 0 when the input
// holds no complete sample.
func RMSPCM16LE(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8) / 32768.0
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
