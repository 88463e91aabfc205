package audio

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// PCM16Duration is the playback length of mono 16-bit little-endian samples.
func PCM16Duration(pcm []byte, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := len(pcm) / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// DecodeBase64PCM16 decodes a base64 PCM16LE payload and rejects odd byte counts.
func DecodeBase64PCM16(payload string) ([]byte, error) {
	pcm, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode pcm16 base64: %w", err)
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm16 payload has odd length %d", len(pcm))
	}
	return pcm, nil
}

// Tone synthesizes a quiet sine tone of duration d. Scripted sessions use it as
// stand-in prospect audio.
func Tone(d time.Duration, sampleRate int, freqHz float64) []byte {
	if d <= 0 || sampleRate <= 0 {
		return nil
	}
	n := int(d * time.Duration(sampleRate) / time.Second)
	out := make([]byte, n*2)
	const amplitude = 0.1 * math.MaxInt16
	for i := 0; i < n; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
		out[2*i] = byte(v)
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}
