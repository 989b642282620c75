package audio

import (
	"bytes"
	"fmt"
	"io"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
	gomp3 "github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes an MP3 file to mono float32 PCM at SampleRate.
// go-mp3 always decodes to 16-bit stereo at the file's native rate, so the
// result is downmixed to mono and resampled if needed.
func DecodeMP3(data []byte) ([]float32, int32, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("create mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, 0, fmt.Errorf("read mp3 data: %w", err)
	}

	mono := pcmStereo16ToMonoFloat32(pcm)
	srcRate := dec.SampleRate()
	if srcRate != SampleRate {
		mono = resampleLinear(mono, srcRate, SampleRate)
	}

	return mono, SampleRate, nil
}

// EncodeMP3 encodes mono float32 PCM samples to an MP3 file using shine's
// pure-Go Layer III encoder.
func EncodeMP3(samples []float32) ([]byte, error) {
	var buf bytes.Buffer
	enc := shine.NewEncoder(SampleRate, channels)

	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = floatToInt16(s)
	}

	// shine expects whole 1152-sample (per channel) blocks; pad the tail
	// with silence so the final partial block still encodes.
	const blockSamples = 1152
	if rem := len(pcm) % blockSamples; rem != 0 {
		pcm = append(pcm, make([]int16, blockSamples-rem)...)
	}

	if err := enc.Write(&buf, pcm); err != nil {
		return nil, fmt.Errorf("encode mp3: %w", err)
	}

	return buf.Bytes(), nil
}

func pcmStereo16ToMonoFloat32(pcm []byte) []float32 {
	const bytesPerFrame = 4 // 2 channels * 16-bit
	numFrames := len(pcm) / bytesPerFrame
	mono := make([]float32, numFrames)
	for i := 0; i < numFrames; i++ {
		off := i * bytesPerFrame
		left := int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8)
		right := int16(uint16(pcm[off+2]) | uint16(pcm[off+3])<<8)
		mono[i] = (float32(left) + float32(right)) / 2 / 32768.0
	}
	return mono
}

func floatToInt16(s float32) int16 {
	if s > 1.0 {
		s = 1.0
	} else if s < -1.0 {
		s = -1.0
	}
	return int16(s * 32767)
}

// resampleLinear performs simple linear-interpolation resampling between
// arbitrary sample rates. It trades fidelity for having zero additional
// dependencies beyond what decoding already pulled in.
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	newLen := int(float64(len(samples)) / ratio)
	resampled := make([]float32, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		switch {
		case srcIdx+1 < len(samples):
			resampled[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		case srcIdx < len(samples):
			resampled[i] = samples[srcIdx]
		}
	}

	return resampled
}
