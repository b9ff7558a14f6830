// Package audio writes decoded waveforms to disk.
package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const bitsPerSample = 16

// WriteWAV encodes interleaved float32 samples as 16-bit PCM. Samples are
// clamped to [-1, 1] before quantization.
func WriteWAV(w io.Writer, samples []float32, sampleRate, channels int32) error {
	if channels <= 0 {
		return fmt.Errorf("invalid channel count %d", channels)
	}
	if len(samples)%int(channels) != 0 {
		return fmt.Errorf("%d samples not divisible by %d channels", len(samples), channels)
	}

	dataLen := uint32(len(samples) * 2)
	blockAlign := uint16(channels) * bitsPerSample / 8
	byteRate := uint32(sampleRate) * uint32(blockAlign)

	var hdr [44]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataLen)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataLen)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	buf := make([]byte, 2)
	for _, s := range samples {
		binary.LittleEndian.PutUint16(buf, uint16(quantize(s)))
		if _, err := w.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func quantize(s float32) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int16(s * 32767)
	}
}

// WriteFile writes a WAV file at path.
func WriteFile(path string, samples []float32, sampleRate, channels int32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := WriteWAV(bw, samples, sampleRate, channels); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}
