package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeader is the canonical 44-byte PCM WAV header this project's
// fixtures speak: mono, 16-bit, uncompressed.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAVFixture encodes mono PCM-16 samples into a WAV byte stream.
// It exists to build in-memory fixtures for tests and for the demo
// command's wav capture backend; the pipeline never writes WAV files
// itself.
func EncodeWAVFixture(samples []int16, sampleRate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("capture: cannot encode an empty wav fixture")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("capture: wav fixture sample rate must be positive, got %d", sampleRate)
	}

	const bitsPerSample = uint16(16)
	const numChannels = uint16(1)
	dataSize := uint32(len(samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("capture: write wav fixture header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("capture: write wav fixture samples: %w", err)
	}
	return buf.Bytes(), nil
}

// validateWAVHeader checks the RIFF/WAVE/fmt/data chunk markers
// without decoding the sample payload, so NewWAVFile fails fast on a
// malformed fixture with a specific error instead of a confusing
// decode panic.
func validateWAVHeader(data []byte) error {
	if len(data) < 44 {
		return fmt.Errorf("capture: wav fixture too short: need at least 44 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return fmt.Errorf("capture: wav fixture missing RIFF marker")
	}
	if string(data[8:12]) != "WAVE" {
		return fmt.Errorf("capture: wav fixture missing WAVE marker")
	}
	if string(data[12:16]) != "fmt " {
		return fmt.Errorf("capture: wav fixture missing fmt chunk")
	}
	if string(data[36:40]) != "data" {
		return fmt.Errorf("capture: wav fixture missing data chunk")
	}
	return nil
}

// decodeWAVSamples decodes a mono 16-bit WAV byte stream into PCM-16
// samples and its sample rate.
func decodeWAVSamples(data []byte) ([]int16, int, error) {
	if err := validateWAVHeader(data); err != nil {
		return nil, 0, err
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("capture: read wav fixture header: %w", err)
	}
	if header.AudioFormat != 1 {
		return nil, 0, fmt.Errorf("capture: wav fixture audio format %d is not PCM", header.AudioFormat)
	}
	if header.BitsPerSample != 16 {
		return nil, 0, fmt.Errorf("capture: wav fixture bit depth %d is not 16-bit", header.BitsPerSample)
	}
	if header.NumChannels != 1 {
		return nil, 0, fmt.Errorf("capture: wav fixture has %d channels, only mono is supported", header.NumChannels)
	}

	numSamples := int(header.Subchunk2Size) / 2
	if numSamples <= 0 {
		return nil, 0, fmt.Errorf("capture: wav fixture has no sample data")
	}

	samples := make([]int16, numSamples)
	if err := binary.Read(bytes.NewReader(data[44:]), binary.LittleEndian, samples); err != nil {
		return nil, 0, fmt.Errorf("capture: read wav fixture samples: %w", err)
	}
	return samples, int(header.SampleRate), nil
}

// WAVInfo mirrors the subset of a WAV fixture's header a caller of
// WAVFile.Info might want to log or display.
type WAVInfo struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	Duration      float64
	DataSize      uint32
	NumSamples    uint32
}

// readWAVFixtureInfo extracts header metadata from a validated WAV
// fixture, including its duration.
func readWAVFixtureInfo(data []byte) (*WAVInfo, error) {
	if err := validateWAVHeader(data); err != nil {
		return nil, err
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("capture: read wav fixture header: %w", err)
	}
	if header.SampleRate == 0 || header.BitsPerSample == 0 {
		return nil, fmt.Errorf("capture: wav fixture header has a zero sample rate or bit depth")
	}

	numSamples := header.Subchunk2Size / (uint32(header.BitsPerSample) / 8)
	return &WAVInfo{
		SampleRate:    header.SampleRate,
		Channels:      header.NumChannels,
		BitsPerSample: header.BitsPerSample,
		Duration:      float64(numSamples) / float64(header.SampleRate),
		DataSize:      header.Subchunk2Size,
		NumSamples:    numSamples,
	}, nil
}
