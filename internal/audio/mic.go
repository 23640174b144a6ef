package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// MicSource captures audio from the default microphone and emits Frames, for
// recording in-person meetings through the same pipeline as voice channels.
type MicSource struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32

	mu      sync.Mutex
	device  *malgo.Device
	sink    func(Frame)
	seq     uint64
	running bool
}

// NewMicSource creates a microphone source. Call Close() when done.
func NewMicSource(sampleRate, channels uint32) (*MicSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	return &MicSource{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
	}, nil
}

// Start begins capturing from the default microphone, delivering each device
// callback's samples to sink as one Frame.
func (m *MicSource) Start(sink func(Frame)) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("already capturing")
	}
	m.sink = sink
	m.seq = 0
	m.running = true
	m.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = m.channels
	deviceCfg.SampleRate = m.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: m.onData,
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		m.setStopped()
		return fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		m.setStopped()
		return fmt.Errorf("starting capture device: %w", err)
	}

	m.mu.Lock()
	m.device = device
	m.mu.Unlock()

	return nil
}

// Stop ends the capture.
func (m *MicSource) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	m.running = false
	m.sink = nil
}

// Close releases all audio resources.
func (m *MicSource) Close() error {
	m.Stop()

	if m.ctx != nil {
		if err := m.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		m.ctx.Free()
		m.ctx = nil
	}
	return nil
}

func (m *MicSource) setStopped() {
	m.mu.Lock()
	m.running = false
	m.sink = nil
	m.mu.Unlock()
}

// onData is the malgo callback invoked when audio data is available.
// pSample contains the captured frames as raw bytes in float32 format.
func (m *MicSource) onData(_, pSample []byte, frameCount uint32) {
	sampleCount := frameCount * m.channels
	samples := bytesToFloat32(pSample, sampleCount)

	m.mu.Lock()
	sink := m.sink
	seq := m.seq
	m.seq++
	m.mu.Unlock()

	if sink == nil {
		return
	}
	sink(Frame{
		Samples:    samples,
		SampleRate: int(m.sampleRate),
		Channels:   int(m.channels),
		Seq:        seq,
		Source:     "mic",
	})
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
