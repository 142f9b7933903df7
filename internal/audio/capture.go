package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoAudioInput reports that no capture device exposes an audio
	// track. This reflects the user's device setup, not a system fault.
	ErrNoAudioInput = errors.New("no audio input device available")

	// ErrCaptureUnsupported reports that the host cannot do audio capture
	// at all (missing backend, headless environment).
	ErrCaptureUnsupported = errors.New("audio capture is not supported on this host")
)

// MicSource captures mono float32 frames from the default input device.
// Frames arrive on the miniaudio callback in fixed-size windows.
type MicSource struct {
	rate      int
	frameSize int

	ctx    *malgo.AllocatedContext
	device *malgo.Device

	done     chan struct{}
	doneOnce sync.Once

	mu      sync.Mutex
	stopped bool
}

// NewMicSource acquires the capture backend and verifies that at least one
// input device is present. The device itself is opened by Start.
func NewMicSource(rate, frameSize int) (*MicSource, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnsupported, err)
	}

	devices, err := ctx.Devices(malgo.Capture)
	if err != nil {
		_ = ctx.Uninit()
		return nil, fmt.Errorf("%w: %v", ErrCaptureUnsupported, err)
	}
	if len(devices) == 0 {
		_ = ctx.Uninit()
		return nil, ErrNoAudioInput
	}

	return &MicSource{
		rate:      rate,
		frameSize: frameSize,
		ctx:       ctx,
		done:      make(chan struct{}),
	}, nil
}

// Start opens the default capture device and begins delivering frames.
// onFrame runs on the capture callback and must return quickly.
func (m *MicSource) Start(onFrame func(Frame)) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.rate)
	deviceConfig.PeriodSizeInFrames = uint32(m.frameSize)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onFrame(bytesToFloat32(input))
		},
		Stop: func() {
			m.doneOnce.Do(func() { close(m.done) })
		},
	}

	device, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		m.device = nil
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	log.Debug().
		Int("sample_rate", m.rate).
		Int("frame_size", m.frameSize).
		Msg("Capture device started")

	return nil
}

func (m *MicSource) Rate() int { return m.rate }

func (m *MicSource) Done() <-chan struct{} { return m.done }

// Stop releases the device and the capture backend. Safe to call twice.
func (m *MicSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}
	m.stopped = true

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	m.doneOnce.Do(func() { close(m.done) })

	if err := m.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to release capture context: %w", err)
	}
	return nil
}

func bytesToFloat32(data []byte) Frame {
	frame := make(Frame, len(data)/4)
	for i := range frame {
		frame[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return frame
}
