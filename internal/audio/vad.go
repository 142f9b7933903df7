package audio

import (
	"math"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTCVAD wraps the WebRTC voice activity detector with an RMS fallback
// for frame sizes the detector does not accept.
type WebRTCVAD struct {
	vad          *webrtcvad.VAD
	rmsThreshold float64
}

func NewWebRTCVAD() (*WebRTCVAD, error) {
	vad, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}

	// Aggressiveness 0-3, where 3 is most aggressive
	vad.SetMode(2)

	return &WebRTCVAD{
		vad:          vad,
		rmsThreshold: 500.0,
	}, nil
}

func (v *WebRTCVAD) IsSpeech(pcm []int16, sampleRate int) bool {
	bytes := int16SliceToBytes(pcm)

	// WebRTC VAD expects specific frame sizes
	if len(bytes) < 320 { // 10ms at 16kHz = 320 bytes
		return v.rmsIsSpeech(pcm)
	}

	isSpeech, err := v.vad.Process(sampleRate, bytes)
	if err != nil {
		return v.rmsIsSpeech(pcm)
	}
	return isSpeech
}

func (v *WebRTCVAD) rmsIsSpeech(pcm []int16) bool {
	if len(pcm) == 0 {
		return false
	}

	var sum float64
	for _, sample := range pcm {
		sum += float64(sample) * float64(sample)
	}

	rms := math.Sqrt(sum / float64(len(pcm)))
	return rms > v.rmsThreshold
}

func (v *WebRTCVAD) Close() error {
	// The underlying webrtcvad.VAD frees its C state via a finalizer and
	// exposes no Close method.
	return nil
}
