package audio

// QuantizePCM16 clamps each sample to [-1, 1] and truncates to a signed
// 16-bit integer. No dithering is applied.
func QuantizePCM16(frame Frame) []int16 {
	out := make([]int16, len(frame))
	for i, sample := range frame {
		s := sample
		if s > 1 {
			s = 1
		}
		if s < -1 {
			s = -1
		}
		if s < 0 {
			out[i] = int16(s * 0x8000)
		} else {
			out[i] = int16(s * 0x7FFF)
		}
	}
	return out
}

// EncodePCM16 converts a frame to little-endian 16-bit PCM bytes.
func EncodePCM16(frame Frame) []byte {
	return int16SliceToBytes(QuantizePCM16(frame))
}

// DecodePCM16 converts little-endian 16-bit PCM bytes back to samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) Frame {
	frame := make(Frame, len(data)/2)
	for i := range frame {
		s := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		frame[i] = float32(s) / 32768.0
	}
	return frame
}

func int16SliceToBytes(samples []int16) []byte {
	bytes := make([]byte, len(samples)*2)
	for i, sample := range samples {
		bytes[i*2] = byte(sample)
		bytes[i*2+1] = byte(sample >> 8)
	}
	return bytes
}
