package audio

import "math"

// Downsample converts a frame from inRate to outRate using linear
// interpolation between the two nearest input samples. Equal rates pass
// through unchanged, and so does inRate < outRate: the expected capture
// devices all run at or above the transport rate, so upsampling is never
// needed. No anti-aliasing filter is applied; for voice bandwidths the
// interpolation alone is adequate.
func Downsample(frame Frame, inRate, outRate int) Frame {
	if inRate == outRate || inRate < outRate {
		return frame
	}

	ratio := float64(inRate) / float64(outRate)
	newLength := int(math.Round(float64(len(frame)) / ratio))
	result := make(Frame, newLength)

	for i := 0; i < newLength; i++ {
		index := float64(i) * ratio
		intIndex := int(index)
		frac := index - float64(intIndex)

		s0 := frame[intIndex]
		s1 := s0
		if intIndex+1 < len(frame) {
			s1 = frame[intIndex+1]
		}
		result[i] = s0 + float32(frac)*(s1-s0)
	}

	return result
}

// RMS returns the root-mean-square level of the frame.
func RMS(frame Frame) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range frame {
		sum += float64(sample) * float64(sample)
	}

	rms := math.Sqrt(sum / float64(len(frame)))
	if math.IsNaN(rms) {
		return 0
	}
	return rms
}
