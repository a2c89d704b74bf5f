package backend

// Resample16to24 converts 16 kHz PCM16 audio to 24 kHz using linear interpolation.
func Resample16to24(input []byte) []byte {
	if len(input) < 2 {
		return input
	}

	numInputSamples := len(input) / 2
	numOutputSamples := (numInputSamples * 3) / 2

	output := make([]byte, numOutputSamples*2)

	for i := 0; i < numOutputSamples; i++ {
		srcPos := float64(i) * 16.0 / 24.0
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		var sample1, sample2 int16
		if srcIdx*2+1 < len(input) {
			sample1 = int16(input[srcIdx*2]) | (int16(input[srcIdx*2+1]) << 8)
		}
		if (srcIdx+1)*2+1 < len(input) {
			sample2 = int16(input[(srcIdx+1)*2]) | (int16(input[(srcIdx+1)*2+1]) << 8)
		} else {
			sample2 = sample1
		}

		outSample := int16(float64(sample1)*(1-frac) + float64(sample2)*frac)

		output[i*2] = byte(outSample)
		output[i*2+1] = byte(outSample >> 8)
	}

	return output
}
