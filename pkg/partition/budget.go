package partition

import "math"

// EffectiveThreshold converts a user limit into the raw-byte threshold used to
// classify and pack files.
//
// With CompressedArchiveEstimate the limit describes compressed archives, but
// files are measured before compression, so the raw threshold is inflated by
// 1/ratio. The resulting archives only approximate the limit.
func EffectiveThreshold(maxSizeBytes int64, kind SizeLimitKind, ratio float64) (int64, error) {
	if maxSizeBytes <= 0 {
		return 0, &ConfigError{Field: "MaxSizeBytes", Value: maxSizeBytes, Reason: "must be positive"}
	}

	switch kind {
	case UncompressedData:
		return maxSizeBytes, nil
	case CompressedArchiveEstimate:
		if !validRatio(ratio) {
			return 0, &ConfigError{Field: "CompressionRatio", Value: ratio, Reason: "must be in (0, 1]"}
		}
		threshold := math.Floor(float64(maxSizeBytes) / ratio)
		if threshold >= math.MaxInt64 {
			return math.MaxInt64, nil
		}
		return int64(threshold), nil
	default:
		return 0, &ConfigError{Field: "SizeLimitKind", Value: kind, Reason: "unknown size limit kind"}
	}
}

// EffectiveThreshold validates c and returns the raw-byte threshold of its strategy.
// SingleArchive never rolls over, so its threshold is unbounded.
func (c Config) EffectiveThreshold() (int64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}

	if c.Strategy == SingleArchive {
		return math.MaxInt64, nil
	}

	return EffectiveThreshold(c.MaxSizeBytes, c.SizeLimitKind, c.CompressionRatio)
}
