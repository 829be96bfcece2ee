// Package units implements the canonical size-string normalization
// table the Rule Evaluator uses to compare metrics expressed as byte
// counts against literals like "123 MB" or "1.2 GB".
package units

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// scale is the case-insensitive, base-2 unit table: B=1, KB=1024,
// MB=1024², GB=1024³, TB=1024⁴.
var scale = map[string]float64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
	"TB": 1024 * 1024 * 1024 * 1024,
}

// suffixesLongestFirst ensures "KB" is tried before the bare "B" suffix
// it would otherwise also match.
var suffixesLongestFirst = []string{"KB", "MB", "GB", "TB", "B"}

// ParseSize converts a size string ("123 MB", "1.2GB") to bytes via the
// unit table above. ok is false when raw carries no recognizable unit
// suffix at all, meaning it is not a size string and callers should not
// treat it as numeric. When raw does carry a recognized suffix but its
// numeric part fails to parse (e.g. "12 XB", "abc MB"), the value
// normalizes to zero (ok stays true) and the malformed input is logged
// at debug via log, if non-nil.
func ParseSize(raw string, log *logrus.Entry) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	upper := strings.ToUpper(trimmed)

	for _, suffix := range suffixesLongestFirst {
		if !strings.HasSuffix(upper, suffix) {
			continue
		}
		numPart := strings.TrimSpace(trimmed[:len(trimmed)-len(suffix)])
		n, err := strconv.ParseFloat(numPart, 64)
		if err != nil {
			if log != nil {
				log.WithField("raw", raw).Debug("units: malformed size string normalized to zero")
			}
			return 0, true
		}
		return n * scale[suffix], true
	}
	return 0, false
}
