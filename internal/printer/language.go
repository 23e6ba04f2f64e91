package printer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"zebra-label/internal/label"
)

// LanguagesVar is the SGD setting holding the active control language
const LanguagesVar = "device.languages"

// Querier sends a request to an open printer and returns its reply
type Querier interface {
	Query(ctx context.Context, request []byte) ([]byte, error)
}

// GetVar builds an SGD getvar command
func GetVar(key string) []byte {
	return []byte(fmt.Sprintf("! U1 getvar \"%s\"\r\n", key))
}

// Detector asks a printer which control language it speaks. It caches
// nothing; callers decide how often to ask.
type Detector struct {
	logger *zap.Logger
}

func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{logger: nopIfNil(logger)}
}

// Detect queries q for its control language. Any query failure or an
// unrecognized reply is reported as ErrDetectionFailed.
func (d *Detector) Detect(ctx context.Context, q Querier) (label.Language, error) {
	resp, err := q.Query(ctx, GetVar(LanguagesVar))
	if err != nil {
		d.logger.Warn("language query failed", zap.Error(err))
		return 0, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}

	reply := NormalizeReply(resp)
	lang, ok := ParseLanguageReply(reply)
	if !ok {
		d.logger.Warn("unrecognized printer language", zap.String("reply", reply))
		return 0, fmt.Errorf("%w: unrecognized reply %q", ErrDetectionFailed, reply)
	}

	d.logger.Info("printer language detected", zap.Stringer("language", lang), zap.String("reply", reply))
	return lang, nil
}

// ParseLanguageReply maps a device.languages value to a label language.
// Hybrid values such as "hybrid_xml_zpl" or "epl_zpl" count as ZPL.
func ParseLanguageReply(reply string) (label.Language, bool) {
	v := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case v == "":
		return 0, false
	case strings.Contains(v, "zpl"):
		return label.ZPL, true
	case strings.Contains(v, "line_print"), strings.Contains(v, "cpcl"):
		return label.CPCL, true
	}
	return 0, false
}

// NormalizeReply strips NULs, line breaks and the surrounding quotes
func NormalizeReply(raw []byte) string {
	text := strings.ReplaceAll(string(raw), "\x00", "")
	text = strings.ReplaceAll(text, "\r", "\n")

	var clean []string
	for _, row := range strings.Split(text, "\n") {
		row = strings.TrimSpace(row)
		if row != "" {
			clean = append(clean, row)
		}
	}
	return strings.TrimSpace(strings.Trim(strings.Join(clean, " "), "\""))
}
