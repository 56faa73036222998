package utils

import (
	"sort"
	"strings"

	"github.com/taxops/tds-challan-extractor/dto"
)

// Strategy base scores. Text-layer matches are trusted most; optical
// recognition is the noisiest and starts lowest.
var strategyBase = map[string]float64{
	dto.StrategyText:    1.00,
	dto.StrategyLayout:  0.90,
	dto.StrategyOptical: 0.80,
}

// Recognizer locates a declared field's value near one of its label anchors,
// either in raw text (text-layer mode) or among positioned tokens
// (layout/optical mode).
type Recognizer struct {
	maxDX float64
	maxDY float64
}

func NewRecognizer(maxDX, maxDY float64) *Recognizer {
	if maxDX <= 0 {
		maxDX = 300
	}
	if maxDY <= 0 {
		maxDY = 50
	}
	return &Recognizer{maxDX: maxDX, maxDY: maxDY}
}

// FromText scans raw text with the spec's patterns in priority order and
// returns the first shape-valid candidate. The second return is false when
// no label matched or every candidate was shape-rejected - that is absence,
// not an error.
func (r *Recognizer) FromText(spec FieldSpec, text, source, financialYear string) (dto.FieldValue, bool) {
	for _, pat := range spec.Patterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.TrimSpace(m[1])
		if fv, ok := r.build(spec, raw, source, financialYear, 1.0, 0); ok {
			return fv, true
		}
	}
	return dto.FieldValue{}, false
}

// FromTokens resolves a field spatially: it finds a label anchor in the
// grouped lines, then takes the nearest value to the right on the same line,
// falling back to the nearest line below within the distance thresholds.
func (r *Recognizer) FromTokens(spec FieldSpec, lines [][]dto.PositionedToken, source, financialYear string) (dto.FieldValue, bool) {
	for _, label := range spec.Labels {
		needle := strings.ToLower(NormalizeText(label))
		for li, line := range lines {
			text, starts := joinLine(line)
			pos := strings.Index(strings.ToLower(text), needle)
			if pos < 0 {
				continue
			}
			end := pos + len(needle)

			// Nearest right: remainder of the line after the label.
			rem := strings.TrimSpace(text[end:])
			rem = strings.TrimSpace(strings.TrimPrefix(rem, ":"))

			labelIdx, valueIdx := 0, -1
			for i := range line {
				if starts[i] < end {
					labelIdx = i
				}
				if valueIdx == -1 && starts[i]+len(line[i].Text) > end {
					valueIdx = i
				}
			}

			if rem != "" && valueIdx >= 0 {
				dx := line[valueIdx].X0 - line[labelIdx].X1
				if dx < 0 {
					dx = 0
				}
				if dx <= r.maxDX {
					conf := tokenConfidence(line[valueIdx:])
					if fv, ok := r.build(spec, rem, source, financialYear, conf, 0.1*dx/r.maxDX); ok {
						return fv, true
					}
				}
			}

			// Nearest below: first shape-valid line under the label anchor.
			anchorIdx := 0
			for i := range line {
				if starts[i] <= pos {
					anchorIdx = i
				}
			}
			if fv, ok := r.valueBelow(spec, lines, li, line[anchorIdx], source, financialYear); ok {
				return fv, true
			}
		}
	}
	return dto.FieldValue{}, false
}

func (r *Recognizer) valueBelow(spec FieldSpec, lines [][]dto.PositionedToken, labelLine int, anchor dto.PositionedToken, source, financialYear string) (dto.FieldValue, bool) {
	for j := labelLine + 1; j < len(lines); j++ {
		line := lines[j]
		if len(line) == 0 {
			continue
		}
		dy := line[0].Y0 - anchor.Y1
		if dy < 0 {
			continue
		}
		if dy > r.maxDY {
			break
		}

		var below []dto.PositionedToken
		for _, t := range line {
			if t.CenterX() >= anchor.X0-10 && t.X0 <= anchor.X0+r.maxDX {
				below = append(below, t)
			}
		}
		if len(below) == 0 {
			continue
		}
		raw := strings.TrimSpace(strings.TrimPrefix(joinTokens(below), ":"))
		if raw == "" {
			continue
		}
		if fv, ok := r.build(spec, raw, source, financialYear, tokenConfidence(below), 0.1*dy/r.maxDY); ok {
			return fv, true
		}
	}
	return dto.FieldValue{}, false
}

// build normalizes a raw candidate against the spec's shape and computes the
// final confidence: strategy base x shape quality x token confidence, minus
// the positional distance penalty.
func (r *Recognizer) build(spec FieldSpec, raw, source, financialYear string, tokenConf, distPenalty float64) (dto.FieldValue, bool) {
	text, number, quality, ok := normalizeValue(spec, raw, financialYear)
	if !ok {
		return dto.FieldValue{}, false
	}

	base, known := strategyBase[source]
	if !known {
		base = 0.8
	}
	conf := base*quality*tokenConf - distPenalty
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	return dto.FieldValue{
		Name:       spec.Name,
		RawText:    raw,
		Text:       text,
		Number:     number,
		Confidence: conf,
		Source:     source,
	}, true
}

// normalizeValue converts a raw match into its canonical form and scores
// match quality. A false return means the candidate is shape-rejected.
func normalizeValue(spec FieldSpec, raw, financialYear string) (text string, number float64, quality float64, ok bool) {
	switch spec.Shape {
	case ShapeCurrency:
		amount, candidates, parsed := ParseAmount(raw)
		if !parsed {
			return "", 0, 0, false
		}
		quality = 0.95
		if amount == 0 {
			quality = 0.90
		}
		if candidates > 1 {
			// More than one plausible amount in the token: we picked the
			// first, but the choice is uncertain.
			quality /= 2
		}
		return FormatAmount(amount), amount, quality, true

	case ShapeDate:
		iso, penalized, parsed := ParseDate(raw, financialYear)
		if !parsed {
			return "", 0, 0, false
		}
		quality = 0.95
		if penalized {
			quality -= DateAmbiguityPenalty
		}
		return iso, 0, quality, true

	case ShapeYear:
		v := NormalizeCode(raw)
		if !yearRange.MatchString(v) {
			return "", 0, 0, false
		}
		return v, 0, 0.95, true

	case ShapeCode:
		v := NormalizeCode(raw)
		if v == "" {
			return "", 0, 0, false
		}
		switch spec.Name {
		case dto.FieldTAN:
			if !TANPattern.MatchString(v) {
				return "", 0, 0, false
			}
			return v, 0, 0.98, true
		case dto.FieldCIN:
			if len(v) < 10 {
				return "", 0, 0, false
			}
			if len(v) < CINMinLength {
				return v, 0, 0.70, true
			}
			return v, 0, 0.95, true
		}
		return v, 0, 0.90, true

	default: // ShapeText
		v := NormalizeText(raw)
		if len(v) < 2 {
			return "", 0, 0, false
		}
		return v, 0, 0.90, true
	}
}

// GroupIntoLines orders tokens top-to-bottom, left-to-right and groups them
// into visual lines by Y proximity. Tokens use a top-left origin.
func GroupIntoLines(tokens []dto.PositionedToken, yTolerance float64) [][]dto.PositionedToken {
	if len(tokens) == 0 {
		return nil
	}
	if yTolerance <= 0 {
		yTolerance = 5
	}

	sorted := make([]dto.PositionedToken, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y0 != sorted[j].Y0 {
			return sorted[i].Y0 < sorted[j].Y0
		}
		return sorted[i].X0 < sorted[j].X0
	})

	var lines [][]dto.PositionedToken
	current := []dto.PositionedToken{sorted[0]}
	currentY := sorted[0].Y0

	for _, tok := range sorted[1:] {
		if tok.Y0-currentY <= yTolerance {
			current = append(current, tok)
			continue
		}
		sort.SliceStable(current, func(i, j int) bool { return current[i].X0 < current[j].X0 })
		lines = append(lines, current)
		current = []dto.PositionedToken{tok}
		currentY = tok.Y0
	}
	sort.SliceStable(current, func(i, j int) bool { return current[i].X0 < current[j].X0 })
	lines = append(lines, current)

	return lines
}

// joinLine concatenates a line's token texts with single spaces and records
// each token's character offset in the joined string.
func joinLine(line []dto.PositionedToken) (string, []int) {
	var b strings.Builder
	starts := make([]int, len(line))
	for i, t := range line {
		if i > 0 {
			b.WriteByte(' ')
		}
		starts[i] = b.Len()
		b.WriteString(t.Text)
	}
	return b.String(), starts
}

func joinTokens(tokens []dto.PositionedToken) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// tokenConfidence averages the recognizer confidences carried by tokens.
// PDF text-layer tokens carry 1.0; OCR tokens carry Tesseract's word score.
func tokenConfidence(tokens []dto.PositionedToken) float64 {
	if len(tokens) == 0 {
		return 1
	}
	var sum float64
	for _, t := range tokens {
		c := t.Confidence
		if c <= 0 || c > 1 {
			c = 1
		}
		sum += c
	}
	return sum / float64(len(tokens))
}
