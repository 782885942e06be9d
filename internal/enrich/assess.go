package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/sells-group/resolve-cli/internal/model"
)

// qualityPrompt asks the model to self-rate the record. The answer is
// advisory only: the entity's quality score stays the deterministic
// completeness checklist, this just gets logged next to it.
func qualityPrompt(c Context) string {
	return fmt.Sprintf(
		"%s\nAssess the quality and completeness of this company data on a scale of 0.0 to 1.0.\nConsider completeness, consistency across fields, and plausibility.\nReturn ONLY a decimal number between 0.0 and 1.0.",
		c.block())
}

var assessmentNumber = regexp.MustCompile(`\d+\.?\d*`)

// ParseAssessment extracts the first decimal number from a response and
// clamps it to [0,1]. Returns false when the response carries no number.
func ParseAssessment(raw string) (float64, bool) {
	m := assessmentNumber.FindString(raw)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return f, true
}

// assessQuality runs the advisory self-assessment for one entity. Failures
// are swallowed; this never blocks enrichment results.
func (o *Orchestrator) assessQuality(ctx context.Context, entity *model.CanonicalEntity) {
	c := ContextFor(entity)
	if c.Name == "" {
		return
	}
	if o.breaker.Allow() != nil || o.fallbackOnly.Load() {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	if err := o.limiter.Wait(callCtx); err != nil {
		return
	}

	o.modelCalls.Add(1)
	raw, err := o.gen.Generate(callCtx, qualityPrompt(c))
	o.breaker.Record(err)
	if err != nil {
		zap.L().Debug("quality self-assessment failed",
			zap.String("entity_id", entity.ID),
			zap.Error(err),
		)
		return
	}

	if score, ok := ParseAssessment(raw); ok {
		zap.L().Info("model quality self-assessment",
			zap.String("entity_id", entity.ID),
			zap.Float64("model_assessment", score),
			zap.Float64("quality_score", entity.QualityScore),
		)
	}
}
