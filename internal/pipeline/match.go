package pipeline

import (
	"strings"

	"salesmigrate/internal"
	"salesmigrate/internal/catalog"
)

// Reconciler resolves sale lines against the catalog: code, then exact
// canonical name, then partial name. The first tier that hits wins.
type Reconciler struct {
	index      *catalog.Index
	normalizer *Normalizer
	minPartial int
}

func NewReconciler(index *catalog.Index, normalizer *Normalizer, minPartial int) *Reconciler {
	if minPartial <= 0 {
		minPartial = 3
	}
	return &Reconciler{index: index, normalizer: normalizer, minPartial: minPartial}
}

func (r *Reconciler) Resolve(item internal.RawInvoiceItem) internal.MatchResult {
	normalized := r.normalizer.Normalize(item.Name)

	if strings.TrimSpace(item.Code) != "" {
		if p, ok := r.index.LookupCode(item.Code); ok {
			return matched(internal.ReasonCode, p, normalized)
		}
	}

	if normalized != "" {
		if p, ok := r.index.LookupName(normalized); ok {
			return matched(internal.ReasonName, p, normalized)
		}
		if p, ok := r.index.LookupPartial(normalized, r.minPartial); ok {
			return matched(internal.ReasonPartial, p, normalized)
		}
	}

	return internal.MatchResult{
		Status:         internal.MatchUnmatched,
		Reason:         internal.ReasonNone,
		NormalizedName: normalized,
	}
}

func matched(reason internal.MatchReason, p internal.ProductRecord, normalized string) internal.MatchResult {
	return internal.MatchResult{
		Status:         internal.MatchMatched,
		Reason:         reason,
		Product:        catalog.Ref(p),
		NormalizedName: normalized,
	}
}
