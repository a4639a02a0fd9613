package catalog

import (
	"strings"

	"salesmigrate/internal"
	"salesmigrate/internal/util"
)

// Index is the read-only lookup the reconciler runs against. Products keep
// the order the store returned them in; map values point into Products.
type Index struct {
	Products []internal.ProductRecord
	ByCode   map[string]int
	ByName   map[string]int
	names    []string
}

func BuildIndex(products []internal.ProductRecord) *Index {
	idx := &Index{
		Products: products,
		ByCode:   map[string]int{},
		ByName:   map[string]int{},
		names:    make([]string, len(products)),
	}

	for i, p := range products {
		name := NameKey(p.Name)
		idx.names[i] = name
		if _, ok := idx.ByName[name]; !ok && name != "" {
			idx.ByName[name] = i
		}

		for _, v := range p.Variants {
			for _, code := range []string{v.Code, v.Barcode, v.SKU} {
				norm := util.NormalizeCode(code)
				if norm == "" {
					continue
				}
				if _, ok := idx.ByCode[norm]; !ok {
					idx.ByCode[norm] = i
				}
			}
		}
	}

	return idx
}

func (idx *Index) Len() int { return len(idx.Products) }

func (idx *Index) LookupCode(code string) (internal.ProductRecord, bool) {
	norm := util.NormalizeCode(code)
	if norm == "" {
		return internal.ProductRecord{}, false
	}
	i, ok := idx.ByCode[norm]
	if !ok {
		return internal.ProductRecord{}, false
	}
	return idx.Products[i], true
}

func (idx *Index) LookupName(name string) (internal.ProductRecord, bool) {
	i, ok := idx.ByName[NameKey(name)]
	if !ok {
		return internal.ProductRecord{}, false
	}
	return idx.Products[i], true
}

// LookupPartial returns the first product, in index order, whose name
// contains name or is contained in it. Both sides must be at least
// minLength runes long.
func (idx *Index) LookupPartial(name string, minLength int) (internal.ProductRecord, bool) {
	key := NameKey(name)
	if len([]rune(key)) < minLength || key == "" {
		return internal.ProductRecord{}, false
	}
	for i, candidate := range idx.names {
		if len([]rune(candidate)) < minLength || candidate == "" {
			continue
		}
		if strings.Contains(candidate, key) || strings.Contains(key, candidate) {
			return idx.Products[i], true
		}
	}
	return internal.ProductRecord{}, false
}

func NameKey(name string) string {
	return strings.ToLower(util.CollapseSpaces(name))
}

// Ref uses the first variant as the pricing reference. Legacy sales carry no
// variant dimension.
func Ref(p internal.ProductRecord) *internal.CanonicalProductRef {
	ref := &internal.CanonicalProductRef{ProductID: p.ID, ProductName: p.Name}
	if len(p.Variants) > 0 {
		ref.VariantID = p.Variants[0].ID
		ref.VariantPrice = p.Variants[0].Price
	}
	return ref
}
