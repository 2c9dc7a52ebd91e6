package domain

import "strings"

type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionRent TransactionType = "rent"
)

// Requirement is the structured intent extracted from one user query.
// A refined turn derives a new Requirement; existing values are never mutated.
type Requirement struct {
	PropertyType    string          `json:"property_type,omitempty"`
	TransactionType TransactionType `json:"transaction_type,omitempty"`
	District        string          `json:"district,omitempty"`
	City            string          `json:"city,omitempty"`
	BedroomsMin     *int            `json:"bedrooms_min,omitempty"`
	BedroomsMax     *int            `json:"bedrooms_max,omitempty"`
	PriceMin        *float64        `json:"price_min,omitempty"`
	PriceMax        *float64        `json:"price_max,omitempty"`
	Qualifiers      []string        `json:"qualifiers,omitempty"`
}

// StructuredFieldCount reports how many hard filters the requirement carries.
// Qualifiers are free text and do not count.
func (r Requirement) StructuredFieldCount() int {
	count := 0
	if strings.TrimSpace(r.PropertyType) != "" {
		count++
	}
	if strings.TrimSpace(r.District) != "" {
		count++
	}
	if strings.TrimSpace(r.City) != "" {
		count++
	}
	if r.BedroomsMin != nil || r.BedroomsMax != nil {
		count++
	}
	if r.PriceMin != nil || r.PriceMax != nil {
		count++
	}
	return count
}

// LocationOnly keeps district and city and drops every other hard filter.
func (r Requirement) LocationOnly() Requirement {
	return Requirement{
		TransactionType: r.TransactionType,
		District:        r.District,
		City:            r.City,
		Qualifiers:      append([]string(nil), r.Qualifiers...),
	}
}

// MergeMissingFrom fills fields absent in r from prior. Explicit values in r
// always win; the prior requirement never overwrites them.
func (r Requirement) MergeMissingFrom(prior Requirement) Requirement {
	merged := r
	if merged.PropertyType == "" {
		merged.PropertyType = prior.PropertyType
	}
	if merged.TransactionType == "" {
		merged.TransactionType = prior.TransactionType
	}
	if merged.District == "" {
		merged.District = prior.District
	}
	if merged.City == "" {
		merged.City = prior.City
	}
	if merged.BedroomsMin == nil && merged.BedroomsMax == nil {
		merged.BedroomsMin = prior.BedroomsMin
		merged.BedroomsMax = prior.BedroomsMax
	}
	if merged.PriceMin == nil && merged.PriceMax == nil {
		merged.PriceMin = prior.PriceMin
		merged.PriceMax = prior.PriceMax
	}
	return merged
}

// DropLastQualifier returns a copy with the most specific free-text hint
// removed. Used by query refinement after a failed evaluation.
func (r Requirement) DropLastQualifier() Requirement {
	if len(r.Qualifiers) == 0 {
		return r
	}
	out := r
	out.Qualifiers = append([]string(nil), r.Qualifiers[:len(r.Qualifiers)-1]...)
	return out
}
