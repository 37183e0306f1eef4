package models

import (
	"encoding/json"
	"time"
)

// Record is one synthetic data record flowing through the pipeline. The
// generator produces the base fields; the processing and transformation
// stages fill in the derived ones.
type Record struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"       validate:"required"`
	Category  string    `json:"category"   validate:"required,oneof=A B C D"`
	Value     float64   `json:"value"      validate:"gte=10,lte=1000"`
	Quantity  int       `json:"quantity"   validate:"gte=1,lte=100"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at" validate:"required"`

	// Derived by the Spark Processing stage.
	TotalValue  float64    `json:"total_value,omitempty"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// Derived by the DBT Transformation stage.
	DiscountFactor   float64    `json:"discount_factor,omitempty"`
	DiscountedValue  float64    `json:"discounted_value,omitempty"`
	PricingTier      string     `json:"pricing_tier,omitempty"`
	IsHighValue      *bool      `json:"is_high_value,omitempty"`
	CategoryAvgValue float64    `json:"category_avg_value,omitempty"`
	TransformedBy    string     `json:"transformed_by,omitempty"`
	TransformedAt    *time.Time `json:"transformed_at,omitempty"`

	// Extra holds unknown fields found at the ingestion boundary so that
	// extended record shapes survive a round trip through the flow.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownRecordFields are the JSON keys owned by the typed struct; anything
// else lands in Extra.
var knownRecordFields = map[string]struct{}{
	"id": {}, "name": {}, "category": {}, "value": {}, "quantity": {},
	"is_active": {}, "created_at": {},
	"total_value": {}, "processed_by": {}, "processed_at": {},
	"discount_factor": {}, "discounted_value": {}, "pricing_tier": {},
	"is_high_value": {}, "category_avg_value": {},
	"transformed_by": {}, "transformed_at": {},
}

type recordAlias Record

// UnmarshalJSON decodes the typed fields and captures any unknown keys
// into Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var alias recordAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = Record(alias)

	for key, value := range raw {
		if _, known := knownRecordFields[key]; known {
			continue
		}

		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}

		r.Extra[key] = value
	}

	return nil
}

// MarshalJSON emits the typed fields plus any captured extension fields.
func (r Record) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(recordAlias(r))
	if err != nil {
		return nil, err
	}

	if len(r.Extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}

	for key, value := range r.Extra {
		if _, known := knownRecordFields[key]; !known {
			merged[key] = value
		}
	}

	return json.Marshal(merged)
}
