package models

// Requests for the flash HTTP and websocket endpoints.

type AnalyzeRequest struct {
	Symbol      string `query:"symbol" json:"symbol" validate:"required"`
	TF          string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h"`
	From        string `query:"from" json:"from" validate:"omitempty,timestr"`
	To          string `query:"to" json:"to" validate:"omitempty,timestr"`
	GracePeriod int    `query:"grace_period" json:"grace_period" default:"7" validate:"gte=1,lte=10000"`
	MaxActive   int    `query:"max_active" json:"max_active" validate:"gte=0"`
	Warmup      string `query:"warmup" json:"warmup,omitempty" validate:"omitempty,number"`
}

// AnalyzeBarsRequest carries a caller-supplied series whose triggers are already set.
type AnalyzeBarsRequest struct {
	Symbol      string `json:"symbol" validate:"required"`
	GracePeriod int    `json:"grace_period" default:"7" validate:"gte=1,lte=10000"`
	MaxActive   int    `json:"max_active" validate:"gte=0"`
	Bars        []Bar  `json:"bars" validate:"required,min=1"`
}

type BarsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h"`
	From   string `query:"from" json:"from" validate:"omitempty,timestr"`
	To     string `query:"to" json:"to" validate:"omitempty,timestr"`
	Limit  int    `query:"limit" json:"limit" default:"10000" validate:"gte=1,lte=50000"`
}
