package http

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError is one failed request rule.
type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message,omitempty" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}
