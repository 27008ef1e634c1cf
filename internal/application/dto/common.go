package dto

// ErrorResponse cuerpo de error HTTP.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LivenessResponse respuesta de GET /health.
type LivenessResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
