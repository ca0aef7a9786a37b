package dto

const (
	HealthOK          = "ok"
	HealthUnavailable = "unavailable"
)

type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}
