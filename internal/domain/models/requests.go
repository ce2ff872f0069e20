package models

// Requests for the forecasting HTTP endpoints. Zero values fall back to the
// configured defaults.

type TrainRequest struct {
	Source       string  `query:"source" json:"source" validate:"omitempty,oneof=csv json sqlite clickhouse"`
	Location     string  `query:"location" json:"location" validate:"required"`
	Target       string  `query:"target" json:"target"`
	LagDepth     int     `query:"lag_depth" json:"lag_depth" validate:"omitempty,gte=1,lte=60"`
	TestFraction float64 `query:"test_fraction" json:"test_fraction" validate:"omitempty,gt=0,lt=1"`
	Model        string  `query:"model" json:"model" validate:"omitempty,max=128"`
}

type ForecastRequest struct {
	Model    string `query:"model" json:"model" validate:"omitempty,max=128"`
	Source   string `query:"source" json:"source" validate:"omitempty,oneof=csv json sqlite clickhouse"`
	Location string `query:"location" json:"location" validate:"required"`
	Days     int    `query:"days" json:"days" validate:"omitempty,gte=1,lte=365"`
}
