package usecase

type nopMetrics struct{}

func (nopMetrics) RecordTraining(string, int, float64, float64) {}
func (nopMetrics) RecordTrainingFailure(string)                 {}
func (nopMetrics) RecordForecast(string, int, int, float64)     {}
func (nopMetrics) RecordModelLoadError(string)                  {}
func (nopMetrics) RecordError(string)                           {}
