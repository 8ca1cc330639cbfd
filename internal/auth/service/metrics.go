package service

import "github.com/AlibekovAA/devicehub/internal/observability/metrics"

func recordAttempt(operation, result string) {
	metrics.AuthAttemptsTotal.WithLabelValues(operation, result).Inc()
}

func incrementAccessTokensIssued() {
	metrics.AccessTokensIssued.Inc()
}
