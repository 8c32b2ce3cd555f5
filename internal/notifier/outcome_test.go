package notifier

import "testing"

func TestClassifyPushStatus(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		want       SendOutcome
	}{
		{"201 Created は配信成功", 201, OutcomeDelivered},
		{"200 OK は配信成功", 200, OutcomeDelivered},
		{"404 Not Found は恒久的失敗", 404, OutcomePermanentFailure},
		{"410 Gone は恒久的失敗", 410, OutcomePermanentFailure},
		{"429 Too Many Requests は一時的失敗", 429, OutcomeTransientFailure},
		{"500 Internal Server Error は一時的失敗", 500, OutcomeTransientFailure},
		{"503 Service Unavailable は一時的失敗", 503, OutcomeTransientFailure},
		{"400 Bad Request は一時的失敗", 400, OutcomeTransientFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyPushStatus(tt.statusCode); got != tt.want {
				t.Errorf("ClassifyPushStatus(%d) = %s, want %s", tt.statusCode, got, tt.want)
			}
		})
	}
}

func TestSendOutcome_String(t *testing.T) {
	tests := []struct {
		outcome SendOutcome
		want    string
	}{
		{OutcomeDelivered, "delivered"},
		{OutcomeTransientFailure, "transient_failure"},
		{OutcomePermanentFailure, "permanent_failure"},
		{SendOutcome(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
}
