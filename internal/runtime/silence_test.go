package runtime

import "testing"

func TestSilencePolicy_Decide(t *testing.T) {
	tests := []struct {
		max   int
		count int
		want  SilenceDecision
	}{
		{1, 0, SilenceRetry},
		{1, 1, SilenceRetry},
		{1, 2, SilenceTerminate},
		{3, 3, SilenceRetry},
		{3, 4, SilenceTerminate},
		{0, 1, SilenceTerminate},
	}
	for _, tt := range tests {
		p := SilencePolicy{MaxSilences: tt.max}
		if got := p.Decide(tt.count); got != tt.want {
			t.Errorf("Decide(%d) with max %d = %s, want %s", tt.count, tt.max, got, tt.want)
		}
	}

	if DefaultSilencePolicy().MaxSilences != DefaultMaxSilences {
		t.Errorf("unexpected default policy %+v", DefaultSilencePolicy())
	}
}
