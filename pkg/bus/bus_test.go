package bus

import "testing"

func TestPowerStateString(t *testing.T) {
	tests := []struct {
		state PowerState
		want  string
	}{
		{PowerActive, "ACTIVE"},
		{PowerOff, "OFF"},
		{PowerDeepOff, "DEEP_OFF"},
		{PowerState(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		got := tt.state.String()
		if got != tt.want {
			t.Errorf("PowerState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
