package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFee(t *testing.T) {
	tests := []struct {
		name    string
		volume  uint64
		bps     uint64
		wantFee uint64
		wantNet uint64
	}{
		{"one percent", 10_000, 100, 100, 9_900},
		{"zero rate", 10_000, 0, 0, 10_000},
		{"full rate", 10_000, 10_000, 10_000, 0},
		{"fee floors to zero", 99, 100, 0, 99},
		{"odd volume truncates", 10_001, 100, 100, 9_901},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := SplitFee(tt.volume, tt.bps)
			assert.Equal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantNet, net)
			assert.Equal(t, tt.volume, fee+net, "fee and net must partition volume")
		})
	}
}
