package contracts

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestIndicatorSnapshot_MissingCategories(t *testing.T) {
	tests := []struct {
		name     string
		snapshot IndicatorSnapshot
		want     []string
	}{
		{
			name:     "complete",
			snapshot: IndicatorSnapshot{Trend: Float(0.5), Volatility: Float(0.2), Breadth: Float(0.6), Timestamp: time.Now()},
			want:     []string{},
		},
		{
			name:     "missing breadth",
			snapshot: IndicatorSnapshot{Trend: Float(0.5), Volatility: Float(0.2)},
			want:     []string{"breadth"},
		},
		{
			name:     "NaN volatility",
			snapshot: IndicatorSnapshot{Trend: Float(0.5), Volatility: Float(math.NaN()), Breadth: Float(0.6)},
			want:     []string{"volatility"},
		},
		{
			name:     "empty",
			snapshot: IndicatorSnapshot{},
			want:     []string{"trend", "volatility", "breadth"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.snapshot.MissingCategories()
			if len(got) != len(tt.want) {
				t.Fatalf("MissingCategories() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("MissingCategories()[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
			if tt.snapshot.IsComplete() != (len(tt.want) == 0) {
				t.Errorf("IsComplete() inconsistent with MissingCategories()")
			}
		})
	}
}

func TestDimensionScores_Validate(t *testing.T) {
	ok := DimensionScores{DataIntegrity: 100, SignalSanity: 0, StrategyBehavior: 50, RegimeReliability: 80, EvolutionSafety: 90}
	if err := ok.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	bad := ok
	bad.RegimeReliability = 101
	err := bad.Validate()
	var inputErr *InvalidInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
	if inputErr.Field != "regime_reliability" {
		t.Errorf("Field = %s, want regime_reliability", inputErr.Field)
	}
}

func TestErrors_Is(t *testing.T) {
	var err error = &InsufficientDataError{Missing: []string{"trend"}}
	if !errors.Is(err, ErrInsufficientData) {
		t.Error("InsufficientDataError should match ErrInsufficientData")
	}

	err = NewConfigurationFault("health", "penalty %d", -5)
	if !errors.Is(err, ErrConfigurationFault) {
		t.Error("ConfigurationFault should match ErrConfigurationFault")
	}
	if err.Error() != "configuration fault in health: penalty -5" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
