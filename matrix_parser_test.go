package control_toolbox

import (
	"testing"

	rdkutils "go.viam.com/rdk/utils"
)

func TestParseMatrixData(t *testing.T) {
	t.Run("flat square slice", func(t *testing.T) {
		flat := make([]float64, 36)
		for i := range flat {
			flat[i] = float64(i)
		}
		store := NewMapParameterStore(rdkutils.AttributeMap{"calib": flat})

		m, err := ParseMatrixData(store, "calib")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r, c := m.Dims(); r != 6 || c != 6 {
			t.Fatalf("expected 6x6, got %dx%d", r, c)
		}
		if got := m.At(1, 2); got != 8 {
			t.Errorf("expected row-major parse, At(1,2)=8, got %v", got)
		}
	})

	t.Run("row lists", func(t *testing.T) {
		store := NewMapParameterStore(rdkutils.AttributeMap{
			"calib": [][]float64{{1, 2}, {3, 4}, {5, 6}},
		})

		m, err := ParseMatrixData(store, "calib")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r, c := m.Dims(); r != 3 || c != 2 {
			t.Fatalf("expected 3x2, got %dx%d", r, c)
		}
		if got := m.At(2, 1); got != 6 {
			t.Errorf("expected At(2,1)=6, got %v", got)
		}
	})

	t.Run("json decoded values", func(t *testing.T) {
		store := NewMapParameterStore(rdkutils.AttributeMap{
			"calib": []interface{}{1.0, 0.0, 0.0, 1.0},
		})

		m, err := ParseMatrixData(store, "calib")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r, c := m.Dims(); r != 2 || c != 2 {
			t.Fatalf("expected 2x2, got %dx%d", r, c)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		store := NewMapParameterStore(nil)
		if _, err := ParseMatrixData(store, "nope"); err == nil {
			t.Fatal("expected error for missing parameter")
		}
	})

	t.Run("non-square flat slice", func(t *testing.T) {
		store := NewMapParameterStore(rdkutils.AttributeMap{"calib": []float64{1, 2, 3}})
		if _, err := ParseMatrixData(store, "calib"); err == nil {
			t.Fatal("expected error for non-square length")
		}
	})

	t.Run("ragged rows", func(t *testing.T) {
		store := NewMapParameterStore(rdkutils.AttributeMap{
			"calib": [][]float64{{1, 2}, {3}},
		})
		if _, err := ParseMatrixData(store, "calib"); err == nil {
			t.Fatal("expected error for ragged rows")
		}
	})

	t.Run("non numeric entries", func(t *testing.T) {
		store := NewMapParameterStore(rdkutils.AttributeMap{
			"calib": []interface{}{1.0, "two", 3.0, 4.0},
		})
		if _, err := ParseMatrixData(store, "calib"); err == nil {
			t.Fatal("expected error for non-numeric entry")
		}
	})
}
