package control_toolbox

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ParseMatrixData reads a numeric matrix from the parameter store. The value
// can be a list of equally sized rows, or a flat list whose length is a
// perfect square (parsed row-major).
func ParseMatrixData(params ParameterStore, key string) (*mat.Dense, error) {
	if rows, ok := params.GetFloatRows(key); ok {
		return matrixFromRows(key, rows)
	}

	flat, ok := params.GetFloatSlice(key)
	if !ok {
		return nil, errors.Errorf("matrix parameter %s is missing or not numeric", key)
	}
	if len(flat) == 0 {
		return nil, errors.Errorf("matrix parameter %s is empty", key)
	}

	n := int(math.Sqrt(float64(len(flat))))
	if n*n != len(flat) {
		return nil, errors.Errorf(
			"flat matrix parameter %s has %d entries, which is not a square matrix", key, len(flat))
	}

	return mat.NewDense(n, n, flat), nil
}

func matrixFromRows(key string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.Errorf("matrix parameter %s has no rows", key)
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, errors.Errorf("matrix parameter %s has an empty first row", key)
	}

	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Errorf(
				"matrix parameter %s is ragged: row %d has %d entries, expected %d", key, i, len(row), cols)
		}
		data = append(data, row...)
	}

	return mat.NewDense(len(rows), cols, data), nil
}
