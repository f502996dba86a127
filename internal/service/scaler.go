package service

import (
	"gonum.org/v1/gonum/stat"

	"budgetpredictor/internal/model"
)

// FitScaler computes per-column mean and population standard deviation.
// Constant columns get a scale of 1 so they standardize to zero.
func FitScaler(X [][]float64) model.StandardScaler {
	if len(X) == 0 {
		return model.StandardScaler{}
	}
	nCols := len(X[0])
	s := model.StandardScaler{
		Mean:  make([]float64, nCols),
		Scale: make([]float64, nCols),
	}
	col := make([]float64, len(X))
	for j := 0; j < nCols; j++ {
		for i, row := range X {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s
}

// TransformAll standardizes every row of X into a new matrix.
func TransformAll(s *model.StandardScaler, X [][]float64) ([][]float64, error) {
	out := make([][]float64, len(X))
	for i, row := range X {
		z, err := s.Transform(row, nil)
		if err != nil {
			return nil, err
		}
		out[i] = z
	}
	return out, nil
}
