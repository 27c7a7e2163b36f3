package churn

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/huangsam/rewatch/schema"
)

// logisticModel is a class-weighted logistic regression fit with full-batch
// gradient descent. Features are standardized with the training split's
// moments, so weights live in standardized space with the intercept last.
type logisticModel struct {
	weights []float64
	means   []float64
	stds    []float64
}

// fitLogistic trains a model on the given vectors. Callers must ensure both
// classes are present; class weights rebalance the loss so the minority
// class is not drowned out.
func fitLogistic(vectors []schema.FeatureVector, epochs int, learnRate float64) *logisticModel {
	n := len(vectors)
	d := len(schema.FeatureNames)

	// --- 1. Standardize features with train-split moments ---
	means := make([]float64, d)
	stds := make([]float64, d)
	column := make([]float64, n)
	for j := range d {
		for i, v := range vectors {
			column[i] = v.Values()[j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		means[j] = mean
		stds[j] = std
	}

	rows := make([][]float64, n)
	labels := make([]float64, n)
	var positives int
	for i, v := range vectors {
		row := v.Values()
		for j := range row {
			row[j] = (row[j] - means[j]) / stds[j]
		}
		rows[i] = row
		if v.Label {
			labels[i] = 1
			positives++
		}
	}

	// --- 2. Balance classes: each class contributes half the loss ---
	posWeight := float64(n) / (2 * float64(positives))
	negWeight := float64(n) / (2 * float64(n-positives))

	// --- 3. Full-batch gradient descent ---
	weights := make([]float64, d+1)
	grad := make([]float64, d+1)
	for range epochs {
		for j := range grad {
			grad[j] = 0
		}
		for i, row := range rows {
			p := sigmoid(dot(weights, row))
			diff := p - labels[i]
			if labels[i] == 1 {
				diff *= posWeight
			} else {
				diff *= negWeight
			}
			for j, x := range row {
				grad[j] += diff * x
			}
			grad[d] += diff
		}
		for j := range weights {
			weights[j] -= learnRate * grad[j] / float64(n)
		}
	}

	return &logisticModel{weights: weights, means: means, stds: stds}
}

// predict returns the return probability for one raw feature slice.
func (m *logisticModel) predict(features []float64) float64 {
	row := make([]float64, len(features))
	for j, x := range features {
		row[j] = (x - m.means[j]) / m.stds[j]
	}
	return sigmoid(dot(m.weights, row))
}

// evaluate scores the held-out vectors at a 0.5 threshold and computes AUC
// over the full probability ranking. Metrics whose denominator is empty,
// and AUC on a single-class split, come back undefined.
func (m *logisticModel) evaluate(vectors []schema.FeatureVector) (precision, recall, f1, auc schema.Metric) {
	var tp, fp, fn int
	probs := make([]float64, len(vectors))
	classes := make([]bool, len(vectors))
	var positives int
	for i, v := range vectors {
		p := m.predict(v.Values())
		probs[i] = p
		classes[i] = v.Label
		if v.Label {
			positives++
		}
		switch {
		case p >= 0.5 && v.Label:
			tp++
		case p >= 0.5 && !v.Label:
			fp++
		case p < 0.5 && v.Label:
			fn++
		}
	}

	precision = schema.UndefinedMetric()
	if tp+fp > 0 {
		precision = schema.DefinedMetric(float64(tp) / float64(tp+fp))
	}
	recall = schema.UndefinedMetric()
	if tp+fn > 0 {
		recall = schema.DefinedMetric(float64(tp) / float64(tp+fn))
	}
	f1 = schema.UndefinedMetric()
	if precision.Defined && recall.Defined && precision.Value+recall.Value > 0 {
		f1 = schema.DefinedMetric(2 * precision.Value * recall.Value / (precision.Value + recall.Value))
	}

	auc = schema.UndefinedMetric()
	if positives > 0 && positives < len(vectors) {
		sort.Sort(byScore{probs: probs, classes: classes})
		tpr, fpr, _ := stat.ROC(nil, probs, classes, nil)
		auc = schema.DefinedMetric(integrate.Trapezoidal(fpr, tpr))
	}
	return precision, recall, f1, auc
}

// byScore sorts probabilities ascending, keeping class labels aligned.
// stat.ROC requires its inputs in this order.
type byScore struct {
	probs   []float64
	classes []bool
}

func (s byScore) Len() int           { return len(s.probs) }
func (s byScore) Less(i, j int) bool { return s.probs[i] < s.probs[j] }
func (s byScore) Swap(i, j int) {
	s.probs[i], s.probs[j] = s.probs[j], s.probs[i]
	s.classes[i], s.classes[j] = s.classes[j], s.classes[i]
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func dot(weights, row []float64) float64 {
	z := weights[len(weights)-1]
	for j, x := range row {
		z += weights[j] * x
	}
	return z
}
