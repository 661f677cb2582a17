package ml

import (
	"fmt"
	"reflect"
	"sort"

	"flight-delay/internal/common"

	"github.com/rs/zerolog/log"
)

// FeatureImportanceEntry is one ranked input feature.
type FeatureImportanceEntry struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// ModelInfo is the model-info response.
type ModelInfo struct {
	ModelType    string                   `json:"model_type"`
	FeatureCount int                      `json:"feature_count"`
	TopFeatures  []FeatureImportanceEntry `json:"top_features"`
	Status       string                   `json:"status"`
}

// Describe introspects a predictor. Extraction of pipeline internals is
// best-effort: any failure degrades to an empty feature ranking.
func Describe(model Predictor) *ModelInfo {
	info := &ModelInfo{
		ModelType:   typeName(model),
		TopFeatures: []FeatureImportanceEntry{},
		Status:      common.MsgModelReady,
	}

	describer, ok := model.(FeatureDescriber)
	if !ok {
		return info
	}
	info.ModelType = describer.ClassifierType()

	report, err := safeDescribe(describer)
	if err != nil {
		log.Warn().Err(err).Str("model_type", info.ModelType).Msg("Failed to extract feature importances")
		return info
	}

	// Feature names are only reported for classifiers with importances.
	if report.Importances != nil {
		info.FeatureCount = len(report.FeatureNames)
		info.TopFeatures = RankFeatures(report.FeatureNames, report.Importances, common.TopFeatureCount)
	}
	return info
}

// Describe introspects the loaded model.
func (s *InferenceService) Describe() (*ModelInfo, error) {
	if !s.ModelLoaded() {
		return nil, ErrModelUnavailable
	}
	return Describe(s.predictor), nil
}

// RankFeatures pairs names with importances and returns the n most important,
// highest first. Ties keep encoder order.
func RankFeatures(names []string, importances []float64, n int) []FeatureImportanceEntry {
	count := len(names)
	if len(importances) < count {
		count = len(importances)
	}

	entries := make([]FeatureImportanceEntry, count)
	for i := 0; i < count; i++ {
		entries[i] = FeatureImportanceEntry{Feature: names[i], Importance: importances[i]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Importance > entries[j].Importance
	})

	if n >= 0 && n < len(entries) {
		entries = entries[:n]
	}
	return entries
}

func safeDescribe(d FeatureDescriber) (report *FeatureReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feature extraction panicked: %v", r)
		}
	}()
	report, err = d.DescribeFeatures()
	if err == nil && report == nil {
		err = fmt.Errorf("no feature report")
	}
	return report, err
}

func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "unknown"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
