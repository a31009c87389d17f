package cmd

import (
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/doe-wizard/doe-opt/opt"
)

// Session input loading. Missing inputs fall back to the synthetic demo
// profile/champion so a bare `doe-opt run` still produces artifacts.

func loadProfile(path string) opt.Profile {
	if path == "" {
		return syntheticProfile()
	}
	var p opt.Profile
	readJSONFile(path, &p)
	if len(p.ColumnsProfile) == 0 {
		logrus.Warnf("Profile %s has no columns_profile; using synthetic demo profile", path)
		return syntheticProfile()
	}
	return p
}

func loadChampion(path string) opt.ChampionBundle {
	if path == "" {
		return syntheticChampion()
	}
	var c opt.ChampionBundle
	readJSONFile(path, &c)
	if len(c.Settings.Features) == 0 && c.Settings.ResponseCol == "" {
		logrus.Warnf("Champion %s has no settings; using synthetic demo champion", path)
		return syntheticChampion()
	}
	return c
}

// loadTrainingPreview reads a JSON array of observation rows. Numbers become
// numeric features, strings and booleans categorical; other value types are
// dropped.
func loadTrainingPreview(path string) []opt.Point {
	if path == "" {
		return nil
	}
	var rows []map[string]any
	readJSONFile(path, &rows)
	points := make([]opt.Point, 0, len(rows))
	for _, row := range rows {
		p := opt.Point{Numeric: map[string]float64{}, Categorical: map[string]string{}}
		for k, v := range row {
			switch val := v.(type) {
			case float64:
				p.Numeric[k] = val
			case string:
				p.Categorical[k] = val
			case bool:
				if val {
					p.Categorical[k] = "true"
				} else {
					p.Categorical[k] = "false"
				}
			}
		}
		points = append(points, p)
	}
	return points
}

func readJSONFile(path string, out any) {
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Fatalf("Failed to read %s: %v", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		logrus.Fatalf("Failed to parse JSON %s: %v", path, err)
	}
}

func syntheticProfile() opt.Profile {
	return opt.Profile{ColumnsProfile: []opt.ColumnProfile{
		{Column: "X", Dtype: "float64", NUnique: 25, ValueClassification: "normal"},
		{Column: "CAT", Dtype: "object", NUnique: 2, ValueClassification: "normal", ExampleValues: []string{"A", "B"}},
	}}
}

func syntheticChampion() opt.ChampionBundle {
	return opt.ChampionBundle{
		Settings:       opt.ChampionSettings{ResponseCol: "Y", Features: []string{"X"}},
		ModelSignature: opt.ModelSignature{Type: "DemoModel", Params: opt.ModelParams{EnableCategorical: false}},
	}
}

// demoModel is the stand-in predictor used when no model is wired in:
// a fixed linear response on the X feature.
type demoModel struct{}

func (demoModel) Predict(points []opt.Point) ([]float64, error) {
	out := make([]float64, len(points))
	for i, p := range points {
		x, ok := p.Numeric["X"]
		if !ok {
			x = p.Numeric["x"]
		}
		out[i] = 2*x + 1
	}
	return out, nil
}
