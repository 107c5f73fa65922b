// Package catalogfile reads reference ingredient and tag rows from disk.
//
// Three layouts are understood, picked by file extension:
//
//	.csv          name,measurement_unit rows (ingredients only)
//	.json         {"ingredients": [...], "tags": [...]}
//	.yaml, .yml   the same document as JSON
package catalogfile

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/models"
)

type (
	ingredientRow struct {
		Name            string `json:"name" yaml:"name"`
		MeasurementUnit string `json:"measurement_unit" yaml:"measurement_unit"`
	}

	tagRow struct {
		Name string `json:"name" yaml:"name"`
		Slug string `json:"slug" yaml:"slug"`
	}

	document struct {
		Ingredients []ingredientRow `json:"ingredients" yaml:"ingredients"`
		Tags        []tagRow        `json:"tags" yaml:"tags"`
	}
)

func Load(path string) (models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Catalog{}, errors.Wrap(err, "read catalog file")
	}
	return Parse(filepath.Ext(path), data)
}

func Parse(ext string, data []byte) (models.Catalog, error) {
	switch strings.ToLower(ext) {
	case ".csv":
		return parseCSV(data)
	case ".json":
		doc := document{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return models.Catalog{}, errors.Wrap(err, "decode json catalog")
		}
		return doc.catalog(), nil
	case ".yaml", ".yml":
		doc := document{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return models.Catalog{}, errors.Wrap(err, "decode yaml catalog")
		}
		return doc.catalog(), nil
	default:
		return models.Catalog{}, errors.Errorf("unsupported catalog format %q", ext)
	}
}

func parseCSV(data []byte) (models.Catalog, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	res := models.Catalog{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return models.Catalog{}, errors.Wrap(err, "decode csv catalog")
		}
		res.Ingredients = append(res.Ingredients, models.Ingredient{
			Name:            strings.TrimSpace(rec[0]),
			MeasurementUnit: strings.TrimSpace(rec[1]),
		})
	}
}

func (d document) catalog() models.Catalog {
	res := models.Catalog{
		Ingredients: make([]models.Ingredient, len(d.Ingredients)),
		Tags:        make([]models.Tag, len(d.Tags)),
	}
	for i, row := range d.Ingredients {
		res.Ingredients[i] = models.Ingredient{
			Name:            strings.TrimSpace(row.Name),
			MeasurementUnit: strings.TrimSpace(row.MeasurementUnit),
		}
	}
	for i, row := range d.Tags {
		res.Tags[i] = models.Tag{Name: strings.TrimSpace(row.Name), Slug: strings.TrimSpace(row.Slug)}
	}
	return res
}
