package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// legacyDoc entspricht einem Eintrag aus dem historischen Mongo-Dump.
func legacyDoc(name string) map[string]any {
	raw := `{
		"Herb_Name": "` + name + `",
		"Common_Names": ["Tulsi", "Sacred Basil"],
		"Scientific_Name": "Ocimum tenuiflorum",
		"Introduction": "An aromatic perennial plant.",
		"Background_and_Traditional_Use": "Revered in Ayurveda.",
		"Active_Constituents": "Eugenol, ursolic acid.",
		"Mechanism_of_Action": "Adaptogenic and anti-inflammatory action.",
		"Health_Benefits": [
			{"Benefit_Name": "Immunity", "Evidence_Summary": "Small trials.", "Evidence_Rating": "Moderate"}
		],
		"Safety_and_Side_Effects": "Well tolerated.",
		"Toxicity": "Low.",
		"Warnings_and_Contraindications": "May affect fertility in animal studies.",
		"Drug_Interactions": "None documented.",
		"Recommended_Dosage": "300 mg daily.",
		"Seasonal_usage": "Monsoon and winter.",
		"References": "Cohen 2014.",
		"Active_Pharmaceutical_Ingredient": {
			"Name": "Eugenol",
			"Chemical_Formula": "C10H12O2",
			"IUPAC_Name": "4-allyl-2-methoxyphenol",
			"Molecular_Structure_Image": "https://img.example/eugenol.png"
		},
		"Image-url": "https://img.example/tulsi.jpg"
	}`
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(err)
	}
	return doc
}

func TestNormalizeLegacyDocument(t *testing.T) {
	n := NewLegacyNormalizer(zap.NewNop())

	in, err := n.Normalize(legacyDoc("Holy Basil"))
	require.NoError(t, err)

	assert.Equal(t, "Holy Basil", in.Name)
	assert.Equal(t, []string{"Tulsi", "Sacred Basil"}, in.CommonNames)
	assert.Equal(t, "Ocimum tenuiflorum", in.ScientificName)
	assert.Equal(t, "Monsoon and winter.", in.SeasonalUsage)
	assert.Equal(t, "https://img.example/tulsi.jpg", in.ImageURL)

	require.Len(t, in.HealthBenefits, 1)
	assert.Equal(t, "Immunity", in.HealthBenefits[0].BenefitName)
	assert.Equal(t, "Moderate", in.HealthBenefits[0].EvidenceRating)

	require.NotNil(t, in.ActivePharmaceuticalIngredient)
	assert.Equal(t, "Eugenol", in.ActivePharmaceuticalIngredient.Name)
	assert.Equal(t, "4-allyl-2-methoxyphenol", in.ActivePharmaceuticalIngredient.IUPACName)
	assert.Equal(t, "https://img.example/eugenol.png", in.ActivePharmaceuticalIngredient.MolecularStructureImageURL)
}

func TestNormalizeAliasPrecedence(t *testing.T) {
	n := NewLegacyNormalizer(zap.NewNop())

	// Legacy-Form gewinnt, wenn die andere Variante leer ist
	doc := legacyDoc("Holy Basil")
	doc["Image-url"] = "https://img.example/legacy.jpg"
	doc["Image_URL"] = ""
	in, err := n.Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/legacy.jpg", in.ImageURL)

	// Umgekehrt: leere Legacy-Form, gefüllte Variante
	doc = legacyDoc("Holy Basil")
	doc["Image-url"] = ""
	doc["Image_URL"] = "https://img.example/other.jpg"
	in, err = n.Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/other.jpg", in.ImageURL)

	// Seasonal_usage vor Seasonal_Usage
	doc = legacyDoc("Holy Basil")
	doc["Seasonal_usage"] = "lower form"
	doc["Seasonal_Usage"] = "upper form"
	in, err = n.Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, "lower form", in.SeasonalUsage)

	// Kanonische Namen werden ebenfalls akzeptiert
	doc = legacyDoc("Holy Basil")
	delete(doc, "Seasonal_usage")
	doc["seasonalUsage"] = "canonical"
	in, err = n.Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, "canonical", in.SeasonalUsage)
}

func TestNormalizeAppliesNFC(t *testing.T) {
	n := NewLegacyNormalizer(zap.NewNop())

	doc := legacyDoc("Süssholz") // dekomponiertes ü
	in, err := n.Normalize(doc)
	require.NoError(t, err)
	assert.Equal(t, "Süssholz", in.Name)
}

func TestNormalizeRejectsWrongShapes(t *testing.T) {
	n := NewLegacyNormalizer(zap.NewNop())

	doc := legacyDoc("Holy Basil")
	doc["Common_Names"] = "not an array"
	_, err := n.Normalize(doc)
	var invalid *ValidationError
	assert.ErrorAs(t, err, &invalid)

	doc = legacyDoc("Holy Basil")
	doc["Health_Benefits"] = []any{"not an object"}
	_, err = n.Normalize(doc)
	assert.ErrorAs(t, err, &invalid)
}

func TestImportAllSkipsDuplicatesAndCollectsFailures(t *testing.T) {
	svc := newTestService(t)
	n := NewLegacyNormalizer(zap.NewNop())

	broken := legacyDoc("Broken")
	broken["Common_Names"] = 42

	docs := []map[string]any{
		legacyDoc("Holy Basil"),
		legacyDoc("Holy Basil"), // Duplikat
		broken,
	}

	stats := n.ImportAll(context.Background(), svc, docs)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, stats.Errors, 1)

	count, err := svc.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
