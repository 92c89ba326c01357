package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/herbenzoayurvedic-eng/herbs/models"
)

// LegacyNormalizer überführt Roh-Dokumente aus dem historischen
// Datenbestand in die kanonische Form. Der Altbestand nutzt
// Snake_Case-Feldnamen mit driftenden Varianten (z.B. "Image-url"
// neben "Image_URL"); die Alias-Tabelle wird genau einmal an dieser
// Grenze konsultiert, dahinter existiert nur noch die kanonische Form.
type LegacyNormalizer struct {
	Logger *zap.Logger
}

// NewLegacyNormalizer erstellt eine neue Instanz des LegacyNormalizer.
func NewLegacyNormalizer(logger *zap.Logger) *LegacyNormalizer {
	return &LegacyNormalizer{Logger: logger}
}

// fieldAliases: kanonischer Name → akzeptierte Schreibweisen in
// Präzedenz-Reihenfolge. Die Legacy-Form gewinnt, wenn mehrere
// Varianten vorhanden sind und die anderen leer.
var fieldAliases = map[string][]string{
	"name":                           {"Herb_Name", "name"},
	"commonNames":                    {"Common_Names", "commonNames"},
	"scientificName":                 {"Scientific_Name", "scientificName"},
	"introduction":                   {"Introduction", "introduction"},
	"backgroundAndTraditionalUse":    {"Background_and_Traditional_Use", "backgroundAndTraditionalUse"},
	"activeConstituents":             {"Active_Constituents", "activeConstituents"},
	"mechanismOfAction":              {"Mechanism_of_Action", "mechanismOfAction"},
	"healthBenefits":                 {"Health_Benefits", "healthBenefits"},
	"safetyAndSideEffects":           {"Safety_and_Side_Effects", "safetyAndSideEffects"},
	"toxicity":                       {"Toxicity", "toxicity"},
	"warningsAndContraindications":   {"Warnings_and_Contraindications", "warningsAndContraindications"},
	"drugInteractions":               {"Drug_Interactions", "drugInteractions"},
	"recommendedDosage":              {"Recommended_Dosage", "recommendedDosage"},
	"seasonalUsage":                  {"Seasonal_usage", "Seasonal_Usage", "seasonal_usage", "seasonalUsage"},
	"references":                     {"References", "references"},
	"activePharmaceuticalIngredient": {"Active_Pharmaceutical_Ingredient", "activePharmaceuticalIngredient"},
	"imageUrl":                       {"Image-url", "Image_URL", "imageUrl"},
	"slug":                           {"slug"},
}

var benefitAliases = map[string][]string{
	"benefitName":     {"Benefit_Name", "benefitName"},
	"evidenceSummary": {"Evidence_Summary", "evidenceSummary"},
	"evidenceRating":  {"Evidence_Rating", "evidenceRating"},
}

var apiAliases = map[string][]string{
	"name":                       {"Name", "name"},
	"chemicalFormula":            {"Chemical_Formula", "chemicalFormula"},
	"iupacName":                  {"IUPAC_Name", "iupacName"},
	"molecularWeight":            {"Molecular_Weight", "molecularWeight"},
	"chemicalClassification":     {"Chemical_Classification", "chemicalClassification"},
	"molecularStructureImageUrl": {"Molecular_Structure_Image", "molecularStructureImageUrl"},
}

// pick liefert den ersten nicht-leeren Treffer gemäß Alias-Präzedenz.
func pick(doc map[string]any, aliases []string) any {
	var fallback any
	for _, key := range aliases {
		v, ok := doc[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			if fallback == nil {
				fallback = v
			}
			continue
		}
		return v
	}
	return fallback
}

// cleanText normalisiert importierten Text nach Unicode-NFC.
// Der Altbestand mischt komponierte und dekomponierte Umlaut-Formen.
func cleanText(v any) string {
	s, _ := v.(string)
	if s == "" {
		return ""
	}
	return norm.NFC.String(s)
}

func pickText(doc map[string]any, canonical string) string {
	return cleanText(pick(doc, fieldAliases[canonical]))
}

// Normalize überführt ein rohes Legacy-Dokument in einen HerbInput.
// Fehlende Pflichtfelder bleiben leer und werden erst von Create
// aggregiert gemeldet.
func (n *LegacyNormalizer) Normalize(doc map[string]any) (*HerbInput, error) {
	if doc == nil {
		return nil, errors.New("empty document")
	}

	in := &HerbInput{
		Name:                         pickText(doc, "name"),
		ScientificName:               pickText(doc, "scientificName"),
		Introduction:                 pickText(doc, "introduction"),
		BackgroundAndTraditionalUse:  pickText(doc, "backgroundAndTraditionalUse"),
		ActiveConstituents:           pickText(doc, "activeConstituents"),
		MechanismOfAction:            pickText(doc, "mechanismOfAction"),
		SafetyAndSideEffects:         pickText(doc, "safetyAndSideEffects"),
		Toxicity:                     pickText(doc, "toxicity"),
		WarningsAndContraindications: pickText(doc, "warningsAndContraindications"),
		DrugInteractions:             pickText(doc, "drugInteractions"),
		RecommendedDosage:            pickText(doc, "recommendedDosage"),
		SeasonalUsage:                pickText(doc, "seasonalUsage"),
		References:                   pickText(doc, "references"),
		ImageURL:                     pickText(doc, "imageUrl"),
		Slug:                         pickText(doc, "slug"),
	}

	if raw := pick(doc, fieldAliases["commonNames"]); raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, &ValidationError{Msg: "Common_Names must be an array of strings"}
		}
		names := make([]string, 0, len(list))
		for _, item := range list {
			names = append(names, cleanText(item))
		}
		in.CommonNames = names
	}

	if raw := pick(doc, fieldAliases["healthBenefits"]); raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, &ValidationError{Msg: "Health_Benefits must be an array"}
		}
		for i, item := range list {
			entry, ok := item.(map[string]any)
			if !ok {
				return nil, &ValidationError{Msg: fmt.Sprintf("Health_Benefits[%d] must be an object", i)}
			}
			in.HealthBenefits = append(in.HealthBenefits, models.HealthBenefit{
				BenefitName:     cleanText(pick(entry, benefitAliases["benefitName"])),
				EvidenceSummary: cleanText(pick(entry, benefitAliases["evidenceSummary"])),
				EvidenceRating:  cleanText(pick(entry, benefitAliases["evidenceRating"])),
			})
		}
	}

	if raw := pick(doc, fieldAliases["activePharmaceuticalIngredient"]); raw != nil {
		entry, ok := raw.(map[string]any)
		if !ok {
			return nil, &ValidationError{Msg: "Active_Pharmaceutical_Ingredient must be an object"}
		}
		in.ActivePharmaceuticalIngredient = &models.APIInfo{
			Name:                       cleanText(pick(entry, apiAliases["name"])),
			ChemicalFormula:            cleanText(pick(entry, apiAliases["chemicalFormula"])),
			IUPACName:                  cleanText(pick(entry, apiAliases["iupacName"])),
			MolecularWeight:            cleanText(pick(entry, apiAliases["molecularWeight"])),
			ChemicalClassification:     cleanText(pick(entry, apiAliases["chemicalClassification"])),
			MolecularStructureImageURL: cleanText(pick(entry, apiAliases["molecularStructureImageUrl"])),
		}
	}

	return in, nil
}

// ImportStats enthält Kennzahlen eines Bulk-Imports.
type ImportStats struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportAll normalisiert und importiert einen Legacy-Dump. Duplikate
// (Name bereits vorhanden) werden gezählt und übersprungen, fehlerhafte
// Dokumente gesammelt gemeldet; der Import bricht nicht ab.
func (n *LegacyNormalizer) ImportAll(ctx context.Context, svc *HerbService, docs []map[string]any) ImportStats {
	stats := ImportStats{}
	for i, doc := range docs {
		in, err := n.Normalize(doc)
		if err != nil {
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("document %d: %v", i, err))
			continue
		}
		if _, err := svc.Create(ctx, in); err != nil {
			if errors.Is(err, ErrDuplicateName) {
				stats.Skipped++
				continue
			}
			stats.Failed++
			stats.Errors = append(stats.Errors, fmt.Sprintf("document %d (%s): %v", i, in.Name, err))
			continue
		}
		stats.Created++
	}
	n.Logger.Info("Legacy import finished",
		zap.Int("created", stats.Created),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats
}
