package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/herbenzoayurvedic-eng/herbs/models"
)

// HerbService kapselt alle Lese- und Schreiboperationen auf dem
// Kräuterkatalog. Pro Operation genau ein Store-Roundtrip.
type HerbService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewHerbService erstellt eine neue Instanz des HerbService.
func NewHerbService(db *gorm.DB, logger *zap.Logger) *HerbService {
	return &HerbService{DB: db, Logger: logger}
}

// HerbInput ist die kanonische Nutzlast für Create (und Seed-Import).
// Feldnamen entsprechen dem API-Vertrag, nicht dem Legacy-Schema.
type HerbInput struct {
	Name                           string                 `json:"name"`
	CommonNames                    []string               `json:"commonNames"`
	ScientificName                 string                 `json:"scientificName"`
	Introduction                   string                 `json:"introduction"`
	BackgroundAndTraditionalUse    string                 `json:"backgroundAndTraditionalUse"`
	ActiveConstituents             string                 `json:"activeConstituents"`
	MechanismOfAction              string                 `json:"mechanismOfAction"`
	HealthBenefits                 []models.HealthBenefit `json:"healthBenefits"`
	SafetyAndSideEffects           string                 `json:"safetyAndSideEffects"`
	Toxicity                       string                 `json:"toxicity"`
	WarningsAndContraindications   string                 `json:"warningsAndContraindications"`
	DrugInteractions               string                 `json:"drugInteractions"`
	RecommendedDosage              string                 `json:"recommendedDosage"`
	SeasonalUsage                  string                 `json:"seasonalUsage"`
	References                     string                 `json:"references"`
	ActivePharmaceuticalIngredient *models.APIInfo        `json:"activePharmaceuticalIngredient"`
	ImageURL                       string                 `json:"imageUrl"`
	Slug                           string                 `json:"slug"`
}

var slugWhitespace = regexp.MustCompile(`\s+`)

// DeriveSlug leitet den URL-Slug deterministisch aus dem Namen ab:
// Kleinschreibung, Whitespace-Läufe werden zu einzelnen Bindestrichen.
func DeriveSlug(name string) string {
	return slugWhitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// resolveSlug liefert den gespeicherten oder den abgeleiteten Slug.
// Rein präsentational, wird nie implizit zurückgeschrieben.
func resolveSlug(h *models.Herb) string {
	if h.Slug != "" {
		return h.Slug
	}
	return DeriveSlug(h.Name)
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, ErrMalformedID
	}
	return uint(id), nil
}

// ListAll liefert alle Einträge in der Karten-Projektion.
func (s *HerbService) ListAll(ctx context.Context) ([]models.HerbCard, error) {
	var herbs []models.Herb
	if err := s.DB.WithContext(ctx).Find(&herbs).Error; err != nil {
		return nil, classifyStoreError(err)
	}
	cards := make([]models.HerbCard, 0, len(herbs))
	for i := range herbs {
		h := &herbs[i]
		cards = append(cards, models.HerbCard{
			ID:             h.ID,
			Name:           h.Name,
			ImageURL:       h.ImageURL,
			ScientificName: h.ScientificName,
			Introduction:   h.Introduction,
			Slug:           resolveSlug(h),
		})
	}
	return cards, nil
}

// GetByID liefert den vollständigen Eintrag zur ID.
func (s *HerbService) GetByID(ctx context.Context, rawID string) (*models.Herb, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	var herb models.Herb
	if err := s.DB.WithContext(ctx).First(&herb, id).Error; err != nil {
		return nil, classifyStoreError(err)
	}
	herb.Slug = resolveSlug(&herb)
	return &herb, nil
}

// GetBySlug liefert den vollständigen Eintrag zum Slug. Zuerst der
// gespeicherte Slug, danach Abgleich gegen abgeleitete Slugs von
// Einträgen ohne expliziten Slug.
func (s *HerbService) GetBySlug(ctx context.Context, slug string) (*models.Herb, error) {
	var herb models.Herb
	err := s.DB.WithContext(ctx).Where("slug = ?", slug).First(&herb).Error
	if err == nil {
		return &herb, nil
	}
	if classified := classifyStoreError(err); classified != ErrNotFound {
		return nil, classified
	}

	var unslugged []models.Herb
	if err := s.DB.WithContext(ctx).Where("slug = '' OR slug IS NULL").Find(&unslugged).Error; err != nil {
		return nil, classifyStoreError(err)
	}
	for i := range unslugged {
		if DeriveSlug(unslugged[i].Name) == slug {
			h := unslugged[i]
			h.Slug = slug
			return &h, nil
		}
	}
	return nil, ErrNotFound
}

// requiredFields in der Reihenfolge des API-Vertrags. Die Liste wird
// vor jedem Schreibversuch vollständig geprüft, damit der Aufrufer
// alle Lücken in einer Antwort erfährt.
var requiredFields = []string{
	"name",
	"commonNames",
	"scientificName",
	"introduction",
	"backgroundAndTraditionalUse",
	"activeConstituents",
	"mechanismOfAction",
	"healthBenefits",
	"safetyAndSideEffects",
	"toxicity",
	"warningsAndContraindications",
	"drugInteractions",
	"recommendedDosage",
	"references",
	"activePharmaceuticalIngredient",
}

func missingFields(in *HerbInput) []string {
	present := map[string]bool{
		"name":                           in.Name != "",
		"commonNames":                    in.CommonNames != nil,
		"scientificName":                 in.ScientificName != "",
		"introduction":                   in.Introduction != "",
		"backgroundAndTraditionalUse":    in.BackgroundAndTraditionalUse != "",
		"activeConstituents":             in.ActiveConstituents != "",
		"mechanismOfAction":              in.MechanismOfAction != "",
		"healthBenefits":                 len(in.HealthBenefits) > 0,
		"safetyAndSideEffects":           in.SafetyAndSideEffects != "",
		"toxicity":                       in.Toxicity != "",
		"warningsAndContraindications":   in.WarningsAndContraindications != "",
		"drugInteractions":               in.DrugInteractions != "",
		"recommendedDosage":              in.RecommendedDosage != "",
		"references":                     in.References != "",
		"activePharmaceuticalIngredient": in.ActivePharmaceuticalIngredient != nil,
	}
	var missing []string
	for _, f := range requiredFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	return missing
}

func validateBenefits(benefits []models.HealthBenefit) error {
	for i, b := range benefits {
		if b.BenefitName == "" || b.EvidenceSummary == "" || b.EvidenceRating == "" {
			return &ValidationError{Msg: fmt.Sprintf(
				"healthBenefits[%d]: benefitName, evidenceSummary and evidenceRating are required", i)}
		}
	}
	return nil
}

// Create legt einen neuen Eintrag an. Pflichtfelder werden vor dem
// Store-Zugriff aggregiert geprüft (ein Fehler nennt alle Lücken).
func (s *HerbService) Create(ctx context.Context, in *HerbInput) (*models.Herb, error) {
	if missing := missingFields(in); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}
	if err := validateBenefits(in.HealthBenefits); err != nil {
		return nil, err
	}

	herb := models.Herb{
		Name:                         in.Name,
		CommonNames:                  datatypes.NewJSONSlice(in.CommonNames),
		ScientificName:               in.ScientificName,
		Introduction:                 in.Introduction,
		BackgroundAndTraditionalUse:  in.BackgroundAndTraditionalUse,
		ActiveConstituents:           in.ActiveConstituents,
		MechanismOfAction:            in.MechanismOfAction,
		SafetyAndSideEffects:         in.SafetyAndSideEffects,
		Toxicity:                     in.Toxicity,
		WarningsAndContraindications: in.WarningsAndContraindications,
		DrugInteractions:             in.DrugInteractions,
		RecommendedDosage:            in.RecommendedDosage,
		SeasonalUsage:                in.SeasonalUsage,
		References:                   in.References,
		HealthBenefits:               datatypes.NewJSONSlice(in.HealthBenefits),
		API:                          datatypes.NewJSONType(*in.ActivePharmaceuticalIngredient),
		ImageURL:                     in.ImageURL,
		Slug:                         in.Slug,
	}
	if err := s.DB.WithContext(ctx).Create(&herb).Error; err != nil {
		return nil, classifyStoreError(err)
	}
	s.Logger.Info("Herb created", zap.Uint("id", herb.ID), zap.String("name", herb.Name))
	herb.Slug = resolveSlug(&herb)
	return &herb, nil
}

// updatableFields mappt erlaubte API-Feldnamen auf Spaltennamen.
// Identität, Timestamps, Bild und Slug sind bewusst nicht dabei;
// unbekannte Felder werden stillschweigend verworfen.
var updatableFields = map[string]string{
	"name":                           "name",
	"commonNames":                    "common_names",
	"scientificName":                 "scientific_name",
	"introduction":                   "introduction",
	"backgroundAndTraditionalUse":    "background_and_traditional_use",
	"activeConstituents":             "active_constituents",
	"mechanismOfAction":              "mechanism_of_action",
	"healthBenefits":                 "health_benefits",
	"safetyAndSideEffects":           "safety_and_side_effects",
	"toxicity":                       "toxicity",
	"warningsAndContraindications":   "warnings_and_contraindications",
	"drugInteractions":               "drug_interactions",
	"recommendedDosage":              "recommended_dosage",
	"seasonalUsage":                  "seasonal_usage",
	"references":                     "references",
	"activePharmaceuticalIngredient": "api",
}

// Pflicht-Textfelder dürfen per Update nicht geleert werden.
var requiredOnUpdate = map[string]bool{
	"name": true, "scientificName": true, "introduction": true,
	"backgroundAndTraditionalUse": true, "activeConstituents": true,
	"mechanismOfAction": true, "safetyAndSideEffects": true,
	"toxicity": true, "warningsAndContraindications": true,
	"drugInteractions": true, "recommendedDosage": true, "references": true,
}

func remarshal(src, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// convertUpdateValue validiert einen per Update gelieferten Wert und
// bringt ihn in die Store-Repräsentation.
func convertUpdateValue(field string, value any) (any, error) {
	switch field {
	case "commonNames":
		var names []string
		if err := remarshal(value, &names); err != nil {
			return nil, &ValidationError{Msg: "commonNames must be an array of strings"}
		}
		if names == nil {
			names = []string{}
		}
		return datatypes.NewJSONSlice(names), nil
	case "healthBenefits":
		var benefits []models.HealthBenefit
		if err := remarshal(value, &benefits); err != nil {
			return nil, &ValidationError{Msg: "healthBenefits must be an array of benefit objects"}
		}
		if len(benefits) == 0 {
			return nil, &ValidationError{Msg: "healthBenefits must contain at least one entry"}
		}
		if err := validateBenefits(benefits); err != nil {
			return nil, err
		}
		return datatypes.NewJSONSlice(benefits), nil
	case "activePharmaceuticalIngredient":
		var info models.APIInfo
		if value == nil {
			return nil, &ValidationError{Msg: "activePharmaceuticalIngredient must be an object"}
		}
		if err := remarshal(value, &info); err != nil {
			return nil, &ValidationError{Msg: "activePharmaceuticalIngredient must be an object"}
		}
		return datatypes.NewJSONType(info), nil
	default:
		str, ok := value.(string)
		if !ok {
			return nil, &ValidationError{Msg: field + " must be a string"}
		}
		if str == "" && requiredOnUpdate[field] {
			return nil, &ValidationError{Msg: field + " must not be empty"}
		}
		return str, nil
	}
}

// Update ändert einen Eintrag anhand einer partiellen Nutzlast.
// Nur Whitelist-Felder werden weitergereicht; ein effektiv leeres
// Update liefert den unveränderten Eintrag zurück.
func (s *HerbService) Update(ctx context.Context, rawID string, payload map[string]any) (*models.Herb, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	var herb models.Herb
	if err := s.DB.WithContext(ctx).First(&herb, id).Error; err != nil {
		return nil, classifyStoreError(err)
	}

	updates := map[string]any{}
	for field, value := range payload {
		column, ok := updatableFields[field]
		if !ok {
			continue
		}
		converted, err := convertUpdateValue(field, value)
		if err != nil {
			return nil, err
		}
		updates[column] = converted
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(&herb).Updates(updates).Error; err != nil {
			return nil, classifyStoreError(err)
		}
		if err := s.DB.WithContext(ctx).First(&herb, id).Error; err != nil {
			return nil, classifyStoreError(err)
		}
	}
	herb.Slug = resolveSlug(&herb)
	return &herb, nil
}

// SetImageURL hinterlegt den Objekt-Link nach einem Bild-Upload.
func (s *HerbService) SetImageURL(ctx context.Context, rawID, url string) (*models.Herb, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	res := s.DB.WithContext(ctx).Model(&models.Herb{}).Where("id = ?", id).Update("image_url", url)
	if res.Error != nil {
		return nil, classifyStoreError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	var herb models.Herb
	if err := s.DB.WithContext(ctx).First(&herb, id).Error; err != nil {
		return nil, classifyStoreError(err)
	}
	herb.Slug = resolveSlug(&herb)
	return &herb, nil
}

// Delete entfernt einen Eintrag endgültig (kein Soft-Delete, alle
// Kinder sind eingebettet).
func (s *HerbService) Delete(ctx context.Context, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	res := s.DB.WithContext(ctx).Delete(&models.Herb{}, id)
	if res.Error != nil {
		return classifyStoreError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.Logger.Info("Herb deleted", zap.Uint("id", id))
	return nil
}

// Count liefert die Gesamtzahl der Einträge (für Metriken).
func (s *HerbService) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Herb{}).Count(&n).Error; err != nil {
		return 0, classifyStoreError(err)
	}
	return n, nil
}
