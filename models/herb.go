package models

import (
	"time"

	"gorm.io/datatypes"
)

// HealthBenefit beschreibt einen dokumentierten Nutzen samt Evidenzlage.
// Eingebettet im Herb-Dokument, keine eigene Identität.
type HealthBenefit struct {
	BenefitName     string `json:"benefitName"`
	EvidenceSummary string `json:"evidenceSummary"`
	EvidenceRating  string `json:"evidenceRating"`
}

// APIInfo beschreibt den aktiven pharmazeutischen Wirkstoff eines Krauts.
// Alle Felder optional, eingebettet im Herb-Dokument.
type APIInfo struct {
	Name                       string `json:"name,omitempty"`
	ChemicalFormula            string `json:"chemicalFormula,omitempty"`
	IUPACName                  string `json:"iupacName,omitempty"`
	MolecularWeight            string `json:"molecularWeight,omitempty"`
	ChemicalClassification     string `json:"chemicalClassification,omitempty"`
	MolecularStructureImageURL string `json:"molecularStructureImageUrl,omitempty"`
}

// Herb ist ein vollständiger Katalogeintrag für ein Heilkraut.
// Benefits und Wirkstoff werden als jsonb eingebettet gespeichert.
type Herb struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name        string                      `json:"name" gorm:"uniqueIndex;not null"`
	CommonNames datatypes.JSONSlice[string] `json:"commonNames"`

	ScientificName               string `json:"scientificName" gorm:"type:text"`
	Introduction                 string `json:"introduction" gorm:"type:text"`
	BackgroundAndTraditionalUse  string `json:"backgroundAndTraditionalUse" gorm:"type:text"`
	ActiveConstituents           string `json:"activeConstituents" gorm:"type:text"`
	MechanismOfAction            string `json:"mechanismOfAction" gorm:"type:text"`
	SafetyAndSideEffects         string `json:"safetyAndSideEffects" gorm:"type:text"`
	Toxicity                     string `json:"toxicity" gorm:"type:text"`
	WarningsAndContraindications string `json:"warningsAndContraindications" gorm:"type:text"`
	DrugInteractions             string `json:"drugInteractions" gorm:"type:text"`
	RecommendedDosage            string `json:"recommendedDosage" gorm:"type:text"`
	SeasonalUsage                string `json:"seasonalUsage" gorm:"type:text"`
	References                   string `json:"references" gorm:"type:text"`

	HealthBenefits datatypes.JSONSlice[HealthBenefit] `json:"healthBenefits"`
	API            datatypes.JSONType[APIInfo]        `json:"activePharmaceuticalIngredient"`

	ImageURL string `json:"imageUrl"`

	// Nur gesetzt, wenn explizit vergeben. Ohne Wert wird der Slug zur
	// Lesezeit aus dem Namen abgeleitet und nie zurückgeschrieben.
	Slug string `json:"slug" gorm:"index"`
}

// TableName gibt explizit den Tabellennamen an.
func (Herb) TableName() string {
	return "herbs"
}

// HerbCard ist die reduzierte Projektion für Listenansichten.
// Toxizität, Interaktionen usw. gehören bewusst nicht hinein.
type HerbCard struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	ImageURL       string `json:"imageUrl"`
	ScientificName string `json:"scientificName"`
	Introduction   string `json:"introduction"`
	Slug           string `json:"slug"`
}
