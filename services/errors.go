package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Fehler-Taxonomie der Zugriffsschicht. Die HTTP-Schicht mappt diese
// auf Statuscodes, ohne GORM-Fehler kennen zu müssen.
var (
	// ErrNotFound: kein Datensatz zur gegebenen ID bzw. zum Slug.
	ErrNotFound = errors.New("herb not found")

	// ErrMalformedID: der Pfadparameter ist strukturell keine gültige ID.
	ErrMalformedID = errors.New("invalid herb ID")

	// ErrDuplicateName: Name kollidiert mit einem bestehenden Eintrag.
	ErrDuplicateName = errors.New("a herb with this name already exists")
)

// MissingFieldsError nennt alle fehlenden Pflichtfelder auf einmal,
// damit der Aufrufer nicht Feld für Feld iterieren muss.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// ValidationError: ein mitgeliefertes Feld hat Typ oder Form verfehlt.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// classifyStoreError übersetzt bekannte Store-Fehler in die Taxonomie.
// Alles Unbekannte wird gewrappt weitergereicht, nie verschluckt.
func classifyStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateName
	default:
		return fmt.Errorf("store error: %w", err)
	}
}
