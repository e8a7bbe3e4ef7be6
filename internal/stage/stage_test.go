package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold_StripsDiacriticsAndCase(t *testing.T) {
	assert.Equal(t, "annule", Fold("Annulé"))
	assert.Equal(t, "reponse negative", Fold("  Réponse Négative "))
	assert.Equal(t, "presente cabinet", Fold("Présenté Cabinet"))
}

func TestNormalize_ExactMatches(t *testing.T) {
	cases := map[string]Canonical{
		"Annulé":                          Annule,
		"RDV Confirmé":                    Confirme,
		"Réponse positive (RDV confirmé)": Confirme,
		"Pas venu":                        PasVenu,
		"No-Show":                         PasVenu,
		"Présent":                         Present,
		"Concrétisé":                      Concretise,
		"Non confirmé":                    NonConfirme,
		"Message envoyé":                  NonConfirme,
		"Sans réponse":                    SansReponse,
		"Voice Mail":                      SansReponse,
		"Unqualified":                     NonQualifie,
		"Database Reactivation":           Excluded,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}
}

func TestNormalize_SubstringRules(t *testing.T) {
	assert.Equal(t, Annule, Normalize("RDV annulé par le client"))
	assert.Equal(t, PasVenu, Normalize("Client pas venu au cabinet"))
	assert.Equal(t, Concretise, Normalize("Vente concrétisée"))
	assert.Equal(t, Confirme, Normalize("Dossier en cours de traitement"))
	assert.Equal(t, SansReponse, Normalize("3x sans réponse"))
}

func TestNormalize_ExcludedBeforeOtherRules(t *testing.T) {
	// "Database Reactivation" contains no other category token today, but
	// the rule must win even when combined with one.
	assert.Equal(t, Excluded, Normalize("Database Reactivation - RDV Confirmé"))
}

func TestNormalize_ExtraCategories(t *testing.T) {
	assert.Equal(t, Double, Normalize("Doublé"))
	assert.Equal(t, Erreur, Normalize("Fausse manipulation"))
	assert.Equal(t, PlusInteresse, Normalize("Plus intéressé"))
}

func TestNormalize_FallbackIsFoldedInput(t *testing.T) {
	assert.Equal(t, Canonical("etape mystere"), Normalize("Étape Mystère"))
	assert.Equal(t, Canonical(""), Normalize("   "))
}

func TestNormalize_NeverPanics(t *testing.T) {
	for _, raw := range []string{"", " ", "\x00", "日本語", "éàçüö", "a b c d e f"} {
		assert.NotPanics(t, func() { Normalize(raw) })
	}
}
