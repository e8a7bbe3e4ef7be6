// Package stage maps raw CRM pipeline-stage and appointment-status labels
// onto a small canonical vocabulary used by every funnel computation.
package stage

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical is a normalized stage category. The named constants cover every
// stage the funnel math cares about; any other label normalizes to its
// accent-stripped, lower-cased form so unknown stages stay visible in
// per-stage breakdowns instead of being dropped.
type Canonical string

const (
	Annule        Canonical = "annule"
	Confirme      Canonical = "confirme"
	PasVenu       Canonical = "pas_venu"
	Present       Canonical = "present"
	Concretise    Canonical = "concretise"
	NonConfirme   Canonical = "non_confirme"
	NonQualifie   Canonical = "non_qualifie"
	SansReponse   Canonical = "sans_reponse"
	Double        Canonical = "double"
	Erreur        Canonical = "erreur"
	PlusInteresse Canonical = "plus_interesse"

	// Excluded marks Database Reactivation stages, which are removed from
	// every funnel numerator and denominator.
	Excluded Canonical = "excluded"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold strips diacritics, lower-cases, and trims a label. It is the
// comparison form used for exact-match lookups and merge keys.
func Fold(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// exact covers every literal stage label observed in production pipelines.
// Checked before the substring rules so a known label never depends on
// rule ordering.
var exact = map[string]Canonical{
	"annule":                          Annule,
	"rdv annule":                      Annule,
	"reponse negative":                Annule,
	"rdv confirme":                    Confirme,
	"rendez-vous confirme":            Confirme,
	"reponse positive":                Confirme,
	"reponse positive (rdv confirme)": Confirme,
	"en cours":                        Confirme,
	"pas venu":                        PasVenu,
	"pas venus":                       PasVenu,
	"no show":                         PasVenu,
	"no-show":                         PasVenu,
	"present":                         Present,
	"presente cabinet":                Present,
	"termine":                         Present,
	"concretise":                      Concretise,
	"non confirme":                    NonConfirme,
	"message envoye":                  NonConfirme,
	"non qualifie":                    NonQualifie,
	"unqualified":                     NonQualifie,
	"sans reponse":                    SansReponse,
	"without answer":                  SansReponse,
	"voice mail":                      SansReponse,
	"database reactivation":           Excluded,
}

// rule is one substring-containment rule. First match wins, so order is
// part of the contract: "database reactivation" shares tokens with other
// categories and must be tested first.
type rule struct {
	needles []string
	canon   Canonical
}

var rules = []rule{
	{[]string{"database reactivation"}, Excluded},
	{[]string{"annule", "reponse negative"}, Annule},
	{[]string{"pas venu", "pas venus", "no show", "no-show"}, PasVenu},
	{[]string{"concretise"}, Concretise},
	{[]string{"present", "presente cabinet", "termine"}, Present},
	{[]string{"non confirme", "message envoye"}, NonConfirme},
	{[]string{"rdv confirme", "rendez-vous confirme", "reponse positive", "en cours"}, Confirme},
	{[]string{"sans reponse", "without answer", "voice mail"}, SansReponse},
	{[]string{"unqualified", "non qualifie"}, NonQualifie},
	{[]string{"double"}, Double},
	{[]string{"fausse manipulation"}, Erreur},
	{[]string{"plus interesse"}, PlusInteresse},
}

// Normalize maps a raw stage label to its canonical category. It is total:
// labels matching no rule come back as their folded form.
func Normalize(raw string) Canonical {
	n := Fold(raw)
	if c, ok := exact[n]; ok {
		return c
	}
	for _, r := range rules {
		for _, needle := range r.needles {
			if strings.Contains(n, needle) {
				return r.canon
			}
		}
	}
	return Canonical(n)
}
