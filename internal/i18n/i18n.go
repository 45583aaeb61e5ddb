// Package i18n holds the user-visible messages of the settings subsystem and
// renders them in the dashboard's configured language.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	PinIncorrect     = "pin.incorrect"
	PinInvalidFormat = "pin.invalid_format"
	AccessRequired   = "access.required"
)

var supported = []language.Tag{
	language.English,
	language.German,
	language.Dutch,
	language.French,
}

var matcher = language.NewMatcher(supported)

var cat = func() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	set := func(tag language.Tag, key, msg string) {
		if err := b.SetString(tag, key, msg); err != nil {
			panic(err)
		}
	}

	set(language.English, PinIncorrect, "Incorrect PIN")
	set(language.English, PinInvalidFormat, "PIN must be 4 to 8 digits")
	set(language.English, AccessRequired, "Enter the settings PIN to continue")

	set(language.German, PinIncorrect, "Falsche PIN")
	set(language.German, PinInvalidFormat, "Die PIN muss aus 4 bis 8 Ziffern bestehen")
	set(language.German, AccessRequired, "Gib die Einstellungs-PIN ein, um fortzufahren")

	set(language.Dutch, PinIncorrect, "Onjuiste pincode")
	set(language.Dutch, PinInvalidFormat, "De pincode moet uit 4 tot 8 cijfers bestaan")
	set(language.Dutch, AccessRequired, "Voer de instellingen-pincode in om door te gaan")

	set(language.French, PinIncorrect, "Code PIN incorrect")
	set(language.French, PinInvalidFormat, "Le code PIN doit comporter 4 à 8 chiffres")
	set(language.French, AccessRequired, "Saisissez le code PIN des paramètres pour continuer")
	return b
}()

// Translate renders key in lang. Unknown or malformed languages fall back to
// English; unknown keys render as the key itself.
func Translate(lang, key string) string {
	_, idx, _ := matcher.Match(language.Make(lang))
	p := message.NewPrinter(supported[idx], message.Catalog(cat))
	return p.Sprintf(key)
}

// Translator returns a function bound to a language source, read on every
// call so a language change takes effect immediately.
func Translator(lang func() string) func(key string) string {
	return func(key string) string {
		return Translate(lang(), key)
	}
}
