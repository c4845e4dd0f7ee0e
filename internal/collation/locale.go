package collation

import (
	"os"
	"strings"

	"golang.org/x/text/language"
)

// localeEnv lists the variables consulted for the ambient locale, most
// specific first.
var localeEnv = []string{"LC_ALL", "LC_COLLATE", "LANG"}

// AmbientLocale returns the user's locale from the environment, or
// language.Und (root collation order) when none is set.
func AmbientLocale() language.Tag {
	for _, name := range localeEnv {
		if tag, ok := parsePOSIXLocale(os.Getenv(name)); ok {
			return tag
		}
	}
	return language.Und
}

// parsePOSIXLocale converts "de_DE.UTF-8@euro" style values to a tag.
// "C" and "POSIX" map to the root locale.
func parsePOSIXLocale(v string) (language.Tag, bool) {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	switch v {
	case "":
		return language.Und, false
	case "C", "POSIX":
		return language.Und, true
	}

	tag, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
	if err != nil {
		return language.Und, false
	}
	return tag, true
}
