package target

import (
	"strings"
	"unicode"
)

// primitiveTypes are rendered with their literal values when captured as
// parameters. Java spellings are accepted so plans produced by JVM analyzers
// load unchanged.
var primitiveTypes = map[string]bool{
	"bool": true, "byte": true, "rune": true,
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true, "complex64": true, "complex128": true,

	"boolean": true, "char": true, "short": true, "long": true, "float": true, "double": true,
}

var textualTypes = map[string]bool{
	"string":           true,
	"java.lang.String": true,
}

// IsPrimitive reports whether typ is a primitive scalar type.
func IsPrimitive(typ string) bool {
	return primitiveTypes[typ]
}

// IsTextual reports whether typ is a string type.
func IsTextual(typ string) bool {
	return textualTypes[typ]
}

// IsVoid reports whether typ denotes "no return value".
func IsVoid(typ string) bool {
	return typ == "" || typ == "void"
}

// IsLiteral reports whether values of typ are captured verbatim.
func IsLiteral(typ string) bool {
	return IsPrimitive(typ) || IsTextual(typ)
}

var tagReplacer = strings.NewReplacer(
	"[]", "-array",
	"$", ".",
	"/", ".",
	"[", ".of.",
	"]", ".",
	",", "_",
	"(", ".",
	")", ".",
	"*", "",
	" ", "",
)

// TagName turns a type or method name into a name usable as a record tag.
// Array markers become "-array" suffixes, generic brackets and separators
// are replaced, and inner-type separators are normalized to dots.
func TagName(name string) string {
	s := strings.TrimSpace(name)
	suffix := ""
	for {
		switch {
		case strings.HasPrefix(s, "*"):
			s = s[1:]
			continue
		case strings.HasPrefix(s, "[]"):
			s = s[2:]
			suffix += "-array"
			continue
		case strings.HasPrefix(s, "["):
			if end := strings.IndexByte(s, ']'); end > 1 && isDigits(s[1:end]) {
				s = s[end+1:]
				suffix += "-array"
				continue
			}
		}
		break
	}

	s = tagReplacer.Replace(s)
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	s = strings.Trim(s, ".")

	var b strings.Builder
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsDigit(r) || r == '.' || r == '-':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		b.WriteString("unnamed")
	}
	return b.String() + suffix
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
