package questions

import "strings"

// Supported coding languages.
const (
	LangPython     = "python"
	LangJavaScript = "javascript"
	LangJava       = "java"
	LangCPP        = "cpp"
	LangCSharp     = "csharp"
	LangGo         = "go"
)

var languageAliases = map[string]string{
	"python":     LangPython,
	"python3":    LangPython,
	"py":         LangPython,
	"javascript": LangJavaScript,
	"js":         LangJavaScript,
	"node":       LangJavaScript,
	"nodejs":     LangJavaScript,
	"java":       LangJava,
	"cpp":        LangCPP,
	"c++":        LangCPP,
	"csharp":     LangCSharp,
	"c#":         LangCSharp,
	"cs":         LangCSharp,
	"go":         LangGo,
	"golang":     LangGo,
}

// NormalizeLanguage maps a user-supplied language name to its canonical form.
func NormalizeLanguage(name string) (string, bool) {
	lang, ok := languageAliases[strings.ToLower(strings.TrimSpace(name))]
	return lang, ok
}

// Languages returns the canonical language names.
func Languages() []string {
	return []string{LangPython, LangJavaScript, LangJava, LangCPP, LangCSharp, LangGo}
}
