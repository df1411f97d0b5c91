package core

import (
	"github.com/alecthomas/chroma/v2/lexers"

	"pkt.systems/mdpane/schema"
)

// plainTextLexer is reported when no lexer matches a language tag.
const plainTextLexer = "plaintext"

var languageAliases = map[string]string{
	"mdx":      "markdown",
	"md":       "markdown",
	"markdown": "markdown",
}

// resolveLexer maps a buffer language tag to a highlighter lexer name.
// The core never interprets the tag beyond this lookup.
func resolveLexer(tag string) string {
	name := schema.NormalizeLanguage(tag)
	if name == plainTextLexer {
		return plainTextLexer
	}
	if alias, ok := languageAliases[name]; ok {
		name = alias
	}
	lexer := lexers.Get(name)
	if lexer == nil {
		return plainTextLexer
	}
	cfg := lexer.Config()
	if cfg == nil || cfg.Name == "" {
		return plainTextLexer
	}
	return cfg.Name
}
