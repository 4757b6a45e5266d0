package core

import (
	"regexp"

	"pkt.systems/forgeview/schema"
)

// denyPatterns match noise that is never worth a remediation request:
// dependency internals and hot-reload chatter from the generated app's dev
// tooling.
var denyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`node_modules/`),
	regexp.MustCompile(`\[HMR\]`),
	regexp.MustCompile(`(?i)webpack-dev-server`),
	regexp.MustCompile(`hot-update`),
	regexp.MustCompile(`(?i)favicon\.ico`),
	regexp.MustCompile(`(?i)devtools`),
	regexp.MustCompile(`(?i)source map`),
}

// allowPatterns map failure signatures to remediation categories. First
// match wins.
var allowPatterns = []struct {
	re  *regexp.Regexp
	typ schema.ErrorType
}{
	{regexp.MustCompile(`(?i)syntax\s*error`), schema.ErrorTypeSyntax},
	{regexp.MustCompile(`(?i)unexpected token`), schema.ErrorTypeSyntax},
	{regexp.MustCompile(`(?i)unexpected (end of|EOF)`), schema.ErrorTypeSyntax},
	{regexp.MustCompile(`(?i)indentation\s*error`), schema.ErrorTypeSyntax},
	{regexp.MustCompile(`is not defined`), schema.ErrorTypeReference},
	{regexp.MustCompile(`(?i)reference\s*error`), schema.ErrorTypeReference},
	{regexp.MustCompile(`(?i)cannot find module`), schema.ErrorTypeReference},
	{regexp.MustCompile(`(?i)module\s*not\s*found`), schema.ErrorTypeReference},
	{regexp.MustCompile(`(?i)import\s*error`), schema.ErrorTypeReference},
	{regexp.MustCompile(`(?i)name\s*error`), schema.ErrorTypeReference},
	{regexp.MustCompile(`(?i)failed to compile`), schema.ErrorTypeCompile},
	{regexp.MustCompile(`(?i)compilation (failed|error)`), schema.ErrorTypeCompile},
	{regexp.MustCompile(`(?i)build failed`), schema.ErrorTypeCompile},
	{regexp.MustCompile(`(?i)cannot resolve`), schema.ErrorTypeCompile},
	{regexp.MustCompile(`(?i)type\s*error`), schema.ErrorTypeRuntime},
	{regexp.MustCompile(`(?i)uncaught (exception|error)`), schema.ErrorTypeRuntime},
	{regexp.MustCompile(`(?i)unhandled (promise )?rejection`), schema.ErrorTypeRuntime},
	{regexp.MustCompile(`Traceback \(most recent call last\)`), schema.ErrorTypeRuntime},
	{regexp.MustCompile(`(?i)internal server error`), schema.ErrorTypeRuntime},
}

// Classify decides whether a failure message is worth auto-fixing and under
// which remediation category. Denylisted messages are never actionable.
func Classify(message string) (schema.ErrorType, bool) {
	if message == "" {
		return "", false
	}
	for _, deny := range denyPatterns {
		if deny.MatchString(message) {
			return "", false
		}
	}
	for _, allow := range allowPatterns {
		if allow.re.MatchString(message) {
			return allow.typ, true
		}
	}
	return "", false
}
