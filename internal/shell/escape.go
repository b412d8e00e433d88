// Package shell escapes user text for the script languages the speech and
// notification backends shell out to.
package shell

import "strings"

// EscapePowerShell doubles single quotes for safe embedding inside
// PowerShell single-quoted strings.
func EscapePowerShell(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// EscapeAppleScript escapes backslashes and double quotes for safe
// embedding inside AppleScript strings.
func EscapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

var xmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML replaces XML-special characters so user content can be
// safely embedded inside XML text elements and attributes.
func EscapeXML(s string) string {
	return xmlReplacer.Replace(s)
}
