// Package prompts contains the system instruction sent to models.
//
// Prompt text is Go code rather than config files because it is program
// logic: it is embedded at compile time and validated by tests. Site
// operators who want a different persona drop a markdown file into the
// configured prompts directory; the loader substitutes the same
// {{placeholder}} values into either source.
package prompts
