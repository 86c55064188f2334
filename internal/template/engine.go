// Package template extracts, validates and substitutes {{variable}}
// placeholders in post templates. Every function is pure.
package template

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/TristanHourtoulle/brandium-backend-sub002/pkg/types"
)

var (
	// variablePattern matches a well-formed placeholder and captures its name.
	variablePattern = regexp.MustCompile(`\{\{([A-Za-z0-9_-]+)\}\}`)

	// leftoverPattern matches anything that still looks like a placeholder.
	leftoverPattern = regexp.MustCompile(`\{\{[^{}]*\}\}`)

	validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ExtractVariables returns the distinct placeholder names in content, in
// order of first appearance.
func ExtractVariables(content string) []string {
	matches := variablePattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return []string{}
	}

	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := content[m[2]:m[3]]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// IsValidVariableName reports whether name only uses [A-Za-z0-9_-].
func IsValidVariableName(name string) bool {
	return validName.MatchString(name)
}

// ValidateDefinition lists the problems of a template definition: variables
// used in content but not declared, and declared names with invalid
// characters. Declared variables that content never uses are allowed.
func ValidateDefinition(content string, variables []types.VariableSpec) []string {
	var problems []string

	declared := make(map[string]struct{}, len(variables))
	for _, v := range variables {
		declared[v.Name] = struct{}{}
		if !IsValidVariableName(v.Name) {
			problems = append(problems, fmt.Sprintf("variable name %q contains invalid characters (allowed: letters, digits, _ and -)", v.Name))
		}
	}

	for _, name := range ExtractVariables(content) {
		if _, ok := declared[name]; !ok {
			problems = append(problems, fmt.Sprintf("variable %q is used in content but not declared", name))
		}
	}

	return problems
}

// Validate wraps ValidateDefinition into a single types.ErrValidation error.
func Validate(def types.TemplateDefinition) error {
	problems := ValidateDefinition(def.Content, def.Variables)
	if len(problems) == 0 {
		return nil
	}
	errs := make([]error, len(problems))
	for i, p := range problems {
		errs[i] = errors.New(p)
	}
	return fmt.Errorf("%w: template %q: %w", types.ErrValidation, def.Name, errors.Join(errs...))
}

// Render substitutes values into content.
//
// Provided values that are absent or empty fall back to the variable's
// default. If a required variable is still without a value, rendering stops
// and Content is empty. Declared optional variables without a value render as
// the empty string. Substitution is a single pass, so values are never
// scanned for placeholders themselves.
func Render(content string, provided map[string]string, variables []types.VariableSpec) types.RenderResult {
	merged := make(map[string]string, len(variables)+len(provided))
	for name, value := range provided {
		merged[name] = value
	}
	for _, v := range variables {
		if merged[v.Name] == "" && v.DefaultValue != "" {
			merged[v.Name] = v.DefaultValue
		}
	}

	var missing []string
	for _, v := range variables {
		if v.Required && merged[v.Name] == "" {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		return types.RenderResult{
			Content:          "",
			MissingVariables: missing,
			Warnings:         []string{fmt.Sprintf("missing required variables: %s", strings.Join(missing, ", "))},
		}
	}

	declared := make(map[string]struct{}, len(variables))
	for _, v := range variables {
		declared[v.Name] = struct{}{}
	}

	referenced := make(map[string]struct{})
	out := variablePattern.ReplaceAllStringFunc(content, func(token string) string {
		name := token[2 : len(token)-2]
		if value, ok := merged[name]; ok {
			referenced[name] = struct{}{}
			return value
		}
		if _, ok := declared[name]; ok {
			referenced[name] = struct{}{}
			return ""
		}
		return token
	})

	warnings := []string{}
	for _, name := range sortedKeys(provided) {
		if _, ok := referenced[name]; !ok {
			warnings = append(warnings, fmt.Sprintf("variable %q was provided but is not used in the template", name))
		}
	}
	if leftovers := unresolvedTokens(out); len(leftovers) > 0 {
		warnings = append(warnings, fmt.Sprintf("unresolved placeholders remain: %s", strings.Join(leftovers, ", ")))
	}

	return types.RenderResult{
		Content:          out,
		MissingVariables: []string{},
		Warnings:         warnings,
	}
}

// unresolvedTokens lists the distinct placeholder-like tokens left in rendered
// output, including any a substituted value brought in.
func unresolvedTokens(rendered string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range leftoverPattern.FindAllString(rendered, -1) {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
