package parsing

import "strings"

const quickQuartz = "Quick Quartz"

// ExtractMaterialAndName pulls the material and stone name out of a job page
// title, e.g. "Quartz | Cambria Hailey - Job Detail - Moraware Systemize".
// Either value is empty when the title does not follow a known layout.
func ExtractMaterialAndName(title string) (material, name string) {
	if left, right, ok := strings.Cut(title, "|"); ok {
		material = strings.TrimSpace(left)
		name, _, _ = strings.Cut(right, "-")
		return material, strings.TrimSpace(name)
	}

	if fields := strings.Fields(title); len(fields) > 0 && fields[0] == "Quick" {
		name, _, _ = strings.Cut(title, " - ")
		return quickQuartz, strings.TrimSpace(name)
	}

	return "", ""
}

// DefaultUnknown substitutes "unknown" for an empty value.
func DefaultUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
