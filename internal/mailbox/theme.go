package mailbox

import "fmt"

// Theme is the display theme.
type Theme string

const (
	ThemeLight   Theme = "light"
	ThemeDark    Theme = "dark"
	ThemeMinimal Theme = "minimal"
)

// Next returns the theme after t in the cycle light, dark, minimal.
// Unknown themes restart the cycle at light.
func (t Theme) Next() Theme {
	switch t {
	case ThemeLight:
		return ThemeDark
	case ThemeDark:
		return ThemeMinimal
	default:
		return ThemeLight
	}
}

// ParseTheme validates a theme name. Empty selects light.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case "":
		return ThemeLight, nil
	case ThemeLight, ThemeDark, ThemeMinimal:
		return Theme(s), nil
	}
	return ThemeLight, fmt.Errorf("unknown theme %q, must be one of: light, dark, minimal", s)
}
