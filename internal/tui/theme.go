package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ThemeEnv overrides the theme file location.
const ThemeEnv = "STOCKSTATUS_THEME"

// ResolveTheme loads a theme with the following precedence:
//  1. NO_COLOR set → NoColorTheme
//  2. STOCKSTATUS_THEME → path to a theme.json
//  3. <config dir>/theme.json
//  4. DefaultTheme
//
// A theme file that fails to parse falls through to the next step.
func ResolveTheme(configDir string) Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColorTheme()
	}
	if path := os.Getenv(ThemeEnv); path != "" {
		if theme, err := LoadThemeFromFile(path); err == nil {
			return theme
		}
	}
	if configDir != "" {
		if theme, err := LoadThemeFromFile(filepath.Join(configDir, "theme.json")); err == nil {
			return theme
		}
	}
	return DefaultTheme()
}

// NoColorTheme returns a theme with empty colors.
// Lipgloss treats empty strings as "no color".
func NoColorTheme() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Foreground: empty,
		Border:     empty,
	}
}

// themeFile is the on-disk theme format. Each value is a "#rgb" or
// "#rrggbb" color applied to the dark variant; light variants keep
// the defaults.
//
//	{"primary": "#89b4fa", "success": "#a6e3a1", "error": "#f38ba8"}
type themeFile struct {
	Primary    string `json:"primary"`
	Success    string `json:"success"`
	Warning    string `json:"warning"`
	Error      string `json:"error"`
	Muted      string `json:"muted"`
	Foreground string `json:"foreground"`
	Border     string `json:"border"`
}

// LoadThemeFromFile reads a theme.json and overlays it on DefaultTheme.
// Invalid colors are ignored.
func LoadThemeFromFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return Theme{}, err
	}
	var f themeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Theme{}, err
	}

	t := DefaultTheme()
	overlay := func(c *lipgloss.AdaptiveColor, v string) {
		if isValidHexColor(v) {
			c.Dark = v
		}
	}
	overlay(&t.Primary, f.Primary)
	overlay(&t.Success, f.Success)
	overlay(&t.Warning, f.Warning)
	overlay(&t.Error, f.Error)
	overlay(&t.Muted, f.Muted)
	overlay(&t.Foreground, f.Foreground)
	overlay(&t.Border, f.Border)
	return t, nil
}

func isValidHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	for _, c := range hex {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
