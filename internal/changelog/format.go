package changelog

import (
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/fatih/color"
)

// CategoryStyle defines the color and icon for a changelog category.
type CategoryStyle struct {
	Color *color.Color
	Icon  string
}

var categoryStyles = map[string]CategoryStyle{
	"added":      {Color: color.New(color.FgGreen), Icon: "+"},
	"changed":    {Color: color.New(color.FgBlue), Icon: "~"},
	"deprecated": {Color: color.New(color.FgYellow), Icon: "!"},
	"removed":    {Color: color.New(color.FgRed), Icon: "-"},
	"fixed":      {Color: color.New(color.FgYellow), Icon: "*"},
	"security":   {Color: color.New(color.FgMagenta), Icon: "#"},
}

var defaultStyle = CategoryStyle{Color: color.New(color.FgWhite), Icon: "-"}

// FormatOptions controls the terminal output formatting.
type FormatOptions struct {
	Plain bool // Disable colors and icons
}

// Format writes versions to w, separated by blank lines.
func Format(versions []Version, w io.Writer, opts FormatOptions) error {
	for i := range versions {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if err := FormatVersion(&versions[i], w, opts); err != nil {
			return fmt.Errorf("formatting version %s: %w", versions[i].Version, err)
		}
	}
	return nil
}

// FormatVersion writes one version with its categories.
func FormatVersion(v *Version, w io.Writer, opts FormatOptions) error {
	if err := writeVersionHeader(v, w, opts); err != nil {
		return err
	}
	if v.Count() == 0 {
		_, err := fmt.Fprintln(w, "  (no entries)")
		return err
	}

	for _, s := range v.Sections {
		if len(s.Entries) == 0 {
			continue
		}
		style, ok := categoryStyles[s.Category]
		if !ok {
			style = defaultStyle
		}
		if err := writeSection(s, style, w, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeVersionHeader(v *Version, w io.Writer, opts FormatOptions) error {
	var header string
	switch {
	case v.IsUnreleased():
		header = "Unreleased"
	case v.Date != "":
		header = fmt.Sprintf("v%s (%s)", v.Version, v.Date)
	default:
		header = "v" + v.Version
	}

	if opts.Plain {
		_, err := fmt.Fprintf(w, "## %s\n", header)
		return err
	}
	_, err := fmt.Fprintf(w, "## %s\n", color.New(color.Bold).Sprint(header))
	return err
}

func writeSection(s Section, style CategoryStyle, w io.Writer, opts FormatOptions) error {
	name := title(s.Category)

	if opts.Plain {
		if _, err := fmt.Fprintf(w, "\n### %s\n", name); err != nil {
			return err
		}
		for _, e := range s.Entries {
			if _, err := fmt.Fprintf(w, "  - %s\n", e); err != nil {
				return err
			}
		}
		return nil
	}

	if _, err := fmt.Fprintf(w, "\n%s\n", style.Color.Sprint(name)); err != nil {
		return err
	}
	for _, e := range s.Entries {
		if _, err := fmt.Fprintf(w, "  %s %s\n", style.Color.Sprint(style.Icon), e); err != nil {
			return err
		}
	}
	return nil
}

// title upper-cases the first letter of a category name.
func title(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
