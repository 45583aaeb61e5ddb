package snapshot

import "fmt"

// Registry is the closed, ordered set of settings the Builder round-trips.
// Adding a persisted setting means adding one Descriptor.
type Registry struct {
	descriptors []Descriptor
	byKey       map[string]int
}

// NewRegistry builds a registry, rejecting duplicate keys or storage keys.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		byKey:       make(map[string]int, len(descriptors)),
	}
	storageKeys := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		if d.Key == "" || d.StorageKey == "" {
			return nil, fmt.Errorf("snapshot: descriptor missing key or storage key: %+v", d)
		}
		if d.Section != SectionLayout && d.Section != SectionAppearance {
			return nil, fmt.Errorf("snapshot: descriptor %s has unknown section %q", d.Key, d.Section)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("snapshot: duplicate setting key %q", d.Key)
		}
		if storageKeys[d.StorageKey] {
			return nil, fmt.Errorf("snapshot: duplicate storage key %q", d.StorageKey)
		}
		storageKeys[d.StorageKey] = true
		r.byKey[d.Key] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	return r, nil
}

// MustRegistry is NewRegistry for static descriptor tables.
func MustRegistry(descriptors ...Descriptor) *Registry {
	r, err := NewRegistry(descriptors...)
	if err != nil {
		panic(err)
	}
	return r
}

// Descriptors returns the descriptors in registry order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Lookup returns the descriptor for a setting key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	i, ok := r.byKey[key]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

// Setting keys of the dashboard registry.
const (
	KeyGridColumns         = "gridColumns"
	KeyGridGapH            = "gridGapH"
	KeyGridGapV            = "gridGapV"
	KeyCardBorderRadius    = "cardBorderRadius"
	KeySectionSpacing      = "sectionSpacing"
	KeyActivePage          = "activePage"
	KeyPages               = "pages"
	KeyCardConfig          = "cardConfig"
	KeyTheme               = "theme"
	KeyLanguage            = "language"
	KeyCardTransparency    = "cardTransparency"
	KeyCardBorderOpacity   = "cardBorderOpacity"
	KeyBackgroundMode      = "backgroundMode"
	KeyBackgroundColor     = "backgroundColor"
	KeyBackgroundGradient  = "backgroundGradient"
	KeyBackgroundImage     = "backgroundImage"
	KeyCardBackgroundColor = "cardBackgroundColor"
	KeyInactivityTimeout   = "inactivityTimeout"
)

var dashboardRegistry = MustRegistry(
	Int(KeyGridColumns, SectionLayout, "grid_columns", 4).Range(1, 12),
	Int(KeyGridGapH, SectionLayout, "grid_gap_h", 12).Range(0, 64),
	Int(KeyGridGapV, SectionLayout, "grid_gap_v", 12).Range(0, 64),
	Int(KeyCardBorderRadius, SectionLayout, "card_border_radius", 16).Range(0, 64),
	Int(KeySectionSpacing, SectionLayout, "section_spacing", 24).Range(0, 128),
	String(KeyActivePage, SectionLayout, "active_page", "home"),
	JSON(KeyPages, SectionLayout, "pages", `[]`),
	JSON(KeyCardConfig, SectionLayout, "card_config", `{}`),

	String(KeyTheme, SectionAppearance, "theme", "dark").OneOf("dark", "light", "auto"),
	String(KeyLanguage, SectionAppearance, "language", "en"),
	Float(KeyCardTransparency, SectionAppearance, "card_transparency", 0.75).Range(0, 1),
	Float(KeyCardBorderOpacity, SectionAppearance, "card_border_opacity", 0.1).Range(0, 1),
	String(KeyBackgroundMode, SectionAppearance, "background_mode", "theme").OneOf("theme", "color", "gradient", "image"),
	String(KeyBackgroundColor, SectionAppearance, "background_color", "#101418"),
	JSON(KeyBackgroundGradient, SectionAppearance, "background_gradient", `{"from":"#101418","to":"#1f2a38","angle":135}`),
	String(KeyBackgroundImage, SectionAppearance, "background_image", ""),
	String(KeyCardBackgroundColor, SectionAppearance, "card_background_color", "#1c2128"),
	Int(KeyInactivityTimeout, SectionAppearance, "inactivity_timeout", 0).Range(0, 86400),
)

// DashboardRegistry returns the registry of every persisted dashboard setting.
func DashboardRegistry() *Registry { return dashboardRegistry }
