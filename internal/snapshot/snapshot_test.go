package snapshot_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/brianhealey/hadash/internal/kv"
	"github.com/brianhealey/hadash/internal/snapshot"
)

func newBuilder(t *testing.T, seed map[string]string) (*snapshot.Builder, *kv.MemStore) {
	t.Helper()
	store := kv.NewMemStoreFrom(seed)
	return snapshot.NewBuilder(store, nil), store
}

// recorder captures every setter call made during Apply/Set.
type recorder struct {
	calls map[string][]any
	order []string
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][]any)}
}

func (r *recorder) setters(keys ...string) snapshot.Setters {
	s := make(snapshot.Setters, len(keys))
	for _, k := range keys {
		k := k
		s[k] = func(v any) {
			r.calls[k] = append(r.calls[k], v)
			r.order = append(r.order, k)
		}
	}
	return s
}

// --- Collect ---

func TestCollect_EmptyStore_AllDefaults(t *testing.T) {
	b, _ := newBuilder(t, nil)
	snap := b.Collect()

	if snap.Version != snapshot.CurrentVersion {
		t.Errorf("Version = %d, want %d", snap.Version, snapshot.CurrentVersion)
	}
	if !snapshot.IsValid(snap) {
		t.Fatal("Collect() produced an invalid snapshot")
	}
	if !reflect.DeepEqual(snap, b.Defaults()) {
		t.Errorf("Collect() on empty store = %+v, want defaults %+v", snap, b.Defaults())
	}
	for _, d := range b.Registry().Descriptors() {
		if _, ok := snap.Section(d.Section)[d.Key]; !ok {
			t.Errorf("Collect() missing key %q in section %s", d.Key, d.Section)
		}
	}
}

func TestCollect_ParsesNumericAsNumber(t *testing.T) {
	b, _ := newBuilder(t, map[string]string{"card_border_radius": "28"})
	got := b.Collect().Layout[snapshot.KeyCardBorderRadius]
	if got != 28 {
		t.Errorf("layout.cardBorderRadius = %#v, want int 28", got)
	}
}

func TestCollect_MalformedValuesDegradeToDefault(t *testing.T) {
	b, _ := newBuilder(t, map[string]string{
		"grid_columns":        "lots",
		"card_transparency":   "0.5",
		"card_border_opacity": "7",        // out of range
		"theme":               "neon",     // not an allowed value
		"pages":               "[{broken", // bad JSON
	})
	snap := b.Collect()

	if got := snap.Layout[snapshot.KeyGridColumns]; got != 4 {
		t.Errorf("gridColumns = %#v, want default 4", got)
	}
	if got := snap.Appearance[snapshot.KeyCardTransparency]; got != 0.5 {
		t.Errorf("cardTransparency = %#v, want 0.5", got)
	}
	if got := snap.Appearance[snapshot.KeyCardBorderOpacity]; got != 0.1 {
		t.Errorf("cardBorderOpacity = %#v, want default 0.1", got)
	}
	if got := snap.Appearance[snapshot.KeyTheme]; got != "dark" {
		t.Errorf("theme = %#v, want default \"dark\"", got)
	}
	if got, ok := snap.Layout[snapshot.KeyPages].([]any); !ok || len(got) != 0 {
		t.Errorf("pages = %#v, want empty default list", snap.Layout[snapshot.KeyPages])
	}
}

func TestCollect_DoesNotWrite(t *testing.T) {
	b, store := newBuilder(t, map[string]string{"theme": "light"})
	b.Collect()
	if got := store.All(); len(got) != 1 {
		t.Errorf("store has %d keys after Collect, want 1", len(got))
	}
}

func TestDefaults_AreIndependentCopies(t *testing.T) {
	b, _ := newBuilder(t, nil)
	first := b.Defaults()
	first.Appearance[snapshot.KeyBackgroundGradient].(map[string]any)["from"] = "#ffffff"

	second := b.Defaults()
	if got := second.Appearance[snapshot.KeyBackgroundGradient].(map[string]any)["from"]; got != "#101418" {
		t.Errorf("default gradient mutated through a previous copy: from = %v", got)
	}
}

// --- Apply ---

func TestApply_WritesStoreThenCallsSetter(t *testing.T) {
	b, store := newBuilder(t, nil)
	rec := newRecorder()

	snap := snapshot.Snapshot{
		Version:    1,
		Layout:     map[string]any{snapshot.KeyCardBorderRadius: 34},
		Appearance: map[string]any{},
	}
	if err := b.Apply(snap, rec.setters(snapshot.KeyCardBorderRadius)); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if v, ok := store.Get("card_border_radius"); !ok || v != "34" {
		t.Errorf("store card_border_radius = %q, %v; want \"34\", true", v, ok)
	}
	calls := rec.calls[snapshot.KeyCardBorderRadius]
	if len(calls) != 1 || calls[0] != 34 {
		t.Errorf("setCardBorderRadius calls = %#v, want [34]", calls)
	}
}

func TestApply_NormalizesJSONNumbers(t *testing.T) {
	b, store := newBuilder(t, nil)
	rec := newRecorder()

	// Numbers decoded from a remote profile arrive as float64.
	snap, err := snapshot.Decode([]byte(`{"version":1,"layout":{"gridColumns":6},"appearance":{"inactivityTimeout":"120"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if err := b.Apply(snap, rec.setters(snapshot.KeyGridColumns, snapshot.KeyInactivityTimeout)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v, _ := store.Get("grid_columns"); v != "6" {
		t.Errorf("store grid_columns = %q, want \"6\"", v)
	}
	if got := rec.calls[snapshot.KeyGridColumns]; len(got) != 1 || got[0] != 6 {
		t.Errorf("gridColumns setter = %#v, want [int 6]", got)
	}
	if got := rec.calls[snapshot.KeyInactivityTimeout]; len(got) != 1 || got[0] != 120 {
		t.Errorf("inactivityTimeout setter = %#v, want [int 120]", got)
	}
}

func TestApply_PartialSnapshotLeavesOthersUntouched(t *testing.T) {
	b, store := newBuilder(t, map[string]string{"theme": "light", "grid_columns": "8"})

	snap := snapshot.Snapshot{
		Version:    1,
		Layout:     map[string]any{},
		Appearance: map[string]any{snapshot.KeyLanguage: "de"},
	}
	if err := b.Apply(snap, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	all := store.All()
	if all["theme"] != "light" || all["grid_columns"] != "8" {
		t.Errorf("untouched keys changed: %v", all)
	}
	if all["language"] != "de" {
		t.Errorf("language = %q, want \"de\"", all["language"])
	}
}

func TestApply_RegistryOrder(t *testing.T) {
	b, _ := newBuilder(t, nil)
	rec := newRecorder()

	snap := snapshot.Snapshot{
		Version:    1,
		Layout:     map[string]any{snapshot.KeyGridGapV: 4, snapshot.KeyGridColumns: 3},
		Appearance: map[string]any{snapshot.KeyTheme: "light"},
	}
	setters := rec.setters(snapshot.KeyTheme, snapshot.KeyGridGapV, snapshot.KeyGridColumns)
	if err := b.Apply(snap, setters); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []string{snapshot.KeyGridColumns, snapshot.KeyGridGapV, snapshot.KeyTheme}
	if !reflect.DeepEqual(rec.order, want) {
		t.Errorf("setter order = %v, want %v", rec.order, want)
	}
}

func TestApply_SkipsInvalidValues(t *testing.T) {
	b, store := newBuilder(t, map[string]string{"grid_columns": "4"})
	rec := newRecorder()

	snap := snapshot.Snapshot{
		Version: 1,
		Layout: map[string]any{
			snapshot.KeyGridColumns:    99, // out of range
			snapshot.KeyGridGapH:       8,
			snapshot.KeyCardConfig:     nil,
			snapshot.KeySectionSpacing: []any{1},
		},
		Appearance: map[string]any{},
	}
	if err := b.Apply(snap, rec.setters(snapshot.KeyGridColumns, snapshot.KeyGridGapH)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v, _ := store.Get("grid_columns"); v != "4" {
		t.Errorf("grid_columns = %q, want unchanged \"4\"", v)
	}
	if len(rec.calls[snapshot.KeyGridColumns]) != 0 {
		t.Error("setter called for rejected value")
	}
	if v, _ := store.Get("grid_gap_h"); v != "8" {
		t.Errorf("grid_gap_h = %q, want \"8\"", v)
	}
	if _, ok := store.Get("card_config"); ok {
		t.Error("nil JSON value was written")
	}
}

// failingStore fails every write after the first n.
type failingStore struct {
	*kv.MemStore
	n int
}

var errDiskFull = errors.New("disk full")

func (f *failingStore) Set(key, value string) error {
	if f.n == 0 {
		return errDiskFull
	}
	f.n--
	return f.MemStore.Set(key, value)
}

func TestApply_StoreFailureStopsAndKeepsProcessedConsistent(t *testing.T) {
	store := &failingStore{MemStore: kv.NewMemStore(), n: 1}
	b := snapshot.NewBuilder(store, nil)
	rec := newRecorder()

	snap := snapshot.Snapshot{
		Version:    1,
		Layout:     map[string]any{snapshot.KeyGridColumns: 3, snapshot.KeyGridGapH: 5},
		Appearance: map[string]any{snapshot.KeyTheme: "light"},
	}
	err := b.Apply(snap, rec.setters(snapshot.KeyGridColumns, snapshot.KeyGridGapH, snapshot.KeyTheme))
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Apply error = %v, want errDiskFull", err)
	}
	if v, _ := store.Get("grid_columns"); v != "3" {
		t.Errorf("grid_columns = %q, want \"3\"", v)
	}
	if got := rec.calls[snapshot.KeyGridColumns]; len(got) != 1 {
		t.Errorf("gridColumns setter calls = %d, want 1", len(got))
	}
	if len(rec.calls[snapshot.KeyGridGapH]) != 0 || len(rec.calls[snapshot.KeyTheme]) != 0 {
		t.Error("setters after the failed write should not run")
	}
}

// --- Round trip ---

func TestRoundTrip_EveryDescriptor(t *testing.T) {
	values := map[string]any{
		snapshot.KeyGridColumns:         6,
		snapshot.KeyGridGapH:            20,
		snapshot.KeyGridGapV:            8,
		snapshot.KeyCardBorderRadius:    28,
		snapshot.KeySectionSpacing:      40,
		snapshot.KeyActivePage:          "kitchen",
		snapshot.KeyPages:               []any{map[string]any{"id": "kitchen", "title": "Kitchen"}},
		snapshot.KeyCardConfig:          map[string]any{"kitchen": []any{"light.ceiling"}},
		snapshot.KeyTheme:               "light",
		snapshot.KeyLanguage:            "nl",
		snapshot.KeyCardTransparency:    0.4,
		snapshot.KeyCardBorderOpacity:   0.25,
		snapshot.KeyBackgroundMode:      "gradient",
		snapshot.KeyBackgroundColor:     "#000000",
		snapshot.KeyBackgroundGradient:  map[string]any{"from": "#111111", "to": "#222222", "angle": float64(90)},
		snapshot.KeyBackgroundImage:     "/local/bg.jpg",
		snapshot.KeyCardBackgroundColor: "#333333",
		snapshot.KeyInactivityTimeout:   300,
	}

	for _, d := range snapshot.DashboardRegistry().Descriptors() {
		d := d
		t.Run(d.Key, func(t *testing.T) {
			v, ok := values[d.Key]
			if !ok {
				t.Fatalf("no test value for %s", d.Key)
			}
			b, _ := newBuilder(t, nil)
			snap := snapshot.New()
			snap.Section(d.Section)[d.Key] = v
			if err := b.Apply(snap, nil); err != nil {
				t.Fatalf("Apply: %v", err)
			}
			got := b.Collect().Section(d.Section)[d.Key]
			if !reflect.DeepEqual(got, v) {
				t.Errorf("round trip %s = %#v, want %#v", d.Key, got, v)
			}
		})
	}
}

// --- Set / Get / Reset ---

func TestSet_UnknownKey(t *testing.T) {
	b, _ := newBuilder(t, nil)
	if _, err := b.Set("wallpaperSpin", 1, nil); !errors.Is(err, snapshot.ErrUnknownSetting) {
		t.Errorf("Set(unknown) error = %v, want ErrUnknownSetting", err)
	}
}

func TestSet_InvalidValue(t *testing.T) {
	tests := []struct {
		name string
		key  string
		v    any
	}{
		{"theme not in set", snapshot.KeyTheme, "neon"},
		{"fraction", snapshot.KeyGridColumns, 3.7},
		{"json fraction", snapshot.KeyGridColumns, json.Number("3.5")},
		{"bool", snapshot.KeyGridColumns, true},
		{"hex string", snapshot.KeyGridColumns, "0x0a"},
		{"exponent string", snapshot.KeyGridColumns, "1e1"},
		{"fraction string", snapshot.KeyGridColumns, "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, store := newBuilder(t, nil)
			got, err := b.Set(tt.key, tt.v, nil)
			if !errors.Is(err, snapshot.ErrInvalidValue) {
				t.Errorf("Set(%s=%#v) = %#v, %v; want ErrInvalidValue", tt.key, tt.v, got, err)
			}
			if _, ok := store.Get("grid_columns"); ok {
				t.Error("rejected value was stored")
			}
		})
	}
}

func TestSet_IntegralNumbers(t *testing.T) {
	for _, v := range []any{6, int64(6), 6.0, json.Number("6"), json.Number("6.0"), " 6 "} {
		b, _ := newBuilder(t, nil)
		got, err := b.Set(snapshot.KeyGridColumns, v, nil)
		if err != nil || got != 6 {
			t.Errorf("Set(gridColumns=%#v) = %#v, %v; want 6", v, got, err)
		}
	}
}

func TestApply_FractionalIntSkipped(t *testing.T) {
	b, _ := newBuilder(t, nil)
	snap := snapshot.New()
	snap.Layout[snapshot.KeyCardBorderRadius] = 34.5
	if err := b.Apply(snap, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := b.Collect().Layout[snapshot.KeyCardBorderRadius]; got != 16 {
		t.Errorf("cardBorderRadius = %#v, want default 16 kept", got)
	}
}

func TestSet_ReturnsNormalizedValue(t *testing.T) {
	b, _ := newBuilder(t, nil)
	got, err := b.Set(snapshot.KeyGridColumns, "5", nil)
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got != 5 {
		t.Errorf("Set returned %#v, want int 5", got)
	}
	if v, _ := b.Get(snapshot.KeyGridColumns); v != 5 {
		t.Errorf("Get = %#v, want 5", v)
	}
}

func TestReset_RestoresDefaults(t *testing.T) {
	b, store := newBuilder(t, map[string]string{"theme": "light", "grid_columns": "9", "unrelated": "x"})
	rec := newRecorder()

	if err := b.Reset(rec.setters(snapshot.KeyTheme)); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if !reflect.DeepEqual(b.Collect(), b.Defaults()) {
		t.Error("Collect after Reset does not equal Defaults")
	}
	if v, _ := store.Get("unrelated"); v != "x" {
		t.Error("Reset removed a key it does not own")
	}
	if got := rec.calls[snapshot.KeyTheme]; len(got) != 1 || got[0] != "dark" {
		t.Errorf("theme setter = %#v, want [\"dark\"]", got)
	}
}

// --- Validation ---

func TestIsValid(t *testing.T) {
	tests := []struct {
		name string
		snap snapshot.Snapshot
		want bool
	}{
		{"empty sections", snapshot.New(), true},
		{"zero version", snapshot.Snapshot{Version: 0, Layout: map[string]any{}, Appearance: map[string]any{}}, false},
		{"negative version", snapshot.Snapshot{Version: -1, Layout: map[string]any{}, Appearance: map[string]any{}}, false},
		{"nil layout", snapshot.Snapshot{Version: 1, Appearance: map[string]any{}}, false},
		{"nil appearance", snapshot.Snapshot{Version: 1, Layout: map[string]any{}}, false},
	}
	for _, tt := range tests {
		if got := snapshot.IsValid(tt.snap); got != tt.want {
			t.Errorf("IsValid(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{"valid", `{"version":1,"layout":{"gridColumns":4},"appearance":{}}`, false},
		{"future version", `{"version":3,"layout":{},"appearance":{}}`, false},
		{"missing version", `{"layout":{},"appearance":{}}`, true},
		{"string version", `{"version":"1","layout":{},"appearance":{}}`, true},
		{"fractional version", `{"version":1.5,"layout":{},"appearance":{}}`, true},
		{"array layout", `{"version":1,"layout":[],"appearance":{}}`, true},
		{"null appearance", `{"version":1,"layout":{},"appearance":null}`, true},
		{"missing appearance", `{"version":1,"layout":{}}`, true},
		{"not an object", `[1,2,3]`, true},
		{"not json", `{{`, true},
	}
	for _, tt := range tests {
		_, err := snapshot.Decode([]byte(tt.doc))
		if (err != nil) != tt.wantErr {
			t.Errorf("Decode(%s) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, snapshot.ErrInvalidSnapshot) {
			t.Errorf("Decode(%s) error = %v, want ErrInvalidSnapshot", tt.name, err)
		}
	}
}

func TestErrInvalidSnapshot_Message(t *testing.T) {
	if got := snapshot.ErrInvalidSnapshot.Error(); got != "Invalid snapshot data" {
		t.Errorf("ErrInvalidSnapshot.Error() = %q", got)
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := snapshot.NewRegistry(
		snapshot.Int("a", snapshot.SectionLayout, "a", 1),
		snapshot.Int("b", snapshot.SectionLayout, "a", 1),
	)
	if err == nil {
		t.Error("NewRegistry with duplicate storage key: error = nil")
	}
	_, err = snapshot.NewRegistry(
		snapshot.Int("a", snapshot.SectionLayout, "a", 1),
		snapshot.String("a", snapshot.SectionAppearance, "b", ""),
	)
	if err == nil {
		t.Error("NewRegistry with duplicate key: error = nil")
	}
}
