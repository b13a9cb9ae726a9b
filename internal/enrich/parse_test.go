package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullJSON = `{"description":"D","sector":"S","estimatedSize":"11-50","painPoints":["A","B"]}`

func ptr(s string) *string { return &s }

func TestParse_RoundTrip(t *testing.T) {
	want := &Data{
		Description:   ptr("D"),
		Sector:        ptr("S"),
		EstimatedSize: ptr("11-50"),
		PainPoints:    []string{"A", "B"},
	}

	tests := []struct {
		name string
		in   string
	}{
		{name: "plain", in: fullJSON},
		{name: "json_fence", in: "```json\n" + fullJSON + "\n```"},
		{name: "bare_fence", in: "```\n" + fullJSON + "\n```"},
		{name: "single_line_fence", in: "```json " + fullJSON + "```"},
		{name: "prose_around", in: "Here is what I found:\n" + fullJSON + "\nSources: [1] example.com"},
		{name: "fence_inside_prose", in: "Sure.\n```json\n" + fullJSON + "\n```\nHope this helps {smile}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParse_Refusal(t *testing.T) {
	got, err := Parse("I cannot help with that.")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrResponseParse)
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse("   ")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrResponseParse)
}

func TestParse_MalformedJSON(t *testing.T) {
	got, err := Parse(`Result: {"description": "D", "sector": }`)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrJSONParse)
}

func TestParse_UnbalancedObject(t *testing.T) {
	got, err := Parse(`{"description": "D"`)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrJSONParse)
}

func TestParse_BracesInsideStrings(t *testing.T) {
	got, err := Parse(`note: {"description":"uses {curly} braces \"quoted\"","sector":"S"} trailing`)
	require.NoError(t, err)
	require.NotNil(t, got.Description)
	assert.Equal(t, `uses {curly} braces "quoted"`, *got.Description)
	assert.Equal(t, "S", *got.Sector)
}

func TestParse_WrongTypesAreNulledPerField(t *testing.T) {
	got, err := Parse(`{"description":42,"sector":"SaaS","estimatedSize":{"min":1},"painPoints":["A",7,null,"  ","B",{"x":1}]}`)
	require.NoError(t, err)
	assert.Nil(t, got.Description)
	require.NotNil(t, got.Sector)
	assert.Equal(t, "SaaS", *got.Sector)
	assert.Nil(t, got.EstimatedSize)
	assert.Equal(t, []string{"A", "B"}, got.PainPoints)
}

func TestParse_PainPointsNotArray(t *testing.T) {
	got, err := Parse(`{"description":"D","painPoints":"A, B"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.PainPoints)
}

func TestParse_IgnoresUnknownKeys(t *testing.T) {
	got, err := Parse(`{"description":"D","sector":"S","linkedin":"x","confidence":"high"}`)
	require.NoError(t, err)
	assert.Equal(t, "D", *got.Description)
	assert.Nil(t, got.EstimatedSize)
}

func TestParse_KeyAliases(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantSize *string
		wantPain []string
	}{
		{
			name:     "aliases only",
			in:       `{"description":"D","sector":"S","size":"11-50","pain_points":["A"]}`,
			wantSize: ptr("11-50"),
			wantPain: []string{"A"},
		},
		{
			name:     "primary wins",
			in:       `{"estimatedSize":"51-200","size":"11-50","painPoints":["P"],"pain_points":["A"]}`,
			wantSize: ptr("51-200"),
			wantPain: []string{"P"},
		},
		{
			name:     "null primary falls back",
			in:       `{"estimatedSize":null,"size":"11-50","painPoints":null,"pain_points":["A"]}`,
			wantSize: ptr("11-50"),
			wantPain: []string{"A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSize, got.EstimatedSize)
			assert.Equal(t, tt.wantPain, got.PainPoints)
		})
	}

	got, err := Parse(`{"description":"D","sector":"S","size":"11-50","pain_points":["A"]}`)
	require.NoError(t, err)
	status, ok := Classify(*got)
	assert.True(t, ok)
	assert.Equal(t, StatusEnriched, status)
}

func TestParse_SkipsBracesBeforeObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "citation", in: "see {1}: " + fullJSON},
		{name: "empty braces", in: "template {} then " + fullJSON + " done"},
		{name: "unrelated object", in: `meta {"source":"web"} ` + fullJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			require.NotNil(t, got.Description)
			assert.Equal(t, "D", *got.Description)
			assert.Equal(t, []string{"A", "B"}, got.PainPoints)
		})
	}
}

func TestParse_OnlyUndecodableBlocks(t *testing.T) {
	got, err := Parse("see {1} and {2}")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrJSONParse)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		in         Data
		wantStatus Status
		wantOK     bool
	}{
		{
			name:       "enriched",
			in:         Data{Description: ptr("D"), Sector: ptr("S")},
			wantStatus: StatusEnriched,
			wantOK:     true,
		},
		{
			name:       "partial_description_only",
			in:         Data{Description: ptr("D"), PainPoints: []string{}},
			wantStatus: StatusPartial,
			wantOK:     true,
		},
		{
			name:       "partial_pain_points_only",
			in:         Data{PainPoints: []string{"A"}},
			wantStatus: StatusPartial,
			wantOK:     true,
		},
		{
			name:       "empty",
			in:         Data{PainPoints: []string{}},
			wantStatus: StatusNotEnriched,
			wantOK:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, ok := Classify(tt.in)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestClassify_AllNullJSONIsEmpty(t *testing.T) {
	got, err := Parse(`{"description":null,"sector":null,"estimatedSize":null,"painPoints":[]}`)
	require.NoError(t, err)
	_, ok := Classify(*got)
	assert.False(t, ok)
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	e := Entity{ID: 1, Name: " Acme ", Domain: "acme.test", Address: ""}
	p1 := BuildPrompt(e)
	p2 := BuildPrompt(e)
	assert.Equal(t, p1, p2)
	assert.Contains(t, p1, "Company name: Acme\n")
	assert.Contains(t, p1, "Website domain: acme.test")
	assert.NotContains(t, p1, "Address:")
}
