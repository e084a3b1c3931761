package repository

import (
	"testing"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
)

func TestWildcardToLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"*", "%"},
		{"Doe^*", "Doe^%"},
		{"D?e", "D_e"},
		{"100%", `100\%`},
		{"a_b", `a\_b`},
		{`a\b`, `a\\b`},
	}

	for _, tt := range tests {
		if got := WildcardToLike(tt.in); got != tt.want {
			t.Errorf("WildcardToLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedup(t *testing.T) {
	rows := []models.Instance{
		{StudyInstanceUID: "1", SeriesInstanceUID: "1.1", SOPInstanceUID: "1.1.1"},
		{StudyInstanceUID: "1", SeriesInstanceUID: "1.1", SOPInstanceUID: "1.1.2"},
		{StudyInstanceUID: "1", SeriesInstanceUID: "1.2", SOPInstanceUID: "1.2.1"},
		{StudyInstanceUID: "2", SeriesInstanceUID: "2.1", SOPInstanceUID: "2.1.1"},
	}

	tests := []struct {
		level Level
		want  []string
	}{
		{LevelStudy, []string{"1.1.1", "2.1.1"}},
		{LevelSeries, []string{"1.1.1", "1.2.1", "2.1.1"}},
		{LevelInstance, []string{"1.1.1", "1.1.2", "1.2.1", "2.1.1"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			got := Dedup(rows, tt.level)
			if len(got) != len(tt.want) {
				t.Fatalf("Dedup() kept %d rows, want %d", len(got), len(tt.want))
			}
			for i, uid := range tt.want {
				if got[i].SOPInstanceUID != uid {
					t.Errorf("row %d = %s, want %s", i, got[i].SOPInstanceUID, uid)
				}
			}
		})
	}

	if len(rows) != 4 || rows[1].SOPInstanceUID != "1.1.2" {
		t.Error("Dedup mutated its input")
	}
}
