package docsystem

import "testing"

func TestPrefixColumns(t *testing.T) {
	tests := []struct {
		name    string
		alias   string
		columns string
		want    string
	}{
		{"single", "d", "id", "d.id"},
		{"several", "c", "id, label,score", "c.id, c.label, c.score"},
		{"multiline", "d", "id,\n\tfolder_id", "d.id, d.folder_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := prefixColumns(tt.alias, tt.columns); got != tt.want {
				t.Errorf("prefixColumns(%q, %q) = %q, want %q", tt.alias, tt.columns, got, tt.want)
			}
		})
	}
}
