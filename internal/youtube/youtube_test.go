package youtube

import (
	"errors"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"watch url with extra params", "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ", true},
		{"short link", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"short link with timestamp", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ", true},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"live url", "https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"bare id with whitespace", "  dQw4w9WgXcQ  ", "dQw4w9WgXcQ", true},
		{"mobile url", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"too short id", "dQw4w9WgXc", "", false},
		{"too long token", "dQw4w9WgXcQQ", "", false},
		{"empty", "", "", false},
		{"unrelated url", "https://example.com/watch", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVideoID(tt.input)
			if ok != tt.ok {
				t.Fatalf("ExtractVideoID(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseReference(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantID    string
		wantQuery string
		wantErr   bool
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", "", false},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ", "", false},
		{"free text query", "never gonna give you up", "", "never gonna give you up", false},
		{"empty input", "", "", "", true},
		{"whitespace only", "   ", "", "", true},
		{"youtube url without id", "https://www.youtube.com/feed/trending", "", "", true},
		{"malformed short link", "https://youtu.be/short", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseReference(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseReference(%q) error = nil, want error", tt.input)
				}
				if !errors.Is(err, ErrInvalidReference) {
					t.Errorf("ParseReference(%q) error = %v, want ErrInvalidReference", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReference(%q) error = %v", tt.input, err)
			}
			if ref.VideoID != tt.wantID {
				t.Errorf("VideoID = %q, want %q", ref.VideoID, tt.wantID)
			}
			if ref.Query != tt.wantQuery {
				t.Errorf("Query = %q, want %q", ref.Query, tt.wantQuery)
			}
		})
	}
}

func TestReferenceWatchURL(t *testing.T) {
	ref := Reference{VideoID: "dQw4w9WgXcQ"}
	want := "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	if got := ref.WatchURL(); got != want {
		t.Errorf("WatchURL() = %q, want %q", got, want)
	}
}
