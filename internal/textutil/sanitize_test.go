package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"  plain  ":       "plain",
		"reach/grasp":     "reach-grasp",
		"what?<>|\"":      "what",
		"C:\\data":        "C--data",
		"..":              "",
		"":                "",
		"pilot *session*": "pilot -session-",
	}
	for input, want := range cases {
		if got := SanitizeFileName(input); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	cases := map[string]string{
		"P01":             "P01",
		" participant 7 ": "participant_7",
		"../../etc":       "etc",
		"a/b\\c":          "a_b_c",
		"séance":          "s_ance",
		"___":             "",
		"":                "",
		"run-2_b":         "run-2_b",
	}
	for input, want := range cases {
		if got := SanitizeIdentifier(input); got != want {
			t.Errorf("SanitizeIdentifier(%q) = %q, want %q", input, got, want)
		}
	}
}
