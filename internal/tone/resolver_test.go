package tone

import "testing"

func TestParseStyle(t *testing.T) {
	cases := map[string]Style{
		"normal":     StyleNormal,
		"bold":       StyleBold,
		"super-bold": StyleSuperBold,
		"spicy":      StyleSpicy,
		"":           StyleNormal,
		"SPICY":      StyleNormal,
		"mild":       StyleNormal,
	}
	for in, want := range cases {
		if got := ParseStyle(in); got != want {
			t.Errorf("ParseStyle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDirective_NonEmptyForAllStyles(t *testing.T) {
	for _, s := range []Style{StyleNormal, StyleBold, StyleSuperBold, StyleSpicy} {
		if Directive(s) == "" {
			t.Errorf("empty directive for style %q", s)
		}
	}
	if Directive(Style("garbage")) != Directive(StyleNormal) {
		t.Error("unknown style should resolve to the normal directive")
	}
}

func TestClauses_AllCombinations(t *testing.T) {
	for l := 1; l <= 3; l++ {
		for e := 1; e <= 3; e++ {
			for f := 1; f <= 3; f++ {
				length, emoji, flirt := Clauses(Sliders{Length: l, Emoji: e, Flirt: f})
				if length == "" || emoji == "" || flirt == "" {
					t.Errorf("empty clause for sliders {%d,%d,%d}", l, e, f)
				}
			}
		}
	}
}

func TestNormalize_Defaults(t *testing.T) {
	got := Sliders{}.Normalize()
	if got != DefaultSliders {
		t.Errorf("zero sliders normalize to %+v, want %+v", got, DefaultSliders)
	}

	got = Sliders{Length: 7, Emoji: -1, Flirt: 3}.Normalize()
	want := Sliders{Length: 2, Emoji: 2, Flirt: 3}
	if got != want {
		t.Errorf("out-of-range sliders normalize to %+v, want %+v", got, want)
	}
}

func TestClauses_OutOfRangeUsesDefaults(t *testing.T) {
	length, emoji, flirt := Clauses(Sliders{Length: 0, Emoji: 9, Flirt: 0})
	wantLength, wantEmoji, wantFlirt := Clauses(DefaultSliders)
	if length != wantLength || emoji != wantEmoji || flirt != wantFlirt {
		t.Errorf("out-of-range clauses = (%q,%q,%q), want defaults (%q,%q,%q)",
			length, emoji, flirt, wantLength, wantEmoji, wantFlirt)
	}
}
