package render

import "testing"

func TestEscapeText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"<script>", "&lt;script&gt;"},
		{"a & b", "a &amp; b"},
		{`"quoted"`, "&quot;quoted&quot;"},
		{"it's", "it&#39;s"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := escapeText(tc.in); got != tc.want {
			t.Errorf("escapeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeAttr(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`x" onload="evil`, "x&quot; onload=&quot;evil"},
		{"line\nbreak", "line&#10;break"},
		{"tab\there", "tab&#9;here"},
		{"cr\rhere", "cr&#13;here"},
	}
	for _, tc := range cases {
		if got := escapeAttr(tc.in); got != tc.want {
			t.Errorf("escapeAttr(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
