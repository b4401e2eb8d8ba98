package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraphs become lines",
			in:   "<html><body><p>Name: Jane Doe</p><p>Amount: 25</p></body></html>",
			want: "Name: Jane Doe\nAmount: 25",
		},
		{
			name: "line breaks and entities",
			in:   "Email: jane@example.org<br>Country: Fran&ccedil;e &amp; more",
			want: "Email: jane@example.org\nCountry: Françe & more",
		},
		{
			name: "script and style are dropped",
			in:   "<style>p{color:red}</style><script>alert(1)</script><div>visible</div>",
			want: "visible",
		},
		{
			name: "plain text is unchanged",
			in:   "Name: Jane Doe\n\n\nAmount: 25 &amp; more  ",
			want: "Name: Jane Doe\n\n\nAmount: 25 &amp; more  ",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkup(tt.in))
		})
	}
}

func TestStripMarkupIsIdempotent(t *testing.T) {
	inputs := []string{
		"<p>Name: Jane Doe</p><p>Amount: 25</p>",
		"<table><tr><td>Email</td><td>jane@example.org</td></tr></table>",
		"no markup at all",
		"<!-- comment -->text",
		"<p>Use &lt;b&gt;bold&lt;/b&gt; tags</p>",
		"<p>Email: Jane Doe &lt;jane@example.org&gt;</p>",
		"<p>1 &lt; 2 &amp;&amp; 3 &gt; 2</p>",
	}
	for _, in := range inputs {
		once := StripMarkup(in)
		assert.Equal(t, once, StripMarkup(once), in)
	}
}

func TestStripMarkupKeepsEscapedTagsAsText(t *testing.T) {
	assert.Equal(t, "Use &lt;b>bold&lt;/b> tags", StripMarkup("<p>Use &lt;b&gt;bold&lt;/b&gt; tags</p>"))
	assert.Equal(t, "1 < 2 && 3 > 2", StripMarkup("<p>1 &lt; 2 &amp;&amp; 3 &gt; 2</p>"))
}
