package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/campus-cli/internal/fault"
)

func TestLookupURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		inst string
		want string
	}{
		{
			name: "spaces as %20",
			base: "https://nces.ed.gov/collegenavigator/",
			inst: "Reed College",
			want: "https://nces.ed.gov/collegenavigator/?q=Reed%20College",
		},
		{
			name: "reserved characters escaped",
			base: "https://nces.ed.gov/collegenavigator/",
			inst: "Texas A&M University-College Station",
			want: "https://nces.ed.gov/collegenavigator/?q=Texas%20A%26M%20University-College%20Station",
		},
		{
			name: "base with query",
			base: "http://localhost:8080/search?s=all",
			inst: "St. John's",
			want: "http://localhost:8080/search?s=all&q=St.%20John%27s",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupURL(tt.base, tt.inst))
		})
	}
}

func TestMatchingAnchors(t *testing.T) {
	texts := []string{"Home", "Tuition, Fees, and Estimated Student Expenses", "Admissions", "Tuition payment FAQ", "Net Price"}
	match := func(s string) bool {
		l := strings.ToLower(s)
		return strings.Contains(l, "tuition") && (strings.Contains(l, "fee") || strings.Contains(l, "estimate"))
	}
	assert.Equal(t, []int{1}, MatchingAnchors(texts, match))
	assert.Nil(t, MatchingAnchors(texts, nil))
	assert.Empty(t, MatchingAnchors(nil, match))
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `"Tuition"`, xpathLiteral("Tuition"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "x", '"', "")`, xpathLiteral(`it's "x"`))
}

func TestLinkXPath(t *testing.T) {
	assert.Equal(t, `//a[contains(normalize-space(.), "Programs/Majors")]`, linkXPath("Programs/Majors"))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, "https://nces.ed.gov/collegenavigator/", o.BaseURL)
	assert.Equal(t, "No matching institutions found", o.NotFoundMarker)
	assert.Equal(t, ".resultsTable a", o.ResultSelector)
	assert.Equal(t, 1920, o.WindowWidth)
	assert.Equal(t, 1080, o.WindowHeight)
	assert.Equal(t, 10*time.Second, o.ResultTimeout)
	assert.Equal(t, 5*time.Second, o.TabTimeout)

	o = Options{ResultTimeout: time.Second, BaseURL: "http://x/"}.withDefaults()
	assert.Equal(t, time.Second, o.ResultTimeout)
	assert.Equal(t, "http://x/", o.BaseURL)
}

func TestChromeLauncher_MissingExecutable(t *testing.T) {
	l := NewChromeLauncher(Options{
		Headless:        true,
		ExecPath:        "/nonexistent/chrome-binary",
		NavigateTimeout: 2 * time.Second,
	})
	s, err := l.Launch(context.Background())
	assert.Nil(t, s)
	assert.Error(t, err)
	assert.True(t, fault.Is(err, fault.Navigation))
}
