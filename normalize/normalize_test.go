package normalize_test

import (
	"math/rand"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metropet.dev/trtc/normalize"
)

func TestNormalize(t *testing.T) {
	for _, tc := range []struct {
		in  string
		out string
	}{
		{"", ""},
		{"   ", ""},
		{"台北車站", "台北車"},
		{"臺北車站", "台北車"},
		{"  臺大醫院站 ", "台大醫院"},
		{"台北101/世貿", "台北101/世貿"},
		{"大安(信義路)", "大安"},
		{"大安（信義路）站", "大安"},
		{"(BL)西門", "西門"},
		{"Taipei Main Station", "taipei main"},
		{"ＴＡＩＰＥＩ　Ｍａｉｎ", "taipei main"},
		{"NorthStation", "north"},
		{"站前站", "站前"},
		{"中山站站", "中山"},
		{"西門 (Ximen)", "西門"},
		{"unclosed (paren", "unclosed (paren"},
	} {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.out, normalize.Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{
		"",
		"台北車站",
		"臺北車站站",
		"Taipei Main Station Station",
		"((a)b)站",
		"(a(b)c)",
		"x (y) 站 站",
		"  ＢＬ１２ ",
		"Ximen(西門)（出口）",
		"站",
		"station",
		"T（台t）\u0307n站tİ①",
		"e(x)\u0301",
	} {
		once := normalize.Normalize(s)
		assert.Equal(t, once, normalize.Normalize(once), "input %q", s)
	}
}

func TestNormalizeIdempotentRandom(t *testing.T) {
	// Runes that interact: annotations, suffixes, width and case
	// folding, combining marks and substituted characters.
	alphabet := []rune("aAtTeEnNsS iİ站臺台北車()（）\u0307\u0301\u0308①ＢＬ１　station")
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 50000; i++ {
		runes := make([]rune, rng.Intn(16))
		for j := range runes {
			runes[j] = alphabet[rng.Intn(len(alphabet))]
		}
		s := string(runes)

		once := normalize.Normalize(s)
		require.Equal(t, once, normalize.Normalize(once), "input %q", s)
	}

	n := normalize.New(nil, nil)
	require.NoError(t, quick.Check(func(s string) bool {
		once := n.Normalize(s)
		return once == n.Normalize(once)
	}, &quick.Config{MaxCount: 20000}))
}

func TestNormalizerCustomTables(t *testing.T) {
	n := normalize.New(map[string]string{"Ave": "Avenue"}, []string{"Stop"})

	assert.Equal(t, "5th avenue", n.Normalize("5th Ave Stop"))
	assert.Equal(t, "臺北", n.Normalize("臺北"))

	// Empty tables disable substitution and suffix removal
	n = normalize.New(map[string]string{}, []string{})
	assert.Equal(t, "臺北車站", n.Normalize("臺北車站 (R10)"))
}

func TestNormalizerSubstitute(t *testing.T) {
	n := normalize.New(nil, nil)

	assert.Equal(t, "台北車站", n.Substitute("臺北車站"))
	assert.Equal(t, "Taipei Main Station (R10)", n.Substitute("Taipei Main Station (R10)"))
	assert.Equal(t, "", n.Substitute(""))

	var zero normalize.Normalizer
	assert.Equal(t, "臺大", zero.Substitute("臺大"))
}

func TestNormalizerFingerprint(t *testing.T) {
	a := normalize.New(nil, nil)
	assert.Len(t, a.Fingerprint(), 8)
	assert.Equal(t, a.Fingerprint(), normalize.New(nil, []string{"站", "Station"}).Fingerprint())

	assert.NotEqual(t, a.Fingerprint(), normalize.New(map[string]string{}, nil).Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), normalize.New(nil, []string{}).Fingerprint())
	assert.NotEqual(t,
		normalize.New(map[string]string{"a": "bc"}, []string{}).Fingerprint(),
		normalize.New(map[string]string{"ab": "c"}, []string{}).Fingerprint(),
	)
}
