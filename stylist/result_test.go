package stylist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, NormalizeJSON("{\n  \"a\": 1\n}"))
	assert.Equal(t, `{"a":1}`, NormalizeJSON("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, "not json at all", NormalizeJSON("not json at all"))
}

func TestParseAnalysisAndOutfits(t *testing.T) {
	a, ok := ParseAnalysis(`{"body_analysis":{"body_type":"pear"},"color_analysis":{"best_colors":["rust","olive","cream","navy"]}}`)
	require.True(t, ok)
	assert.Equal(t, "pear", a.BodyAnalysis.BodyType)
	assert.Len(t, a.ColorAnalysis.BestColors, 4)

	_, ok = ParseAnalysis("sorry")
	assert.False(t, ok)

	outfits := ParseOutfits(`{"outfit_recommendations":[{"name":"Office Ease","items":{"top":{"item":"silk blouse","color":"ivory"}}},{}]}`)
	require.Len(t, outfits, 2)
	assert.Equal(t, "Office Ease", outfits[0].Name("Outfit 1"))
	assert.Equal(t, "Outfit 2", outfits[1].Name("Outfit 2"))

	item, color := outfits[0].Item("top")
	assert.Equal(t, "silk blouse", item)
	assert.Equal(t, "ivory", color)

	item, color = outfits[1].Item("shoes")
	assert.Empty(t, item)
	assert.Empty(t, color)

	assert.Nil(t, ParseOutfits("{broken"))
}

func TestDecodeDataURL(t *testing.T) {
	p, err := DecodeDataURL("data:image/png;base64,iVBORw0KGgo=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MIMEType)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, p.Data)

	p, err = DecodeDataURL("/9j/4AAQ")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", p.MIMEType)

	for _, bad := range []string{"data:image/png,raw", "data:text/plain;base64,aGk=", "data:image/png;base64,***", "data:nocomma"} {
		_, err := DecodeDataURL(bad)
		assert.ErrorIs(t, err, ErrPhotoFetch, bad)
	}
}
