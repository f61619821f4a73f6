package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullProfile() *Profile {
	return &Profile{
		Name:      "Ada",
		Email:     "ada@example.com",
		Age:       36,
		Visits:    1 << 33,
		Active:    true,
		Rating:    4.5,
		Balance:   -12.75,
		Avatar:    []byte{0x89, 'P', 'N', 'G'},
		Aliases:   []string{"countess", "enchantress"},
		Tags:      map[string]struct{}{"math": {}, "engines": {}},
		Counters:  map[string]int64{"logins": 3, "posts": -1},
		Home:      Address{Street: "1 St James's Sq", City: "London", Country: "UK", Lat: 51.5, Lon: -0.13},
		Previous:  []Address{{City: "Marylebone"}, {}},
		CreatedAt: 1700000000123,
		Notes:     "analytical",
	}
}

func TestTestBean_Encoding(t *testing.T) {
	tests := []struct {
		name string
		rec  TestBean
		want []byte
	}{
		{"default", TestBean{}, []byte{0x00}},
		{"value1 only", TestBean{Value1: 5}, []byte{0x04, 0x05, 0x00}},
		{"value2 only", TestBean{Value2: 1}, []byte{0x08, 0x01, 0x00}},
		{"both", TestBean{Value1: 1, Value2: 2}, []byte{0x04, 0x01, 0x08, 0x02, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TestBeanLayout.Encode(&tt.rec))

			var got TestBean
			n, err := TestBeanLayout.Decode(tt.want, &got)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
			assert.Equal(t, tt.rec, got)
		})
	}
}

func TestProfile_RoundTrip(t *testing.T) {
	p := fullProfile()
	data := ProfileLayout.Encode(p)

	got := ProfileLayout.New()
	_, err := ProfileLayout.Decode(data, got)
	require.NoError(t, err)
	assert.True(t, ProfileLayout.Equal(p, got), "got %s", ProfileLayout.String(got))
	assert.Equal(t, data, ProfileLayout.Encode(got))
}

func TestProfile_NotesUsesExtendedOrdinal(t *testing.T) {
	data := ProfileLayout.Encode(&Profile{Notes: "n"})
	// 63<<2|1 then continuation 70-63.
	assert.Equal(t, []byte{0xfd, 0x07, 0x01, 'n', 0x00}, data)
}

func TestProfile_OldReaderSkipsNewFields(t *testing.T) {
	data := ProfileLayout.Encode(fullProfile())

	// A TestBean reader knows nothing of strings at ordinals 1 and 2 and
	// must still consume the whole body.
	var tb TestBean
	n, err := TestBeanLayout.Decode(data, &tb)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, TestBean{}, tb)
}

func TestProfileDoc_Conversion(t *testing.T) {
	p := fullProfile()
	doc := NewProfileDoc(p)

	assert.Equal(t, []string{"engines", "math"}, doc.Tags)
	require.NotNil(t, doc.Home)
	assert.Equal(t, "London", doc.Home.City)
	require.NotNil(t, doc.CreatedAt)
	assert.Equal(t, time.UnixMilli(1700000000123).UTC(), *doc.CreatedAt)

	back := doc.Profile()
	assert.True(t, ProfileLayout.Equal(p, back), "got %s", ProfileLayout.String(back))

	empty := NewProfileDoc(ProfileLayout.New())
	assert.Nil(t, empty.Home)
	assert.Nil(t, empty.CreatedAt)
	assert.Nil(t, empty.Tags)
}
