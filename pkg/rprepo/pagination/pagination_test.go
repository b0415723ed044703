package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrrprepo/rprepo/pkg/rprepo/api"
)

func TestParseParamsDefaults(t *testing.T) {
	p, err := ParseParams("", "")
	require.NoError(t, err)
	assert.Equal(t, Params{Start: 0, Limit: MaxLimit}, p)
}

func TestParseParamsClampsLimit(t *testing.T) {
	p, err := ParseParams("20", "5000")
	require.NoError(t, err)
	assert.Equal(t, 20, p.Start)
	assert.Equal(t, MaxLimit, p.Limit)
}

func TestParseParamsRejectsInvalid(t *testing.T) {
	cases := []struct{ start, limit string }{
		{"-1", ""},
		{"abc", ""},
		{"", "0"},
		{"", "-5"},
		{"", "ten"},
		{"1.5", "10"},
	}
	for _, tc := range cases {
		_, err := ParseParams(tc.start, tc.limit)
		assert.True(t, api.IsName(err, api.NameValidation), "start=%q limit=%q", tc.start, tc.limit)
	}
}

func TestFromSlice(t *testing.T) {
	all := []int{1, 2, 3, 4, 5}

	page := FromSlice(all, Params{Start: 0, Limit: 2})
	assert.Equal(t, []int{1, 2}, page.Data)
	assert.True(t, page.HasNext)
	assert.Equal(t, 2, page.NextCursor)

	page = FromSlice(all, Params{Start: 3, Limit: 2})
	assert.Equal(t, []int{4, 5}, page.Data)
	assert.False(t, page.HasNext)
	assert.Equal(t, 5, page.NextCursor)

	page = FromSlice(all, Params{Start: 10, Limit: 2})
	assert.Empty(t, page.Data)
	assert.NotNil(t, page.Data)
	assert.False(t, page.HasNext)
	assert.Equal(t, 12, page.NextCursor)
}

func TestFromSliceExactFit(t *testing.T) {
	page := FromSlice([]string{"a", "b", "c"}, Params{Start: 0, Limit: 3})
	assert.Len(t, page.Data, 3)
	assert.False(t, page.HasNext)
}
