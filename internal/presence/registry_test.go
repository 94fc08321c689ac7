package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{in: "", want: ModeSet},
		{in: "set", want: ModeSet},
		{in: "refcount", want: ModeRefcount},
		{in: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_SetMode(t *testing.T) {
	r := NewRegistry(ModeSet)

	r.Add("alice")
	r.Add("alice")
	r.Add("bob")
	r.Add("")

	assert.Equal(t, []string{"alice", "bob"}, r.Snapshot())
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Remove("alice"))
	assert.False(t, r.Contains("alice"))
	assert.False(t, r.Remove("alice"), "second remove is a no-op")
	assert.Equal(t, []string{"bob"}, r.Snapshot())
}

func TestRegistry_RefcountMode(t *testing.T) {
	r := NewRegistry(ModeRefcount)

	r.Add("alice")
	r.Add("alice")

	assert.Equal(t, []string{"alice"}, r.Snapshot())

	assert.False(t, r.Remove("alice"))
	assert.True(t, r.Contains("alice"))

	assert.True(t, r.Remove("alice"))
	assert.False(t, r.Contains("alice"))
	assert.False(t, r.Remove("alice"))
}

func TestRegistry_EmptySnapshot(t *testing.T) {
	r := NewRegistry("")

	assert.Equal(t, ModeSet, r.Mode())
	assert.NotNil(t, r.Snapshot())
	assert.Empty(t, r.Snapshot())
}
