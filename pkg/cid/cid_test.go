package cid

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCidOrdering(t *testing.T) {
	serverA := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	serverB := uuid.MustParse("00000000-0000-0000-0000-0000000000bb")

	tests := []struct {
		name string
		a, b Cid
		want int
	}{
		{
			name: "timestamp dominates",
			a:    New(1*time.Second, serverB),
			b:    New(2*time.Second, serverA),
			want: -1,
		},
		{
			name: "server uuid breaks ties",
			a:    New(1*time.Second, serverA),
			b:    New(1*time.Second, serverB),
			want: -1,
		},
		{
			name: "equal",
			a:    New(1*time.Second, serverA),
			b:    New(1*time.Second, serverA),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestCidDisplayOrderMatchesCidOrder(t *testing.T) {
	server := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")

	cids := []Cid{
		New(5*time.Second, server),
		New(1*time.Nanosecond, server),
		New(3*time.Hour, server),
		New(2*time.Second+7*time.Nanosecond, server),
	}

	byCid := append([]Cid{}, cids...)
	sort.Slice(byCid, func(i, j int) bool { return byCid[i].Less(byCid[j]) })

	byDisplay := append([]Cid{}, cids...)
	sort.Slice(byDisplay, func(i, j int) bool { return byDisplay[i].String() < byDisplay[j].String() })

	assert.Equal(t, byCid, byDisplay)
}

func TestCidDisplayForm(t *testing.T) {
	server := uuid.MustParse("cc8e95b4-c24f-4d68-ba54-8bed76f63930")
	c := New(1*time.Second, server)
	assert.Equal(t, "00000000000000000000001000000000-cc8e95b4-c24f-4d68-ba54-8bed76f63930", c.String())
}

func TestCidJSONRoundTrip(t *testing.T) {
	server := uuid.MustParse("cc8e95b4-c24f-4d68-ba54-8bed76f63930")
	c := New(90*time.Second+12345*time.Nanosecond, server)

	data, err := json.Marshal(c)
	require.NoError(t, err)

	// The wire form is a stable contract: t carries secs and nanos, s the
	// server uuid.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "t")
	assert.Contains(t, raw, "s")

	var back Cid
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, c, back)
}

func TestGeneratorMonotonic(t *testing.T) {
	server := uuid.New()
	g := NewGenerator(server)

	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		require.True(t, prev.Less(next), "cid %s should precede %s", prev, next)
		prev = next
	}
}

func TestGeneratorClockRegression(t *testing.T) {
	server := uuid.New()

	now := 100 * time.Second
	g := NewGeneratorWithClock(server, func() time.Duration { return now })

	first := g.Next()
	assert.Equal(t, 100*time.Second, first.Ts)

	// Wall clock regresses; the generator must still move forward.
	now = 50 * time.Second
	second := g.Next()
	assert.True(t, first.Less(second))
	assert.Equal(t, 100*time.Second+time.Nanosecond, second.Ts)

	// Clock recovers past the guard; real time resumes.
	now = 200 * time.Second
	third := g.Next()
	assert.Equal(t, 200*time.Second, third.Ts)
}
