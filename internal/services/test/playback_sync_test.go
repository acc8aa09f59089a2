package services_test

import (
	"math"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/stretchr/testify/require"
)

func minutesOf(items []po.Takeaway) []int {
	out := make([]int, 0, len(items))
	for _, item := range items {
		out = append(out, item.Minute)
	}
	return out
}

func TestActiveTakeaways(t *testing.T) {
	t.Parallel()

	takeaways := []po.Takeaway{
		{Minute: 5, KeyPoint: "five"},
		{Minute: 2, KeyPoint: "two-a"},
		{Minute: 2, KeyPoint: "two-b"},
		{Minute: 9, KeyPoint: "nine"},
	}

	cases := []struct {
		name    string
		current float64
		want    []int
	}{
		{name: "首个要点之前", current: 30, want: []int{}},
		{name: "首个分钟未满 10 秒", current: 125, want: []int{}},
		{name: "首个分钟满 10 秒", current: 130, want: []int{2, 2}},
		{name: "沿用上一个分组", current: 200, want: []int{2, 2}},
		{name: "新分钟未满 10 秒沿用上一组", current: 305, want: []int{2, 2}},
		{name: "新分钟满 10 秒", current: 310, want: []int{5}},
		{name: "远超最后要点", current: 5000, want: []int{9}},
		{name: "负时间", current: -1, want: []int{}},
		{name: "NaN", current: math.NaN(), want: []int{}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := services.ActiveTakeaways(tc.current, takeaways)
			require.Equal(t, tc.want, minutesOf(got))
		})
	}
}

func TestActiveTakeaways_PureAndNonMutating(t *testing.T) {
	t.Parallel()

	takeaways := []po.Takeaway{{Minute: 3, KeyPoint: "c"}, {Minute: 1, KeyPoint: "a"}}
	first := services.ActiveTakeaways(200, takeaways)
	second := services.ActiveTakeaways(200, takeaways)
	require.Equal(t, first, second)
	require.Equal(t, 3, takeaways[0].Minute)
	require.Empty(t, services.ActiveTakeaways(10, nil))
}

func TestActiveTakeaways_GroupKeepsInputOrder(t *testing.T) {
	t.Parallel()

	takeaways := []po.Takeaway{{Minute: 1, KeyPoint: "x"}, {Minute: 1, KeyPoint: "y"}}
	got := services.ActiveTakeaways(75, takeaways)
	require.Len(t, got, 2)
	require.Equal(t, "x", got[0].KeyPoint)
	require.Equal(t, "y", got[1].KeyPoint)
}

func TestTriggerGate(t *testing.T) {
	t.Parallel()

	gate := services.NewTriggerGate(services.GateConfig{})
	require.False(t, gate.Ready(2*time.Second, 5*time.Second))
	require.False(t, gate.Ready(5*time.Second, 2*time.Second))
	require.True(t, gate.Ready(3*time.Second, 3*time.Second))

	require.Equal(t, time.Second, gate.PlaybackDelta(10, 11))
	require.Equal(t, time.Duration(0), gate.PlaybackDelta(11, 10))
	require.Equal(t, time.Duration(0), gate.PlaybackDelta(10, 10))
	require.Equal(t, time.Duration(0), gate.PlaybackDelta(10, 300), "拖动不计入")
	require.Equal(t, 2*time.Second, gate.PlaybackDelta(10, 12))
}
