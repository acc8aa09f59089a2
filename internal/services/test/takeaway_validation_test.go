package services_test

import (
	"encoding/json"
	"testing"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/stretchr/testify/require"
)

func decodeFields(t *testing.T, raw string) map[string]json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &fields))
	return fields
}

func TestDecodeTakeawaySet_Valid(t *testing.T) {
	t.Parallel()

	set, err := services.DecodeTakeawaySet(decodeFields(t, `{
		"title": "Why Cities Grow",
		"duration_minutes": 12.0,
		"takeaways": [
			{"minute": 3.0, "key_point": "  Density lowers commute cost  ", "significanceScore": 80, "interestScore": 55},
			{"minute": 7, "key_point": "Zoning caps supply"}
		],
		"quiz": {"description": "basics", "questions": [
			{"question": "What caps supply?", "options": ["zoning", "rain", "tax", "cars"], "correctIndex": 0}
		]}
	}`))
	require.NoError(t, err)
	require.Equal(t, "Why Cities Grow", set.Title)
	require.Equal(t, 12, set.DurationMinutes)
	require.Len(t, set.Takeaways, 2)
	require.Equal(t, po.Takeaway{Minute: 3, KeyPoint: "  Density lowers commute cost  ", SignificanceScore: ptrInt(80), InterestScore: ptrInt(55)}, set.Takeaways[0])
	require.Nil(t, set.Takeaways[1].SignificanceScore)
	require.NotNil(t, set.Quiz)
	require.Len(t, set.Quiz.Questions, 1)
}

func TestDecodeTakeawaySet_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "缺少 takeaways", raw: `{"title": "x"}`, want: services.ErrMissingTakeaways},
		{name: "takeaways 为 null", raw: `{"takeaways": null}`, want: services.ErrMissingTakeaways},
		{name: "takeaways 非数组", raw: `{"takeaways": "a"}`, want: services.ErrInvalidTakeaway},
		{name: "分钟为负", raw: `{"takeaways": [{"minute": -1, "key_point": "a"}]}`, want: services.ErrInvalidTakeaway},
		{name: "分钟非整数", raw: `{"takeaways": [{"minute": 1.5, "key_point": "a"}]}`, want: services.ErrInvalidTakeaway},
		{name: "分钟为字符串", raw: `{"takeaways": [{"minute": "1", "key_point": "a"}]}`, want: services.ErrInvalidTakeaway},
		{name: "要点为空", raw: `{"takeaways": [{"minute": 1, "key_point": "   "}]}`, want: services.ErrInvalidTakeaway},
		{name: "评分越界", raw: `{"takeaways": [{"minute": 1, "key_point": "a", "interestScore": 101}]}`, want: services.ErrInvalidTakeaway},
		{name: "选项不足四个", raw: `{"takeaways": [], "quiz": {"questions": [{"question": "q", "options": ["a"], "correctIndex": 0}]}}`, want: services.ErrInvalidQuiz},
		{name: "正确选项越界", raw: `{"takeaways": [], "quiz": {"questions": [{"question": "q", "options": ["a","b","c","d"], "correctIndex": 4}]}}`, want: services.ErrInvalidQuiz},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := services.DecodeTakeawaySet(decodeFields(t, tc.raw))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecodeTakeawaySet_EmptyListIsValid(t *testing.T) {
	t.Parallel()

	set, err := services.DecodeTakeawaySet(decodeFields(t, `{"takeaways": []}`))
	require.NoError(t, err)
	require.Empty(t, set.Takeaways)
	require.Nil(t, set.Quiz)
}

func TestDecodeTakeawaySet_WhitespaceVariantsSurviveDedup(t *testing.T) {
	t.Parallel()

	set, err := services.DecodeTakeawaySet(decodeFields(t, `{
		"takeaways": [
			{"minute": 1, "key_point": "Rent follows wages"},
			{"minute": 2, "key_point": "Rent follows wages "},
			{"minute": 4, "key_point": "Rent follows wages"}
		]
	}`))
	require.NoError(t, err)

	deduped := services.DeduplicateTakeaways(set.Takeaways)
	require.Len(t, deduped, 2)
	require.Equal(t, 1, deduped[0].Minute)
	require.Equal(t, "Rent follows wages ", deduped[1].KeyPoint)
}

func TestDeduplicateTakeaways(t *testing.T) {
	t.Parallel()

	in := []po.Takeaway{
		{Minute: 1, KeyPoint: "a"},
		{Minute: 2, KeyPoint: "b"},
		{Minute: 5, KeyPoint: "a"},
		{Minute: 3, KeyPoint: "c"},
	}
	out := services.DeduplicateTakeaways(in)
	require.Equal(t, []po.Takeaway{{Minute: 1, KeyPoint: "a"}, {Minute: 2, KeyPoint: "b"}, {Minute: 3, KeyPoint: "c"}}, out)
	require.Len(t, in, 4)
}
