package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
)

// MinuteGroup 是同一分钟内的字幕集合。
type MinuteGroup struct {
	Minute int
	Lines  []po.CaptionLine
}

// GroupCaptionsByMinute 按 floor(start/60) 分组，分组按分钟升序，组内保持原始顺序。
func GroupCaptionsByMinute(items []po.CaptionLine) []MinuteGroup {
	index := make(map[int]int)
	var groups []MinuteGroup
	for _, item := range items {
		minute := int(math.Floor(item.Start / 60))
		if minute < 0 {
			minute = 0
		}
		pos, ok := index[minute]
		if !ok {
			pos = len(groups)
			index[minute] = pos
			groups = append(groups, MinuteGroup{Minute: minute})
		}
		groups[pos].Lines = append(groups[pos].Lines, item)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Minute < groups[j].Minute })
	return groups
}

// FormatCueTimestamp 渲染 [mm:ss]，超过一小时渲染 [hh:mm:ss]。
func FormatCueTimestamp(start float64) string {
	total := int(math.Floor(start))
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// FormatTranscript 输出按分钟分组的转写文本，分组之间空一行。
func FormatTranscript(groups []MinuteGroup) string {
	blocks := make([]string, 0, len(groups))
	for _, g := range groups {
		cues := make([]string, 0, len(g.Lines))
		for _, line := range g.Lines {
			cues = append(cues, fmt.Sprintf("[%s] %s", FormatCueTimestamp(line.Start), line.Text))
		}
		blocks = append(blocks, fmt.Sprintf("Minute %d:\n%s", g.Minute, strings.Join(cues, " ")))
	}
	return strings.Join(blocks, "\n\n")
}

// SampleCaptions 取 size 条均匀分布的字幕文本，下标为 floor(i/size*count)。
// 字幕少于 size 条时会重复取样。
func SampleCaptions(items []po.CaptionLine, size int) []string {
	if len(items) == 0 || size <= 0 {
		return nil
	}
	out := make([]string, 0, size)
	for i := 0; i < size; i++ {
		idx := int(math.Floor(float64(i) / float64(size) * float64(len(items))))
		out = append(out, items[idx].Text)
	}
	return out
}

func writeVideoHeader(sb *strings.Builder, video po.VideoRecord, channel po.ChannelRecord) {
	fmt.Fprintf(sb, "Title: %s\n", video.Title)
	fmt.Fprintf(sb, "Channel: %s\n", channel.Name)
	fmt.Fprintf(sb, "Duration: %d minutes\n", video.DurationMinutes())
	fmt.Fprintf(sb, "Description: %s\n", video.Description)
}

// BuildRelevancePrompt 生成内容类型判定提示词。
func BuildRelevancePrompt(video po.VideoRecord, channel po.ChannelRecord, sample []string) string {
	var sb strings.Builder
	sb.WriteString("Determine if this YouTube video is a podcast, interview, essay, commentary, or long-form educational content.\n")
	sb.WriteString("Return only \"true\" or \"false\".\n\n")
	writeVideoHeader(&sb, video, channel)
	sb.WriteString("\nSample transcript:\n")
	sb.WriteString(strings.Join(sample, " "))
	return sb.String()
}

const takeawayInstructions = `
Writing style:
- Extract specific facts, examples, or key insights.
- Include concrete numbers, statistics, or real examples when available.
- Focus on memorable details someone would want to reference later.
- Skip sections without new information unless they add novel details or contradict earlier points.
- Bad: "The speaker discussed marketing strategies"
- Good: "Companies that post 3 times per week on LinkedIn see 200% more engagement than weekly posters"

For each takeaway:
- Focus only on substantive content; skip housekeeping, sponsor reads and outros.
- Place the takeaway at the minute where the point starts being discussed.
- Never repeat a takeaway.

Importance factors: how central the point is to the overall message, how actionable it is, how novel it is.
Interest factors: how surprising or counterintuitive it is, how memorable it is, how well it illustrates a complex idea.
Score both on a 1-100 scale as significanceScore and interestScore.

Density:
- At least one takeaway for every 2-3 minutes of content.
- Minimum of 5 takeaways for any video longer than 10 minutes.
- Maximum of 20 takeaways.
- Sort takeaways chronologically by minute.

Also include a short quiz of 3 to 5 multiple-choice questions about the video.
Every question has exactly 4 options and correctIndex is the 0-based index of the right option.

Return a JSON object shaped like:
{
  "title": "video title",
  "duration_minutes": 12,
  "takeaways": [
    {"minute": 6, "key_point": "Lawyers reject AI tools that are 99% accurate because one mistake could cost millions", "significanceScore": 80, "interestScore": 90}
  ],
  "quiz": {
    "description": "what the quiz covers",
    "questions": [
      {"question": "...", "options": ["a", "b", "c", "d"], "correctIndex": 0, "explanation": "..."}
    ]
  }
}
`

// BuildTakeawayPrompt 生成要点提取提示词。
func BuildTakeawayPrompt(details *po.VideoDetails) string {
	var sb strings.Builder
	sb.WriteString("Analyze this YouTube video and return a JSON response with specific, concrete takeaways and their timestamps.\n")
	sb.WriteString("Focus on memorable facts, specific examples, unique insights, or actionable advice.\n\n")
	writeVideoHeader(&sb, details.Video, details.Channel)
	sb.WriteString("\nTranscript by minute:\n")
	sb.WriteString(FormatTranscript(GroupCaptionsByMinute(details.Captions.Items)))
	sb.WriteString("\n")
	sb.WriteString(takeawayInstructions)
	return sb.String()
}

// takeawayResponseSchema 约束模型输出结构。
func takeawayResponseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":            map[string]any{"type": "string"},
			"duration_minutes": map[string]any{"type": "integer"},
			"takeaways": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"minute":            map[string]any{"type": "integer"},
						"key_point":         map[string]any{"type": "string"},
						"significanceScore": map[string]any{"type": "integer"},
						"interestScore":     map[string]any{"type": "integer"},
					},
					"required": []string{"minute", "key_point"},
				},
			},
			"quiz": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{"type": "string"},
					"questions": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"question":     map[string]any{"type": "string"},
								"options":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
								"correctIndex": map[string]any{"type": "integer"},
								"explanation":  map[string]any{"type": "string"},
							},
							"required": []string{"question", "options", "correctIndex"},
						},
					},
				},
			},
		},
		"required": []string{"title", "duration_minutes", "takeaways"},
	}
}
