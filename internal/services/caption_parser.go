package services

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
)

var (
	// ErrPlayerResponseNotFound 表示页面中没有可解析的 ytInitialPlayerResponse。
	ErrPlayerResponseNotFound = errors.New("caption parser: player response not found")
	// ErrInvalidVideoID 表示无法从输入中解析出视频 ID。
	ErrInvalidVideoID = errors.New("caption parser: invalid video id")
)

var (
	playerResponsePattern = regexp.MustCompile(`var\s+ytInitialPlayerResponse\s*=\s*`)
	xmlHeaderPattern      = regexp.MustCompile(`<\?xml[^>]*\?>`)
	transcriptTagPattern  = regexp.MustCompile(`</?transcript>`)
	cueStartPattern       = regexp.MustCompile(`start="([\d.]+)"`)
	cueDurationPattern    = regexp.MustCompile(`dur="([\d.]+)"`)
	cueOpenTagPattern     = regexp.MustCompile(`<text[^>]*>`)
	videoIDPattern        = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)
	bareVideoIDPattern    = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
)

// 实体解码顺序固定：先处理双重转义的引号，最后还原 &amp;。
var cueEntityReplacer = strings.NewReplacer(
	"&amp;#39;", "'",
	"&amp;quot;", `"`,
)

// CaptionTrack 是字幕轨的描述信息。
type CaptionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
}

type playerResponse struct {
	VideoDetails *struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		ShortDescription string `json:"shortDescription"`
		LengthSeconds    string `json:"lengthSeconds"`
		ViewCount        string `json:"viewCount"`
		Author           string `json:"author"`
		ChannelID        string `json:"channelId"`
	} `json:"videoDetails"`
	Captions *struct {
		Renderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
}

// ParseWatchPage 从播放页 HTML 中解析视频元数据与首选字幕轨。
// 返回的 CaptionTrack 为 nil 表示视频没有字幕；此时 VideoDetails.Captions 为不可用状态。
func ParseWatchPage(page, videoID string) (*po.VideoDetails, *CaptionTrack, error) {
	loc := playerResponsePattern.FindStringIndex(page)
	if loc == nil {
		return nil, nil, ErrPlayerResponseNotFound
	}
	var resp playerResponse
	// 只解码紧随赋值语句的第一个 JSON 值，忽略其后的脚本内容。
	if err := json.NewDecoder(strings.NewReader(page[loc[1]:])).Decode(&resp); err != nil {
		return nil, nil, errors.Join(ErrPlayerResponseNotFound, err)
	}
	if resp.VideoDetails == nil {
		return nil, nil, ErrPlayerResponseNotFound
	}

	vd := resp.VideoDetails
	id := firstNonEmpty(videoID, vd.VideoID)
	details := &po.VideoDetails{
		Video: po.VideoRecord{
			ID:            id,
			Title:         vd.Title,
			Description:   vd.ShortDescription,
			LengthSeconds: int(parseIntLenient(vd.LengthSeconds)),
			ViewCount:     parseIntLenient(vd.ViewCount),
			URL:           po.WatchURL(id),
		},
		Channel: po.ChannelRecord{
			Name: vd.Author,
			ID:   vd.ChannelID,
			URL:  po.ChannelURL(vd.ChannelID),
		},
		Captions:  po.UnavailableCaptions(),
		FetchedAt: time.Now().UTC(),
	}

	if resp.Captions == nil || len(resp.Captions.Renderer.CaptionTracks) == 0 {
		return details, nil, nil
	}
	// 只取第一条字幕轨，不做语言偏好选择。
	track := resp.Captions.Renderer.CaptionTracks[0]
	if track.BaseURL == "" {
		return details, nil, nil
	}
	return details, &track, nil
}

// ParseCaptionCues 解析 timedtext XML 为字幕条目。缺失或非法的时间字段按 0 处理，不会 panic。
func ParseCaptionCues(raw string) []po.CaptionLine {
	body := xmlHeaderPattern.ReplaceAllString(raw, "")
	body = transcriptTagPattern.ReplaceAllString(body, "")

	segments := strings.Split(body, "</text>")
	lines := make([]po.CaptionLine, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			continue
		}
		lines = append(lines, po.CaptionLine{
			Start:    captureFloat(cueStartPattern, seg),
			Duration: captureFloat(cueDurationPattern, seg),
			Text:     decodeCueText(cueOpenTagPattern.ReplaceAllString(seg, "")),
		})
	}
	return lines
}

func decodeCueText(text string) string {
	text = cueEntityReplacer.Replace(text)
	text = strings.ReplaceAll(text, "&amp;", "&")
	return strings.TrimSpace(text)
}

func captureFloat(pattern *regexp.Regexp, s string) float64 {
	m := pattern.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntLenient(raw string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ExtractVideoID 从 watch 链接、短链或裸 ID 中提取 11 位视频 ID。
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if bareVideoIDPattern.MatchString(input) {
		return input, nil
	}
	if m := videoIDPattern.FindStringSubmatch(input); len(m) == 2 {
		return m[1], nil
	}
	return "", ErrInvalidVideoID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
