// Package po 定义面向持久化的数据对象（Persistent Objects），由 Repository 与 Service 层共享。
// 字幕、视频元数据与要点集合均以该包的结构体在各层之间传递；JSON 标签即缓存中的存储格式。
package po

import (
	"fmt"
	"time"
)

const (
	watchURLPrefix   = "https://www.youtube.com/watch?v="
	channelURLPrefix = "https://www.youtube.com/channel/"
)

// VideoRecord 描述一次抓取得到的视频元数据，抓取后不再修改。
type VideoRecord struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	LengthSeconds int    `json:"lengthSeconds"`
	ViewCount     int64  `json:"viewCount"`
	URL           string `json:"url"`
}

// DurationMinutes 返回向下取整的分钟数。
func (v VideoRecord) DurationMinutes() int {
	return v.LengthSeconds / 60
}

// ChannelRecord 描述视频所属频道。
type ChannelRecord struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	URL  string `json:"url"`
}

// VideoDetails 是字幕抽取阶段的完整产出。
type VideoDetails struct {
	Video     VideoRecord   `json:"video"`
	Channel   ChannelRecord `json:"channel"`
	Captions  CaptionSet    `json:"captions"`
	FetchedAt time.Time     `json:"fetchedAt"`
}

// WatchURL 拼接视频播放页地址。
func WatchURL(videoID string) string {
	return watchURLPrefix + videoID
}

// ChannelURL 拼接频道主页地址，channelID 为空时返回空串。
func ChannelURL(channelID string) string {
	if channelID == "" {
		return ""
	}
	return channelURLPrefix + channelID
}

// String 便于日志输出。
func (v VideoRecord) String() string {
	return fmt.Sprintf("%s(%q)", v.ID, v.Title)
}
