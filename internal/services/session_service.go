package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/go-kratos/kratos/v2/log"
)

var (
	// ErrSessionNotFound 表示会话不存在或已关闭。
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidSessionID 表示会话 ID 为空。
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrAlreadySubmitted 表示该视频已在本会话中提交过生成。
	ErrAlreadySubmitted = errors.New("video already submitted in session")
)

// maxInFlightRejoins 限制等待其它会话在途执行后重新提交的次数。
const maxInFlightRejoins = 3

// VideoSession 是单个标签页会话的状态，随导航到新视频而重置。
type VideoSession struct {
	id       string
	openedAt time.Time
	lastSeen time.Time

	videoID   string
	cursor    vo.PlaybackCursor
	lastTime  float64
	hasLast   bool
	playback  time.Duration
	takeaways *po.TakeawaySet
	fromCache bool
	status    vo.ProcessingStatus
	lastError string
	submitted map[string]struct{}
}

// SessionSnapshot 是会话状态的只读副本。
type SessionSnapshot struct {
	SessionID string              `json:"sessionId"`
	VideoID   string              `json:"videoId,omitempty"`
	Status    vo.ProcessingStatus `json:"status"`
	Takeaways *po.TakeawaySet     `json:"takeaways,omitempty"`
	FromCache bool                `json:"fromCache"`
	Error     string              `json:"error,omitempty"`
	Cursor    vo.PlaybackCursor   `json:"cursor"`
}

// PlaybackOutcome 是一次播放上报的处理结果。
type PlaybackOutcome struct {
	Triggered bool                `json:"triggered"`
	Status    vo.ProcessingStatus `json:"status"`
	Cursor    vo.PlaybackCursor   `json:"cursor"`
	Active    vo.ActiveView       `json:"active"`
}

// SessionService 持有所有活跃会话，负责触发门槛、每视频一次的提交约束与过期响应丢弃。
type SessionService struct {
	runner      PipelineRunner
	gate        TriggerGate
	broadcaster *SessionBroadcaster
	log         *log.Helper
	now         func() time.Time
	idleTTL     time.Duration

	mu        sync.Mutex
	sessions  map[string]*VideoSession
	lastSweep time.Time
	wg        sync.WaitGroup
}

// NewSessionService 构造 SessionService。
func NewSessionService(runner PipelineRunner, broadcaster *SessionBroadcaster, cfg PipelineConfig, logger log.Logger) *SessionService {
	return newSessionService(runner, broadcaster, cfg, logger, time.Now)
}

// NewSessionServiceWithClock 允许注入时钟，便于测试门槛判定。
func NewSessionServiceWithClock(runner PipelineRunner, broadcaster *SessionBroadcaster, cfg PipelineConfig, logger log.Logger, now func() time.Time) *SessionService {
	return newSessionService(runner, broadcaster, cfg, logger, now)
}

func newSessionService(runner PipelineRunner, broadcaster *SessionBroadcaster, cfg PipelineConfig, logger log.Logger, now func() time.Time) *SessionService {
	if now == nil {
		now = time.Now
	}
	if broadcaster == nil {
		broadcaster = NewSessionBroadcaster(logger)
	}
	cfg = cfg.Normalize()
	return &SessionService{
		runner:      runner,
		gate:        NewTriggerGate(cfg.Gate),
		idleTTL:     cfg.SessionIdleTTL,
		broadcaster: broadcaster,
		log:         log.NewHelper(logger),
		now:         now,
		sessions:    make(map[string]*VideoSession),
		lastSweep:   now(),
	}
}

// Broadcaster 返回会话消息的扇出器。
func (s *SessionService) Broadcaster() *SessionBroadcaster {
	return s.broadcaster
}

// Navigate 切换会话的当前视频。切到不同视频时清空游标、已加载要点与提交记录。
func (s *SessionService) Navigate(ctx context.Context, sessionID, videoID string) (SessionSnapshot, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return SessionSnapshot{}, ErrInvalidSessionID
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return SessionSnapshot{}, ErrInvalidVideoID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessionLocked(sessionID)
	if sess.videoID != videoID {
		s.log.WithContext(ctx).Debugf("session navigated: session=%s from=%s to=%s", sessionID, sess.videoID, videoID)
		sess.reset(videoID)
	}
	return sess.snapshot(), nil
}

// RecordPlayback 累计播放时长并在门槛满足时触发一次后台生成。
// 返回当前时间点应展示的要点。
func (s *SessionService) RecordPlayback(ctx context.Context, sessionID, videoID string, currentTime float64) (PlaybackOutcome, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return PlaybackOutcome{}, ErrInvalidSessionID
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return PlaybackOutcome{}, ErrInvalidVideoID
	}
	if math.IsNaN(currentTime) || math.IsInf(currentTime, 0) || currentTime < 0 {
		currentTime = 0
	}

	s.mu.Lock()
	sess := s.sessionLocked(sessionID)
	if sess.videoID != videoID {
		sess.reset(videoID)
	}
	if sess.hasLast {
		sess.playback += s.gate.PlaybackDelta(sess.lastTime, currentTime)
	}
	sess.lastTime = currentTime
	sess.hasLast = true
	tabOpen := s.now().Sub(sess.openedAt)
	sess.cursor = vo.PlaybackCursor{
		CurrentTime:             currentTime,
		TabOpenTime:             tabOpen.Seconds(),
		AccumulatedPlaybackTime: sess.playback.Seconds(),
	}

	triggered := false
	if _, done := sess.submitted[videoID]; !done && s.gate.Ready(tabOpen, sess.playback) {
		sess.submitted[videoID] = struct{}{}
		triggered = true
	}
	outcome := PlaybackOutcome{
		Triggered: triggered,
		Status:    sess.status,
		Cursor:    sess.cursor,
		Active:    activeView(currentTime, sess.takeaways),
	}
	s.mu.Unlock()

	if triggered {
		s.log.WithContext(ctx).Infof("watch gate satisfied, submitting video: session=%s video=%s", sessionID, videoID)
		s.launch(ctx, NewVideoCommand{SessionID: sessionID, VideoID: videoID})
	}
	return outcome, nil
}

// RequestVideo 显式提交生成请求。force 为重试语义：绕过提交记录并强制重新生成。
func (s *SessionService) RequestVideo(ctx context.Context, sessionID, videoID string, force bool) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return ErrInvalidVideoID
	}

	s.mu.Lock()
	sess := s.sessionLocked(sessionID)
	if sess.videoID != videoID {
		sess.reset(videoID)
	}
	if _, done := sess.submitted[videoID]; done && !force {
		s.mu.Unlock()
		return ErrAlreadySubmitted
	}
	sess.submitted[videoID] = struct{}{}
	s.mu.Unlock()

	s.launch(ctx, NewVideoCommand{SessionID: sessionID, VideoID: videoID, ForceRegenerate: force})
	return nil
}

// Snapshot 返回会话当前状态。
func (s *SessionService) Snapshot(sessionID string) (SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return SessionSnapshot{}, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess.snapshot(), nil
}

// Close 丢弃会话；之后到达的流水线消息全部视为过期。
func (s *SessionService) Close(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// ExpireIdle 回收超过空闲时限且没有订阅者的会话，返回回收数量。
func (s *SessionService) ExpireIdle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expireIdleLocked(s.now())
}

func (s *SessionService) expireIdleLocked(now time.Time) int {
	s.lastSweep = now
	expired := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) < s.idleTTL || s.broadcaster.SubscriberCount(id) > 0 {
			continue
		}
		delete(s.sessions, id)
		expired++
	}
	if expired > 0 {
		s.log.Infof("expired idle sessions: count=%d remaining=%d", expired, len(s.sessions))
	}
	return expired
}

// Wait 等待所有后台流水线结束。
func (s *SessionService) Wait() {
	s.wg.Wait()
}

func (s *SessionService) launch(ctx context.Context, cmd NewVideoCommand) {
	runCtx := context.WithoutCancel(ctx)
	sink := &sessionSink{svc: s, sessionID: cmd.SessionID, videoID: cmd.VideoID}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, cmd, sink)
	}()
}

// run 执行流水线。同一视频正由其它会话处理时，等待那次执行结束后重新提交，
// 此时通常直接命中缓存；无法等待时撤销本会话的提交记录，允许之后重试。
func (s *SessionService) run(ctx context.Context, cmd NewVideoCommand, sink EventSink) {
	waiter, canWait := s.runner.(InFlightWaiter)
	for attempt := 0; ; attempt++ {
		_, err := s.runner.Process(ctx, cmd, sink)
		switch {
		case err == nil:
			return
		case !errors.Is(err, ErrVideoInFlight):
			s.log.WithContext(ctx).Errorw("msg", "session pipeline failed", "session_id", cmd.SessionID, "video_id", cmd.VideoID, "error", err)
			return
		}

		if !canWait || attempt >= maxInFlightRejoins {
			s.log.WithContext(ctx).Warnf("video still in flight, releasing submission: session=%s video=%s", cmd.SessionID, cmd.VideoID)
			s.releaseSubmission(cmd.SessionID, cmd.VideoID)
			return
		}
		s.log.WithContext(ctx).Infof("video in flight elsewhere, waiting: session=%s video=%s", cmd.SessionID, cmd.VideoID)
		if err := waiter.WaitIdle(ctx, cmd.VideoID); err != nil {
			s.releaseSubmission(cmd.SessionID, cmd.VideoID)
			return
		}
		if !s.watching(cmd.SessionID, cmd.VideoID) {
			return
		}
		// 刚结束的执行已写入缓存，不再强制重新生成。
		cmd.ForceRegenerate = false
	}
}

func (s *SessionService) watching(sessionID, videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	return ok && sess.videoID == videoID
}

func (s *SessionService) releaseSubmission(sessionID, videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok && sess.videoID == videoID {
		delete(sess.submitted, videoID)
	}
}

// apply 把流水线消息写入会话；会话已切到其它视频时丢弃。
func (s *SessionService) apply(ctx context.Context, sessionID, runVideoID string, evt vo.SessionEvent) bool {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.videoID != runVideoID || evt.VideoID != runVideoID {
		s.mu.Unlock()
		s.log.WithContext(ctx).Infof("discarding stale session event: session=%s video=%s type=%s", sessionID, runVideoID, evt.Type)
		return false
	}
	switch evt.Type {
	case vo.EventProcessingStatus:
		if !vo.CanTransition(sess.status, evt.Status) {
			s.mu.Unlock()
			s.log.WithContext(ctx).Warnf("rejecting status transition: session=%s from=%s to=%s", sessionID, sess.status, evt.Status)
			return false
		}
		sess.status = evt.Status
	case vo.EventVideoTakeaways:
		sess.takeaways = evt.Takeaways.Clone()
		sess.fromCache = evt.FromCache
		sess.status = vo.StatusIdle
		sess.lastError = ""
	case vo.EventProcessingError:
		sess.lastError = evt.Error
		if sess.status != vo.StatusNotRelevant && sess.status != vo.StatusError && vo.CanTransition(sess.status, vo.StatusError) {
			sess.status = vo.StatusError
		}
	}
	s.mu.Unlock()

	s.broadcaster.Publish(sessionID, evt)
	return true
}

func (s *SessionService) sessionLocked(sessionID string) *VideoSession {
	now := s.now()
	if now.Sub(s.lastSweep) >= s.idleTTL/4 {
		s.expireIdleLocked(now)
	}
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &VideoSession{
			id:        sessionID,
			openedAt:  now,
			status:    vo.StatusIdle,
			submitted: make(map[string]struct{}),
		}
		s.sessions[sessionID] = sess
	}
	sess.lastSeen = now
	return sess
}

func (v *VideoSession) reset(videoID string) {
	v.videoID = videoID
	v.cursor = vo.PlaybackCursor{}
	v.lastTime = 0
	v.hasLast = false
	v.playback = 0
	v.takeaways = nil
	v.fromCache = false
	v.status = vo.StatusIdle
	v.lastError = ""
	v.submitted = make(map[string]struct{})
}

func (v *VideoSession) snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID: v.id,
		VideoID:   v.videoID,
		Status:    v.status,
		Takeaways: v.takeaways.Clone(),
		FromCache: v.fromCache,
		Error:     v.lastError,
		Cursor:    v.cursor,
	}
}

func activeView(currentTime float64, set *po.TakeawaySet) vo.ActiveView {
	if set == nil {
		return vo.ActiveView{CurrentTime: currentTime, Items: []vo.ActiveTakeaway{}}
	}
	return vo.NewActiveView(currentTime, set.Takeaways, ActiveTakeaways(currentTime, set.Takeaways))
}

// sessionSink 把单次流水线的消息绑定到发起时的会话与视频。
type sessionSink struct {
	svc       *SessionService
	sessionID string
	videoID   string
}

func (k *sessionSink) Emit(ctx context.Context, evt vo.SessionEvent) error {
	k.svc.apply(ctx, k.sessionID, k.videoID, evt)
	return nil
}
