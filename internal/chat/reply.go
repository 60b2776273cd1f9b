package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/carecompanion/internal/observe"
	"github.com/MrWong99/carecompanion/internal/persona"
	"github.com/MrWong99/carecompanion/internal/store"
	"github.com/MrWong99/carecompanion/pkg/audio"
	"github.com/MrWong99/carecompanion/pkg/cue"
	"github.com/MrWong99/carecompanion/pkg/provider/llm"
	"github.com/MrWong99/carecompanion/pkg/provider/tts"
	"github.com/MrWong99/carecompanion/pkg/types"
)

// textBuffer is how many sentences may queue for the TTS provider before the
// LLM stream is throttled.
const textBuffer = 32

// Request is one user turn.
type Request struct {
	UserID    string
	SessionID string
	Text      string
}

// Reply is the assistant's answer to a [Request], persisted and ready to
// render.
type Reply struct {
	// Message is the stored assistant message. Message.AudioURL is set when
	// the reply was spoken.
	Message store.Message

	// Audio is nil when the reply could not be spoken.
	Audio *audio.Clip

	cue.Cues
}

// Reply runs one conversation turn.
func (s *Service) Reply(ctx context.Context, req Request) (*Reply, error) {
	start := time.Now()
	set := s.Settings()
	if set.ReplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, set.ReplyTimeout)
		defer cancel()
	}

	text := strings.TrimSpace(req.Text)
	if req.UserID == "" || req.SessionID == "" || text == "" {
		return nil, fmt.Errorf("%w: userId, sessionId and message are required", ErrInvalidInput)
	}

	ctx = observe.WithConversation(ctx, req.UserID, req.SessionID)
	ctx, span := observe.StartSpan(ctx, "chat.Reply")
	defer span.End()
	log := observe.Logger(ctx)

	user, history, err := s.loadTurn(ctx, req, set.historyLimit())
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{SessionID: req.SessionID, UserID: req.UserID, Role: store.RoleUser, Content: text}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("chat: save user message: %w", err)
	}

	completion := llm.CompletionRequest{
		SystemPrompt: persona.SystemPrompt(user.Profile),
		Messages:     append(toLLM(history), types.Message{Role: types.RoleUser, Content: text}),
		Temperature:  set.Temperature,
		MaxTokens:    set.MaxTokens,
	}
	voice := types.VoiceProfile{ID: set.VoiceFor(user.Modulation), Provider: s.ttsName}

	content, clip, err := s.generate(ctx, completion, voice)
	if err != nil {
		return nil, err
	}

	var duration float64
	if clip != nil {
		duration = clip.Seconds()
	}
	cues := s.deriver.Derive(content, duration)

	reply := &Reply{
		Message: store.Message{SessionID: req.SessionID, UserID: req.UserID, Role: store.RoleAssistant, Content: content},
		Audio:   clip,
		Cues:    cues,
	}
	if clip != nil {
		reply.Message.AudioURL = clip.DataURL()
	}
	if err := s.store.AddMessage(ctx, &reply.Message); err != nil {
		return nil, fmt.Errorf("chat: save reply: %w", err)
	}
	if err := s.store.TouchSession(ctx, req.SessionID); err != nil {
		return nil, fmt.Errorf("chat: touch session: %w", err)
	}

	s.metrics.RecordReply(ctx, string(cues.FacialExpression), string(cues.Animation), len(cues.Lipsync.MouthCues))
	s.metrics.ReplyDuration.Record(ctx, time.Since(start).Seconds())
	log.Debug("reply sent",
		"chars", len(content),
		"spoken", clip != nil,
		"duration", cues.Duration,
		"expression", cues.FacialExpression,
		"animation", cues.Animation,
	)
	return reply, nil
}

// loadTurn fetches the user, verifies the session and loads recent history
// concurrently.
func (s *Service) loadTurn(ctx context.Context, req Request, limit int) (*store.User, []store.Message, error) {
	var (
		user    *store.User
		sess    *store.Session
		history []store.Message
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		u, err := s.store.GetUser(egCtx, req.UserID)
		if err != nil {
			return notFound(err, ErrUserNotFound, "load user")
		}
		user = u
		return nil
	})
	eg.Go(func() error {
		ss, err := s.store.GetSession(egCtx, req.SessionID)
		if err != nil {
			return notFound(err, ErrSessionNotFound, "load session")
		}
		sess = ss
		return nil
	})
	eg.Go(func() error {
		h, err := s.store.RecentMessages(egCtx, req.SessionID, limit)
		if err != nil {
			return fmt.Errorf("chat: load history: %w", err)
		}
		history = h
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	if sess.UserID != req.UserID {
		return nil, nil, fmt.Errorf("%w: session %q belongs to another user", ErrSessionNotFound, req.SessionID)
	}
	return user, history, nil
}

// generate streams the completion and, when a voice is available, forwards
// each finished sentence to the TTS provider while the model is still
// writing. It returns the full reply text and the spoken clip, which is nil
// whenever speech failed.
func (s *Service) generate(ctx context.Context, req llm.CompletionRequest, voice types.VoiceProfile) (string, *audio.Clip, error) {
	llmStart := time.Now()
	chunks, err := s.llm.StreamCompletion(ctx, req)
	if err != nil {
		s.recordLLM(ctx, llmStart, err)
		return "", nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	ttsCtx, cancelTTS := context.WithCancel(ctx)
	defer cancelTTS()
	sp := s.startSpeech(ttsCtx, voice)

	content, err := forwardSentences(ctx, chunks, sp)
	s.recordLLM(ctx, llmStart, err)
	if err != nil {
		cancelTTS()
		sp.abort()
		return "", nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	return content, sp.finish(ctx), nil
}

func (s *Service) recordLLM(ctx context.Context, start time.Time, err error) {
	s.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
		s.metrics.RecordProviderError(ctx, s.llmName, "llm")
		observe.Logger(ctx).Error("llm completion failed", "provider", s.llmName, "err", err)
	}
	s.metrics.RecordProviderRequest(ctx, s.llmName, "llm", status)
}

// speech is one in-flight synthesis. A nil *speech is valid and speaks
// nothing.
type speech struct {
	svc    *Service
	start  time.Time
	format audio.Format
	text   chan string
	done   chan struct{} // closed once the audio stream ends
	raw    []byte
	err    error // terminal stream error, valid once done is closed
	broken bool  // the provider stopped before receiving all text
}

func (s *Service) startSpeech(ctx context.Context, voice types.VoiceProfile) *speech {
	if s.tts == nil || voice.ID == "" {
		return nil
	}
	sp := &speech{
		svc:    s,
		start:  time.Now(),
		format: s.tts.OutputFormat(),
		text:   make(chan string, textBuffer),
		done:   make(chan struct{}),
	}
	stream, err := s.tts.SynthesizeStream(ctx, sp.text, voice)
	if err != nil {
		s.speechFailed(ctx, err)
		return nil
	}
	go func() {
		defer close(sp.done)
		for chunk := range stream.Audio() {
			sp.raw = append(sp.raw, chunk...)
		}
		sp.err = stream.Err()
	}()
	return sp
}

// say queues one sentence. It reports false if ctx ended.
func (sp *speech) say(ctx context.Context, sentence string) bool {
	if sp == nil || sp.broken || strings.TrimSpace(sentence) == "" {
		return true
	}
	select {
	case sp.text <- sentence:
		return true
	case <-sp.done:
		sp.broken = true
		return true
	case <-ctx.Done():
		return false
	}
}

func (sp *speech) abort() {
	if sp == nil {
		return
	}
	close(sp.text)
	<-sp.done
}

// finish closes the text stream, waits for the audio and turns it into a
// clip. Failures are logged and counted, never returned.
func (sp *speech) finish(ctx context.Context) *audio.Clip {
	if sp == nil {
		return nil
	}
	close(sp.text)
	select {
	case <-sp.done:
	case <-ctx.Done():
		// The provider runs on a child of ctx, so the collector ends too.
		<-sp.done
		sp.svc.speechFailed(ctx, ctx.Err())
		return nil
	}
	sp.svc.metrics.TTSDuration.Record(ctx, time.Since(sp.start).Seconds())

	if sp.err != nil {
		sp.svc.speechFailed(ctx, sp.err)
		return nil
	}
	if sp.broken {
		sp.svc.speechFailed(ctx, errors.New("speech stream ended before the reply was spoken"))
		return nil
	}
	clip, err := audio.NewClip(sp.format, sp.raw)
	if err != nil {
		sp.svc.speechFailed(ctx, err)
		return nil
	}
	sp.svc.metrics.RecordProviderRequest(ctx, sp.svc.ttsName, "tts", "ok")
	return &clip
}

func (s *Service) speechFailed(ctx context.Context, err error) {
	s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "error")
	s.metrics.RecordProviderError(ctx, s.ttsName, "tts")
	observe.Logger(ctx).Warn("speech synthesis failed, replying without audio", "provider", s.ttsName, "err", err)
}

// forwardSentences drains ch into the full reply text and hands every
// complete sentence to sp as soon as it is available. Whatever follows the
// last boundary is flushed when the stream ends.
func forwardSentences(ctx context.Context, ch <-chan llm.Chunk, sp *speech) (string, error) {
	var full, pending strings.Builder
	for {
		select {
		case <-ctx.Done():
			go drainChunks(ch)
			return "", ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				if !sp.say(ctx, pending.String()) {
					return "", ctx.Err()
				}
				return full.String(), nil
			}
			if chunk.FinishReason == llm.FinishReasonError {
				go drainChunks(ch)
				return "", errors.New("llm stream: " + chunk.Text)
			}

			full.WriteString(chunk.Text)
			pending.WriteString(chunk.Text)
			for {
				buf := pending.String()
				idx := firstSentenceBoundary(buf)
				if idx < 0 {
					break
				}
				pending.Reset()
				pending.WriteString(strings.TrimLeft(buf[idx+1:], " \t\n\r"))
				if !sp.say(ctx, buf[:idx+1]) {
					go drainChunks(ch)
					return "", ctx.Err()
				}
			}
		}
	}
}

// firstSentenceBoundary returns the index of the first '.', '!' or '?' that
// is immediately followed by whitespace, or -1.
func firstSentenceBoundary(s string) int {
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			switch s[i+1] {
			case ' ', '\n', '\r', '\t':
				return i
			}
		}
	}
	return -1
}

// drainChunks discards what is left of ch so the provider goroutine can exit.
func drainChunks(ch <-chan llm.Chunk) {
	for range ch {
	}
}

func toLLM(history []store.Message) []types.Message {
	out := make([]types.Message, 0, len(history)+1)
	for _, m := range history {
		role := types.RoleUser
		if m.Role == store.RoleAssistant {
			role = types.RoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: m.Content})
	}
	return out
}

// Voice speaks text in the voice mapped to modulation and returns the clip as
// a data URL. It returns "" without error when speech is unavailable.
func (s *Service) Voice(ctx context.Context, text string, modulation persona.Modulation) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	set := s.Settings()
	voiceID := set.VoiceFor(modulation)
	if s.tts == nil || voiceID == "" {
		return "", nil
	}

	start := time.Now()
	clip, err := tts.Synthesize(ctx, s.tts, text, types.VoiceProfile{ID: voiceID, Provider: s.ttsName})
	s.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.speechFailed(ctx, err)
		return "", nil
	}
	s.metrics.RecordProviderRequest(ctx, s.ttsName, "tts", "ok")
	return clip.DataURL(), nil
}

// Voices lists the TTS provider's voices.
func (s *Service) Voices(ctx context.Context) ([]types.VoiceProfile, error) {
	if s.tts == nil {
		return nil, ErrVoiceUnavailable
	}
	voices, err := s.tts.ListVoices(ctx)
	if err != nil {
		s.metrics.RecordProviderError(ctx, s.ttsName, "tts")
		return nil, fmt.Errorf("chat: list voices: %w", err)
	}
	if voices == nil {
		voices = []types.VoiceProfile{}
	}
	return voices, nil
}

// CloneVoice trains a new voice on the TTS provider.
func (s *Service) CloneVoice(ctx context.Context, req tts.CloneRequest) (*types.VoiceProfile, error) {
	if s.tts == nil {
		return nil, ErrVoiceUnavailable
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Samples) == 0 {
		return nil, fmt.Errorf("%w: name and at least one sample are required", ErrInvalidInput)
	}
	v, err := s.tts.CloneVoice(ctx, req)
	if err != nil {
		if errors.Is(err, tts.ErrCloneUnsupported) {
			return nil, fmt.Errorf("%w: %w", ErrVoiceUnavailable, err)
		}
		s.metrics.RecordProviderError(ctx, s.ttsName, "tts")
		return nil, fmt.Errorf("chat: clone voice: %w", err)
	}
	return v, nil
}
