// Package concierge is the caller-facing wager pipeline: it extracts betting
// intents from free-form messages, drives the slot-filling dialogue, gates
// risk, resolves contests and commits confirmed wagers to the ledger.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phenomenon0/daredevil-core/core"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/commit"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/contest"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/dialogue"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/intent"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/metrics"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/risk"
	"github.com/phenomenon0/daredevil-core/pkg/concierge/stream"
	"github.com/phenomenon0/daredevil-core/pkg/events"
)

// Service-level errors callers can test with errors.Is.
var (
	ErrEmptyMessage    = errors.New("empty message")
	ErrSessionNotFound = errors.New("session not found")
)

// Config tunes the session service.
type Config struct {
	// MaxHistory caps the chat transcript kept per session.
	MaxHistory int

	// SessionTTL evicts sessions idle longer than this.
	SessionTTL time.Duration

	// SigningAddress is the wallet address recorded as the creator's signing
	// identity on committed wagers.
	SigningAddress string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxHistory: 10,
		SessionTTL: 30 * time.Minute,
	}
}

// Service coordinates the full utterance-to-wager pipeline and owns the
// session table. One service handles any number of concurrent sessions;
// turns within a session are serialized by the session's mutex.
type Service struct {
	cfg       *Config
	extractor *intent.Extractor
	engine    *dialogue.Engine
	gate      *risk.Gate
	resolver  *contest.Resolver
	committer *commit.Orchestrator
	log       *zap.Logger

	// Optional attachments.
	publisher *events.Publisher
	hub       *stream.Hub
	metrics   *metrics.PipelineMetrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService wires the pipeline. A nil cfg uses defaults; a nil resolver
// synthesizes every contest; a nil logger disables logging.
func NewService(
	cfg *Config,
	extractor *intent.Extractor,
	engine *dialogue.Engine,
	gate *risk.Gate,
	resolver *contest.Resolver,
	committer *commit.Orchestrator,
	log *zap.Logger,
) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if resolver == nil {
		resolver = contest.NewResolver(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Service{
		cfg:       cfg,
		extractor: extractor,
		engine:    engine,
		gate:      gate,
		resolver:  resolver,
		committer: committer,
		log:       log,
		sessions:  make(map[string]*Session),
	}
	if committer != nil {
		committer.OnStage(func(sr commit.StageResult) {
			if s.metrics != nil {
				s.metrics.RecordStage(string(sr.Stage), sr.Duration.Seconds())
			}
		})
	}
	return s
}

// AttachHub streams pipeline events to WebSocket clients.
func (s *Service) AttachHub(h *stream.Hub) { s.hub = h }

// AttachMetrics records pipeline metrics.
func (s *Service) AttachMetrics(m *metrics.PipelineMetrics) { s.metrics = m }

// AttachPublisher publishes committed wagers to Kafka.
func (s *Service) AttachPublisher(p *events.Publisher) { s.publisher = p }

// --- Thin stateless delegates ---

// Extract runs intent extraction on one utterance.
func (s *Service) Extract(ctx context.Context, utterance string) intent.Result {
	return s.extractor.Extract(ctx, utterance)
}

// NextQuestion returns the question the dialogue engine would ask now.
func (s *Service) NextQuestion(c *dialogue.Conversation) *core.GuidingQuestion {
	return s.engine.NextQuestion(c)
}

// ApplyAnswer feeds one answer into a conversation.
func (s *Service) ApplyAnswer(c *dialogue.Conversation, questionID, answer string) dialogue.Outcome {
	return s.engine.ApplyAnswer(c, questionID, answer)
}

// Assess runs the risk gate on an intent.
func (s *Service) Assess(in core.BettingIntent) core.RiskAssessment {
	return s.gate.Assess(in)
}

// ResolveContest finds or synthesizes the contest for an intent.
func (s *Service) ResolveContest(ctx context.Context, in core.BettingIntent) (core.Contest, error) {
	return s.resolver.Resolve(ctx, contest.Criteria{
		Sport:        in.Sport,
		Participants: []string{in.Competitor},
	})
}

// Commit runs the two-phase commit for a confirmed intent.
func (s *Service) Commit(ctx context.Context, in core.BettingIntent, ct core.Contest, creator core.Party) commit.Result {
	return s.committer.Commit(ctx, in, ct, creator)
}

// --- Session surface ---

// SessionView snapshots a session for API clients.
func (s *Service) SessionView(id string) (SessionView, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return SessionView{}, false
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	completion := 0.0
	if sess.Conv != nil {
		completion = s.engine.Completion(sess.Conv)
	}
	return sess.view(completion), true
}

// SessionCount reports the number of live sessions.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// HandleUtterance drives one chat turn. An empty sessionID opens a new
// session; otherwise the message is routed into the existing one.
func (s *Service) HandleUtterance(ctx context.Context, sessionID, ownerID, text string) (*Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	var sess *Session
	if sessionID == "" {
		sess = s.newSession(ownerID)
	} else {
		s.mu.RLock()
		var ok bool
		sess, ok = s.sessions[sessionID]
		s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.remember("user", text, s.cfg.MaxHistory)
	reply := s.turn(ctx, sess, text)
	reply.SessionID = sess.ID
	if reply.Message != "" {
		sess.remember("concierge", reply.Message, s.cfg.MaxHistory)
	}
	sess.UpdatedAt = time.Now()
	return reply, nil
}

func (s *Service) newSession(ownerID string) *Session {
	if ownerID == "" {
		ownerID = "anon"
	}
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.evictIdleLocked(now)
	s.sessions[sess.ID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveSessions(count)
	}
	s.log.Debug("session opened", zap.String("session_id", sess.ID), zap.String("owner", ownerID))
	return sess
}

// evictIdleLocked drops sessions idle past the TTL. Caller holds s.mu.
func (s *Service) evictIdleLocked(now time.Time) {
	for id, sess := range s.sessions {
		if sess.committing {
			continue
		}
		if now.Sub(sess.UpdatedAt) > s.cfg.SessionTTL {
			delete(s.sessions, id)
		}
	}
}

// turn routes one message by session state. Caller holds the session lock.
func (s *Service) turn(ctx context.Context, sess *Session, text string) *Reply {
	switch {
	case sess.Cancelled:
		return &Reply{
			Message: "This session is closed. Start a new one to place another bet.",
			Done:    true,
		}
	case sess.committing:
		return &Reply{Message: "Hold on, your wager is still being committed."}
	case sess.Commit != nil && sess.Commit.Success:
		return s.committedReply(sess)
	case sess.Commit != nil:
		return s.afterFailedCommit(ctx, sess, text)
	case sess.Conv == nil:
		return s.extractTurn(ctx, sess, text)
	case sess.awaitingAck():
		return s.ackTurn(ctx, sess, text)
	case !sess.Conv.Confirmed:
		return s.answerTurn(ctx, sess, text)
	default:
		return s.proceed(ctx, sess)
	}
}

// extractTurn treats the message as a fresh bet statement. A miss leaves the
// session unseeded so the next message is re-extracted from scratch.
func (s *Service) extractTurn(ctx context.Context, sess *Session, text string) *Reply {
	start := time.Now()
	res := s.extractor.Extract(ctx, text)
	if s.metrics != nil {
		status := "hit"
		if res.Miss() {
			status = "miss"
		}
		s.metrics.RecordExtraction(string(res.Source), status, time.Since(start).Seconds(), res.Intent.Confidence)
	}

	if res.Miss() {
		fail := core.Fail(core.FailureParse, core.BettingIntent{}, "could not read a bet from the message")
		if s.hub != nil {
			s.hub.BroadcastError(sess.ID, fail, "extract")
		}
		return &Reply{
			Failure: failureView(fail),
			Message: `I couldn't read a bet out of that. Try something like "bet 50 on verstappen".`,
		}
	}

	sess.Conv = dialogue.NewConversation(sess.OwnerID, res)
	sess.Utterance = text
	if s.hub != nil {
		s.hub.BroadcastIntent(sess.ID, res.Intent)
	}
	s.log.Info("intent extracted",
		zap.String("session_id", sess.ID),
		zap.String("source", string(res.Source)),
		zap.String("intent", res.Intent.Summary()),
	)

	q := s.engine.NextQuestion(sess.Conv)
	if q == nil {
		return s.proceed(ctx, sess)
	}
	return s.questionReply(sess, q, nil)
}

// answerTurn applies the message as the answer to the pending question.
func (s *Service) answerTurn(ctx context.Context, sess *Session, text string) *Reply {
	q := s.engine.NextQuestion(sess.Conv)
	if q == nil {
		return s.proceed(ctx, sess)
	}

	outcome := s.engine.ApplyAnswer(sess.Conv, q.ID, text)
	if s.metrics != nil {
		result := "accepted"
		if outcome.Failure != nil {
			result = "rejected"
		}
		s.metrics.RecordAnswer(q.ID, result)
		if outcome.Failure != nil && sess.Conv.Retries(q.ID) == s.engine.MaxRetries() {
			s.metrics.RecordRetriesExceeded(q.ID)
		}
	}

	if outcome.Failure != nil {
		return s.questionReply(sess, outcome.NextQuestion, outcome.Failure)
	}
	if outcome.CanProceed {
		return s.proceed(ctx, sess)
	}
	return s.questionReply(sess, outcome.NextQuestion, nil)
}

func (s *Service) questionReply(sess *Session, q *core.GuidingQuestion, fail *core.PipelineError) *Reply {
	reply := &Reply{
		Question:   q,
		Completion: s.engine.Completion(sess.Conv),
		Intent:     intentEcho(sess.Conv),
		Failure:    failureView(fail),
	}
	if q != nil {
		if fail != nil {
			reply.Message = fmt.Sprintf("%s. %s", strings.TrimSuffix(fail.Message, "."), q.Prompt)
		} else {
			reply.Message = q.Prompt
		}
		if s.metrics != nil {
			s.metrics.RecordQuestion(q.ID)
		}
		if s.hub != nil {
			s.hub.BroadcastQuestion(sess.ID, q)
		}
	}
	return reply
}

// proceed runs the post-confirmation steps: risk gate, then either the
// acknowledgment stop or the commit.
func (s *Service) proceed(ctx context.Context, sess *Session) *Reply {
	if sess.Risk == nil {
		a := s.gate.Assess(sess.Conv.Intent)
		sess.Risk = &a
		sess.Conv.Risk = &a
		if s.metrics != nil {
			s.metrics.RecordRiskAssessment(string(a.Tier), !a.MayAutoProceed)
		}
		if s.hub != nil {
			s.hub.BroadcastRisk(sess.ID, a)
		}
		s.log.Info("risk assessed",
			zap.String("session_id", sess.ID),
			zap.String("tier", string(a.Tier)),
			zap.Bool("may_auto_proceed", a.MayAutoProceed),
		)
	}

	if sess.awaitingAck() {
		fail := core.Fail(core.FailureRiskBlocked, sess.Conv.Intent, strings.Join(sess.Risk.Rationale, " "))
		return &Reply{
			Risk:        sess.Risk,
			RequiresAck: true,
			Intent:      intentEcho(sess.Conv),
			Completion:  s.engine.Completion(sess.Conv),
			Failure:     failureView(fail),
			Message:     riskMessage(sess.Risk),
		}
	}
	return s.commitTurn(ctx, sess)
}

// ackTurn handles the explicit risk acknowledgment step.
func (s *Service) ackTurn(ctx context.Context, sess *Session, text string) *Reply {
	switch {
	case isAcknowledgment(text):
		sess.ackDone = true
		s.log.Info("risk acknowledged", zap.String("session_id", sess.ID))
		return s.commitTurn(ctx, sess)
	case isCancel(text):
		sess.Cancelled = true
		return &Reply{
			Intent:  intentEcho(sess.Conv),
			Message: "Understood, cancelled. Nothing was placed.",
			Done:    true,
		}
	default:
		fail := core.Fail(core.FailureRiskBlocked, sess.Conv.Intent, strings.Join(sess.Risk.Rationale, " "))
		return &Reply{
			Risk:        sess.Risk,
			RequiresAck: true,
			Intent:      intentEcho(sess.Conv),
			Completion:  s.engine.Completion(sess.Conv),
			Failure:     failureView(fail),
			Message:     riskMessage(sess.Risk),
		}
	}
}

// commitTurn resolves the contest and runs the two-phase commit. The session
// lock is released for the duration of the ledger write; the committing flag
// keeps concurrent turns out.
func (s *Service) commitTurn(ctx context.Context, sess *Session) *Reply {
	in := sess.Conv.Intent

	if sess.Contest == nil {
		ct, err := s.resolver.Resolve(ctx, contest.Criteria{
			Sport:        in.Sport,
			Participants: []string{in.Competitor},
		})
		if err != nil {
			fail := core.FailWrap(core.FailureValidation, in, "could not resolve a contest", err)
			return &Reply{
				Intent:  intentEcho(sess.Conv),
				Failure: failureView(fail),
				Message: "I couldn't match that bet to a contest. Check the sport and try again.",
			}
		}
		sess.Contest = &ct
		if s.metrics != nil {
			s.metrics.RecordContest(string(ct.Source))
		}
		if s.hub != nil {
			s.hub.BroadcastContest(sess.ID, ct)
		}
	}

	creator := core.Party{
		Identity:              sess.OwnerID,
		SigningAddress:        s.cfg.SigningAddress,
		SelectedParticipantID: in.Competitor,
	}
	ct := *sess.Contest

	sess.committing = true
	sess.mu.Unlock()
	start := time.Now()
	res := s.committer.Commit(ctx, in, ct, creator)
	elapsed := time.Since(start)
	sess.mu.Lock()
	sess.committing = false
	sess.Commit = &res

	status := "success"
	if res.Failure != nil {
		status = string(res.Failure.Code)
	}
	if s.metrics != nil {
		s.metrics.RecordCommit(status, elapsed.Seconds())
	}
	if s.hub != nil {
		s.hub.BroadcastCommit(sess.ID, res)
	}

	if !res.Success {
		if s.hub != nil {
			s.hub.BroadcastError(sess.ID, res.Failure, "commit")
		}
		return &Reply{
			Intent:  intentEcho(sess.Conv),
			Risk:    sess.Risk,
			Contest: sess.Contest,
			Commit:  sess.Commit,
			Failure: failureView(res.Failure),
			Message: commitFailureMessage(&res),
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveWagerAmount(string(in.CurrencyOrDefault()), metrics.DecimalToFloat64(in.Amount))
	}
	tier := ""
	if sess.Risk != nil {
		tier = string(sess.Risk.Tier)
	}
	_ = s.publisher.Publish(ctx, events.WagerCommitted{
		WagerID:     res.WagerID,
		OwnerID:     sess.OwnerID,
		ContestID:   ct.ID,
		Selection:   in.Competitor,
		Amount:      in.Amount.String(),
		Currency:    string(in.CurrencyOrDefault()),
		RiskTier:    tier,
		TxHash:      res.TxHash,
		ProofURI:    res.ProofURI,
		Synthesized: ct.Synthesized(),
		TsUnixMs:    time.Now().UnixMilli(),
	})
	s.log.Info("wager session completed",
		zap.String("session_id", sess.ID),
		zap.String("wager_id", res.WagerID),
		zap.String("proof", res.ProofURI),
	)

	return &Reply{
		Intent:     intentEcho(sess.Conv),
		Risk:       sess.Risk,
		Contest:    sess.Contest,
		Commit:     sess.Commit,
		Completion: s.engine.Completion(sess.Conv),
		Message:    commitSuccessMessage(&res),
		Done:       true,
	}
}

func (s *Service) committedReply(sess *Session) *Reply {
	return &Reply{
		Intent:     intentEcho(sess.Conv),
		Risk:       sess.Risk,
		Contest:    sess.Contest,
		Commit:     sess.Commit,
		Completion: s.engine.Completion(sess.Conv),
		Message:    fmt.Sprintf("This wager is already committed as %s. Proof: %s", sess.Commit.WagerID, sess.Commit.ProofURI),
		Done:       true,
	}
}

// afterFailedCommit routes messages on a session whose commit attempt
// failed. "retry" re-runs the commit except after finalize failures, where
// the wager already exists on the ledger.
func (s *Service) afterFailedCommit(ctx context.Context, sess *Session, text string) *Reply {
	fail := sess.Commit.Failure

	switch {
	case isCancel(text):
		sess.Cancelled = true
		return &Reply{
			Intent:  intentEcho(sess.Conv),
			Message: "Understood, cancelled.",
			Done:    true,
		}
	case isRetry(text):
		if fail != nil && fail.Code == core.FailureFinalize {
			return &Reply{
				Intent:  intentEcho(sess.Conv),
				Commit:  sess.Commit,
				Failure: failureView(fail),
				Message: commitFailureMessage(sess.Commit),
			}
		}
		sess.Commit = nil
		return s.commitTurn(ctx, sess)
	default:
		return &Reply{
			Intent:  intentEcho(sess.Conv),
			Commit:  sess.Commit,
			Failure: failureView(fail),
			Message: commitFailureMessage(sess.Commit) + ` Reply "retry" or "cancel".`,
		}
	}
}
