package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/ai"
	"github.com/xxxsen/csassist/internal/metrics"
	"github.com/xxxsen/csassist/internal/model"
	appErr "github.com/xxxsen/csassist/internal/pkg/errors"
	"github.com/xxxsen/csassist/internal/prompt"
	"github.com/xxxsen/csassist/internal/retriever"
	"github.com/xxxsen/csassist/internal/transcript"
)

type ChatOptions struct {
	DefaultTopK      int
	MaxTopK          int
	MaxQuestionChars int
	Timeout          time.Duration
}

type ChatService struct {
	retriever retriever.Retriever
	manager   *ai.Manager
	store     transcript.Store
	metrics   *metrics.Metrics
	opts      ChatOptions
	now       func() time.Time
}

func NewChatService(r retriever.Retriever, manager *ai.Manager, store transcript.Store, m *metrics.Metrics, opts ChatOptions) *ChatService {
	return &ChatService{
		retriever: r,
		manager:   manager,
		store:     store,
		metrics:   m,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *ChatService) NewSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if err := s.store.Create(ctx, id); err != nil {
		return "", err
	}
	logutil.GetLogger(ctx).Info("chat session created", zap.String("session_id", id))
	return id, nil
}

// Ask answers one question and records the exchange. The user and assistant
// turns are appended together only after the answer has been produced, so a
// failed ask leaves the transcript untouched.
func (s *ChatService) Ask(ctx context.Context, sessionID, question string, topK int) (turn model.Turn, err error) {
	start := s.now()
	defer func() {
		s.metrics.ObserveAsk(err)
	}()
	if err := validSessionID(sessionID); err != nil {
		return model.Turn{}, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return model.Turn{}, fmt.Errorf("%w: question is required", appErr.ErrInvalid)
	}
	if s.opts.MaxQuestionChars > 0 && utf8.RuneCountInString(question) > s.opts.MaxQuestionChars {
		return model.Turn{}, fmt.Errorf("%w: question exceeds %d characters", appErr.ErrInvalid, s.opts.MaxQuestionChars)
	}
	k, err := s.resolveTopK(topK)
	if err != nil {
		return model.Turn{}, err
	}
	ok, err := s.store.Exists(ctx, sessionID)
	if err != nil {
		return model.Turn{}, err
	}
	if !ok {
		return model.Turn{}, appErr.ErrNotFound
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", sessionID), zap.Int("top_k", k))

	stageStart := time.Now()
	refs, err := s.retriever.Retrieve(ctx, question, k)
	if err != nil {
		err = appErr.Remote(metrics.StageRetrieve, err)
		s.metrics.ObserveStage(failedStage(err), stageStart, err)
		logger.Error("retrieve references failed", zap.Error(err))
		return model.Turn{}, err
	}
	s.metrics.ObserveStage(metrics.StageRetrieve, stageStart, nil)
	s.metrics.ObserveReferences(len(refs))

	stageStart = time.Now()
	answer, err := s.manager.Answer(ctx, prompt.Build(question, refs))
	if err != nil {
		err = appErr.Remote(metrics.StageGenerate, err)
		s.metrics.ObserveStage(failedStage(err), stageStart, err)
		logger.Error("generate answer failed", zap.Error(err))
		return model.Turn{}, err
	}
	s.metrics.ObserveStage(metrics.StageGenerate, stageStart, nil)

	userTurn := model.Turn{Role: model.RoleUser, Content: question, Ctime: start.UnixMilli()}
	assistantTurn := model.Turn{
		Role:       model.RoleAssistant,
		Content:    answer,
		References: refs,
		Ctime:      s.now().UnixMilli(),
	}
	stageStart = time.Now()
	err = s.store.Append(context.WithoutCancel(ctx), sessionID, userTurn, assistantTurn)
	s.metrics.ObserveStage(metrics.StageTranscript, stageStart, err)
	if err != nil {
		logger.Error("append transcript failed", zap.Error(err))
		return model.Turn{}, err
	}
	logger.Info("question answered",
		zap.Int("references", len(refs)),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return assistantTurn, nil
}

func (s *ChatService) History(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if err := validSessionID(sessionID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, sessionID)
}

func (s *ChatService) Reset(ctx context.Context, sessionID string) error {
	if err := validSessionID(sessionID); err != nil {
		return err
	}
	if err := s.store.Clear(ctx, sessionID); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("chat session reset", zap.String("session_id", sessionID))
	return nil
}

func (s *ChatService) resolveTopK(topK int) (int, error) {
	if topK == 0 {
		return s.opts.DefaultTopK, nil
	}
	if topK < 1 || topK > s.opts.MaxTopK {
		return 0, fmt.Errorf("%w: top_k must be within [1, %d]", appErr.ErrInvalid, s.opts.MaxTopK)
	}
	return topK, nil
}

// failedStage reports the stage a remote failure belongs to. Session open
// failures surface through retrieval or cortex generation.
func failedStage(err error) string {
	var re *appErr.RemoteError
	if errors.As(err, &re) {
		return re.Stage
	}
	return metrics.StageRetrieve
}

func validSessionID(sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("%w: bad session id", appErr.ErrInvalid)
	}
	return nil
}
