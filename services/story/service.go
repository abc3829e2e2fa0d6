// Package story implements the AI writing tools offered on a story.
package story

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/repositories"
	"github.com/storyverse/ai-gateway/services"
	"github.com/storyverse/ai-gateway/services/gateway"
	"github.com/storyverse/ai-gateway/services/imagegen"
	"github.com/storyverse/ai-gateway/services/prompt"
	"github.com/storyverse/ai-gateway/services/providers"
	"go.uber.org/zap"
)

// Dispatcher is the part of the gateway the service uses
type Dispatcher interface {
	Chat(ctx context.Context, req providers.ChatRequest) (gateway.Outcome, error)
}

// ImageGenerator renders illustrations
type ImageGenerator interface {
	Generate(ctx context.Context, req imagegen.Request) (imagegen.Result, error)
	Discard(ctx context.Context, img *imagegen.Image) error
}

// Recorder receives the audit entry of every dispatch. It must not block.
type Recorder interface {
	Record(entry *models.GenerationLog)
}

type nopRecorder struct{}

func (nopRecorder) Record(*models.GenerationLog) {}

// ContinueInput is the input of a continuation
type ContinueInput struct {
	ChapterID *uuid.UUID
	Prompt    string
}

// IllustrateInput is the input of an illustration request
type IllustrateInput struct {
	ChapterID      *uuid.UUID
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Style          string
}

// Service checks ownership, assembles prompts and dispatches them
type Service struct {
	stories       repositories.StoryRepository
	illustrations repositories.IllustrationRepository
	tx            repositories.TransactionManager
	dispatcher    Dispatcher
	images        ImageGenerator
	assembler     *prompt.Assembler
	recorder      Recorder
	logger        *zap.Logger
}

// NewService creates a new story AI service
func NewService(
	repos *repositories.Repositories,
	tx repositories.TransactionManager,
	dispatcher Dispatcher,
	images ImageGenerator,
	assembler *prompt.Assembler,
	logger *zap.Logger,
) *Service {
	return &Service{
		stories:       repos.Stories,
		illustrations: repos.Illustrations,
		tx:            tx,
		dispatcher:    dispatcher,
		images:        images,
		assembler:     assembler,
		recorder:      nopRecorder{},
		logger:        logger,
	}
}

// WithRecorder sets where generation audit entries go
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// ContinueWriting writes the next paragraphs of the story
func (s *Service) ContinueWriting(ctx context.Context, userID, storyID uuid.UUID, in ContinueInput) (string, error) {
	sc, err := s.loadContext(ctx, userID, storyID, in.ChapterID)
	if err != nil {
		return "", err
	}
	return s.run(ctx, sc, prompt.OpContinue, prompt.Options{
		Instruction:     in.Prompt,
		TargetChapterID: chapterOrNil(in.ChapterID),
	})
}

// ContinueWritingAdult continues an adult-rated story through the adult pool only
func (s *Service) ContinueWritingAdult(ctx context.Context, userID, storyID uuid.UUID, in ContinueInput) (string, error) {
	sc, err := s.loadContext(ctx, userID, storyID, in.ChapterID)
	if err != nil {
		return "", err
	}
	if !sc.Story.Rating.IsAdult() {
		return "", services.ErrAdultRatingRequired.WithDetail("rating", string(sc.Story.Rating))
	}
	return s.run(ctx, sc, prompt.OpContinue, prompt.Options{
		Mode:            prompt.ModeAdult,
		Instruction:     in.Prompt,
		TargetChapterID: chapterOrNil(in.ChapterID),
	})
}

// Suggestions returns short ideas for what happens next
func (s *Service) Suggestions(ctx context.Context, userID, storyID uuid.UUID, chapterID *uuid.UUID) ([]string, error) {
	sc, err := s.loadContext(ctx, userID, storyID, chapterID)
	if err != nil {
		return nil, err
	}
	text, err := s.run(ctx, sc, prompt.OpSuggest, prompt.Options{TargetChapterID: chapterOrNil(chapterID)})
	if err != nil {
		return nil, err
	}
	return prompt.SplitLines(text), nil
}

// ImproveText edits a passage according to an instruction
func (s *Service) ImproveText(ctx context.Context, userID, storyID uuid.UUID, text, instruction string) (string, error) {
	sc, err := s.loadContext(ctx, userID, storyID, nil)
	if err != nil {
		return "", err
	}
	return s.run(ctx, sc, prompt.OpImprove, prompt.Options{Text: text, Instruction: instruction})
}

// GenerateTitles proposes title options, one per element
func (s *Service) GenerateTitles(ctx context.Context, userID, storyID uuid.UUID) ([]string, error) {
	sc, err := s.loadContext(ctx, userID, storyID, nil)
	if err != nil {
		return nil, err
	}
	text, err := s.run(ctx, sc, prompt.OpTitle, prompt.Options{})
	if err != nil {
		return nil, err
	}
	return prompt.SplitLines(text), nil
}

// GenerateDescription writes a short blurb
func (s *Service) GenerateDescription(ctx context.Context, userID, storyID uuid.UUID) (string, error) {
	sc, err := s.loadContext(ctx, userID, storyID, nil)
	if err != nil {
		return "", err
	}
	return s.run(ctx, sc, prompt.OpDescription, prompt.Options{})
}

// Illustrate generates an image and stores it as the next illustration
func (s *Service) Illustrate(ctx context.Context, userID, storyID uuid.UUID, in IllustrateInput) (*models.Illustration, error) {
	style, err := imagegen.ParseStyle(in.Style)
	if err != nil {
		return nil, services.ErrUnknownStyle.WithDetail("style", in.Style)
	}

	if _, err := s.loadContext(ctx, userID, storyID, in.ChapterID); err != nil {
		return nil, err
	}

	start := time.Now()
	entry := models.NewGenerationLog(storyID, userID, models.GenerationIllustrate, "image")
	result, err := s.images.Generate(ctx, imagegen.Request{
		Prompt:         style.Apply(in.Prompt),
		NegativePrompt: in.NegativePrompt,
		Width:          in.Width,
		Height:         in.Height,
	})
	if err != nil {
		s.logger.Error("failed to save generated image", zap.Error(err))
		s.recorder.Record(entry.WithFailure([]string{imageBackend}, err.Error()).WithLatency(start))
		return nil, services.ErrImageStorageFailed.Wrap(err)
	}
	if !result.OK() {
		reason := "no image returned"
		if result.Failure != nil {
			reason = result.Failure.String()
		}
		s.recorder.Record(entry.WithFailure([]string{imageBackend}, reason).WithLatency(start))
		return nil, services.ErrImageUnavailable
	}
	s.recorder.Record(entry.WithSuccess(imageBackend, []string{imageBackend}).WithLatency(start))

	var ill *models.Illustration
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		pos, err := s.illustrations.NextPosition(ctx, storyID, in.ChapterID)
		if err != nil {
			return err
		}
		ill = models.NewIllustration(storyID, in.ChapterID, result.Image.URL, in.Prompt, pos)
		return s.illustrations.Create(ctx, ill)
	})
	if err != nil {
		s.logger.Error("failed to save illustration record", zap.Error(err))
		if derr := s.images.Discard(ctx, result.Image); derr != nil {
			s.logger.Warn("failed to discard orphaned image",
				zap.String("path", result.Image.Path),
				zap.Error(derr))
		}
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	s.logger.Info("illustration saved",
		zap.String("story_id", storyID.String()),
		zap.String("illustration_id", ill.ID.String()),
		zap.Int("position", ill.Position))
	return ill, nil
}

// loadContext fetches the story, enforces authorship and checks the chapter
func (s *Service) loadContext(ctx context.Context, userID, storyID uuid.UUID, chapterID *uuid.UUID) (*models.StoryContext, error) {
	sc, err := s.stories.GetContext(ctx, storyID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrStoryNotFound
		}
		s.logger.Error("failed to load story context", zap.String("story_id", storyID.String()), zap.Error(err))
		return nil, services.ErrDatabaseError.Wrap(err)
	}

	if !sc.Story.IsAuthoredBy(userID) {
		return nil, services.ErrNotStoryAuthor
	}

	if chapterID != nil {
		if _, ok := sc.Chapter(*chapterID); !ok {
			return nil, services.ErrChapterNotFound
		}
	}
	return sc, nil
}

// run builds the prompt and sends it through the gateway
func (s *Service) run(ctx context.Context, sc *models.StoryContext, op prompt.Operation, opts prompt.Options) (string, error) {
	p, err := s.assembler.Build(sc, op, opts)
	if err != nil {
		return "", services.ErrEmptyOperation.Wrap(err)
	}

	class := providers.ClassStandard
	if opts.Mode == prompt.ModeAdult {
		class = providers.ClassAdult
	}

	start := time.Now()
	entry := models.NewGenerationLog(sc.Story.ID, sc.Story.AuthorID, generationOp(op, opts.Mode), string(class))
	outcome, err := s.dispatcher.Chat(ctx, providers.ChatRequest{
		SystemPrompt: p.System,
		UserMessage:  p.User,
		MaxTokens:    p.MaxTokens,
		Class:        class,
	})
	if err != nil {
		var exhausted *gateway.ExhaustedError
		var attempted []string
		if errors.As(err, &exhausted) {
			attempted = exhausted.Attempted
		}
		s.recorder.Record(entry.WithFailure(attempted, err.Error()).WithLatency(start))

		if errors.Is(err, gateway.ErrAllProvidersExhausted) {
			if class == providers.ClassAdult {
				return "", services.ErrAdultAIUnavailable
			}
			return "", services.ErrAIUnavailable
		}
		return "", services.ErrProviderMisconfig.Wrap(err)
	}

	s.recorder.Record(entry.WithSuccess(outcome.Provider, outcome.Attempted).WithLatency(start))

	s.logger.Info("story operation completed",
		zap.String("story_id", sc.Story.ID.String()),
		zap.String("operation", string(op)),
		zap.String("provider", outcome.Provider),
		zap.Int("attempts", len(outcome.Attempted)))

	return outcome.Text, nil
}

// imageBackend names the illustration backend in the audit trail
const imageBackend = "stable_diffusion"

func generationOp(op prompt.Operation, mode prompt.Mode) models.GenerationOperation {
	switch op {
	case prompt.OpContinue:
		if mode == prompt.ModeAdult {
			return models.GenerationContinueAdult
		}
		return models.GenerationContinue
	case prompt.OpSuggest:
		return models.GenerationSuggestions
	case prompt.OpImprove:
		return models.GenerationImprove
	case prompt.OpTitle:
		return models.GenerationTitle
	default:
		return models.GenerationDescription
	}
}

func chapterOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
